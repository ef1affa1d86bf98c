package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/s-rangarajan/festicart/internal/cart"
)

type Review struct {
	ID         cart.ID
	TicketID   cart.ID
	EventID    cart.ID
	EventName  string
	AuthorName string
	Rating     int
	Comment    string
	Approved   bool
}

type wireReviewEvent struct {
	NOMMANIF string `json:"NOMMANIF"`
}

type wireReviewTicket struct {
	Client *wireClient `json:"client"`
}

type wireReview struct {
	IDAVIS          cart.ID           `json:"IDAVIS"`
	ID              cart.ID           `json:"id"`
	IDBILLET        cart.ID           `json:"IDBILLET"`
	IDMANIF         cart.ID           `json:"IDMANIF"`
	NOTEAVIS        count             `json:"NOTEAVIS"`
	COMMENTAIREAVIS *string           `json:"COMMENTAIREAVIS"`
	APPROUVERAVIS   flag              `json:"APPROUVERAVIS"`
	Manifestation   *wireReviewEvent  `json:"manifestation"`
	Billet          *wireReviewTicket `json:"billet"`
}

func normalizeReview(w wireReview) (Review, error) {
	id := firstID(w.IDAVIS, w.ID)
	if id == "" {
		return Review{}, fmt.Errorf("review without id: %w", ErrUnrecognizedResponse)
	}

	review := Review{
		ID:       id,
		TicketID: w.IDBILLET,
		EventID:  w.IDMANIF,
		Rating:   int(w.NOTEAVIS),
		Approved: bool(w.APPROUVERAVIS),
	}
	if w.COMMENTAIREAVIS != nil {
		review.Comment = *w.COMMENTAIREAVIS
	}
	if w.Manifestation != nil {
		review.EventName = w.Manifestation.NOMMANIF
	}
	if w.Billet != nil && w.Billet.Client != nil {
		author := ClientProfile{FirstName: w.Billet.Client.PRENOMPERS, LastName: w.Billet.Client.NOMPERS}
		review.AuthorName = author.DisplayName()
	}
	return review, nil
}

type ReviewRequest struct {
	TicketID cart.ID `json:"ticket_id" validate:"required"`
	EventID  cart.ID `json:"event_id" validate:"required"`
	Rating   int     `json:"rating" validate:"gte=1,lte=5"`
	Comment  string  `json:"comment" validate:"max=1000"`
}

type wireReviewPayload struct {
	IDBILLET        cart.ID `json:"IDBILLET"`
	IDMANIF         cart.ID `json:"IDMANIF"`
	NOTEAVIS        int     `json:"NOTEAVIS"`
	COMMENTAIREAVIS *string `json:"COMMENTAIREAVIS"`
}

// CreateReview posts a rating for an attended event. An empty comment is sent
// as null.
func (c *Client) CreateReview(ctx context.Context, req ReviewRequest) (Review, error) {
	if err := Validate(req); err != nil {
		return Review{}, err
	}

	payload := wireReviewPayload{
		IDBILLET: req.TicketID,
		IDMANIF:  req.EventID,
		NOTEAVIS: req.Rating,
	}
	if req.Comment != "" {
		payload.COMMENTAIREAVIS = &req.Comment
	}

	var body json.RawMessage
	if err := c.post(ctx, "/v1/avis", payload, &body); err != nil {
		return Review{}, err
	}
	var wire wireReview
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return Review{}, fmt.Errorf("review: %w: %v", ErrUnrecognizedResponse, err)
	}
	return normalizeReview(wire)
}

// ReviewsByEvent lists the approved reviews of an event.
func (c *Client) ReviewsByEvent(ctx context.Context, eventID cart.ID) ([]Review, error) {
	return c.listReviews(ctx, "/v1/avis/manifestation/"+url.PathEscape(eventID.String()))
}

func (c *Client) ReviewsByClient(ctx context.Context, clientID cart.ID) ([]Review, error) {
	return c.listReviews(ctx, "/v1/avis/client/"+url.PathEscape(clientID.String()))
}

// AllReviews is the moderation queue; admin only.
func (c *Client) AllReviews(ctx context.Context) ([]Review, error) {
	return c.listReviews(ctx, "/v1/avis")
}

func (c *Client) ApproveReview(ctx context.Context, id cart.ID) error {
	return c.post(ctx, "/v1/avis/"+url.PathEscape(id.String())+"/approve", struct{}{}, nil)
}

func (c *Client) RejectReview(ctx context.Context, id cart.ID) error {
	return c.post(ctx, "/v1/avis/"+url.PathEscape(id.String())+"/reject", struct{}{}, nil)
}

func (c *Client) DeleteReview(ctx context.Context, id cart.ID) error {
	return c.delete(ctx, "/v1/avis/"+url.PathEscape(id.String()), nil)
}

func (c *Client) listReviews(ctx context.Context, path string) ([]Review, error) {
	var body json.RawMessage
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}

	var wire []wireReview
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return nil, fmt.Errorf("review list: %w: %v", ErrUnrecognizedResponse, err)
	}
	reviews := make([]Review, 0, len(wire))
	for _, w := range wire {
		review, err := normalizeReview(w)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}
