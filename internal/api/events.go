package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/s-rangarajan/festicart/internal/cart"
)

type Event struct {
	ID          cart.ID
	Name        string
	Description string
	Price       decimal.Decimal
	Poster      string
	// Kind is the backend's free form type label.
	Kind         string
	IsConcert    bool
	IsConference bool
	IsWorkshop   bool
	Sessions     []Session
}

type Session struct {
	ID        cart.ID
	Date      string
	StartTime string
	EndTime   string
	Venue     string
	Address   string
}

type wireEvent struct {
	IDMANIF           cart.ID          `json:"IDMANIF"`
	ID                cart.ID          `json:"id"`
	NOMMANIF          string           `json:"NOMMANIF"`
	Nom               string           `json:"nom"`
	DESCRIPTIONMANIF  string           `json:"DESCRIPTIONMANIF"`
	PRIXMANIF         *decimal.Decimal `json:"PRIXMANIF"`
	Prix              *decimal.Decimal `json:"prix"`
	AFFICHEMANIF      string           `json:"AFFICHEMANIF"`
	TYPEMANIFESTATION string           `json:"TYPE_MANIFESTATION"`
	Concert           json.RawMessage  `json:"concert"`
	Conference        json.RawMessage  `json:"conference"`
	Atelier           json.RawMessage  `json:"atelier"`
	Sessions          []wireSession    `json:"sessions"`
}

type wireSession struct {
	IDSESSION       cart.ID         `json:"IDSESSION"`
	ID              cart.ID         `json:"id"`
	DATESESSION     string          `json:"DATESESSION"`
	Date            string          `json:"date"`
	HEUREDEBSESSION string          `json:"HEUREDEBSESSION"`
	HEUREFINSESSION string          `json:"HEUREFINSESSION"`
	Lieux           json.RawMessage `json:"lieux"`
}

type wireVenue struct {
	NOMLIEUX     string `json:"NOMLIEUX"`
	Nom          string `json:"nom"`
	ADRESSELIEUX string `json:"ADRESSELIEUX"`
}

func normalizeEvent(w wireEvent) (Event, error) {
	id := firstID(w.IDMANIF, w.ID)
	if id == "" {
		return Event{}, fmt.Errorf("event without id: %w", ErrUnrecognizedResponse)
	}

	event := Event{
		ID:           id,
		Name:         firstString(w.NOMMANIF, w.Nom),
		Description:  w.DESCRIPTIONMANIF,
		Price:        firstDecimal(w.PRIXMANIF, w.Prix),
		Poster:       w.AFFICHEMANIF,
		Kind:         w.TYPEMANIFESTATION,
		IsConcert:    present(w.Concert),
		IsConference: present(w.Conference),
		IsWorkshop:   present(w.Atelier),
	}
	for _, ws := range w.Sessions {
		session, err := normalizeSession(ws)
		if err != nil {
			return Event{}, fmt.Errorf("event %s: %w", id, err)
		}
		event.Sessions = append(event.Sessions, session)
	}
	return event, nil
}

func normalizeSession(w wireSession) (Session, error) {
	session := Session{
		ID:        firstID(w.IDSESSION, w.ID),
		Date:      firstString(w.DATESESSION, w.Date),
		StartTime: w.HEUREDEBSESSION,
		EndTime:   w.HEUREFINSESSION,
	}

	// lieux is either a single venue or a relation list.
	if present(w.Lieux) {
		var venues []wireVenue
		if err := json.Unmarshal(w.Lieux, &venues); err != nil {
			var venue wireVenue
			if err := json.Unmarshal(w.Lieux, &venue); err != nil {
				return Session{}, fmt.Errorf("session venue: %w", ErrUnrecognizedResponse)
			}
			venues = []wireVenue{venue}
		}
		if len(venues) > 0 {
			session.Venue = firstString(venues[0].NOMLIEUX, venues[0].Nom)
			session.Address = venues[0].ADRESSELIEUX
		}
	}
	return session, nil
}

func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var body json.RawMessage
	if err := c.get(ctx, "/v1/manifestations", &body); err != nil {
		return nil, err
	}

	var wire []wireEvent
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return nil, fmt.Errorf("event list: %w: %v", ErrUnrecognizedResponse, err)
	}
	events := make([]Event, 0, len(wire))
	for _, w := range wire {
		event, err := normalizeEvent(w)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, id cart.ID) (Event, error) {
	var body json.RawMessage
	if err := c.get(ctx, "/v1/manifestations/"+url.PathEscape(id.String()), &body); err != nil {
		return Event{}, err
	}

	var wire wireEvent
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return Event{}, fmt.Errorf("event detail: %w: %v", ErrUnrecognizedResponse, err)
	}
	return normalizeEvent(wire)
}

type wireAvailability struct {
	AvailablePlaces *count `json:"available_places"`
	Available       *count `json:"available"`
	PlacesRestantes *count `json:"places_restantes"`
}

// AvailablePlaces returns the remaining capacity for an event.
func (c *Client) AvailablePlaces(ctx context.Context, id cart.ID) (int, error) {
	var body json.RawMessage
	if err := c.get(ctx, "/v1/manifestations/"+url.PathEscape(id.String())+"/available-places", &body); err != nil {
		return 0, err
	}

	var wire wireAvailability
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return 0, fmt.Errorf("available places: %w: %v", ErrUnrecognizedResponse, err)
	}
	for _, n := range []*count{wire.AvailablePlaces, wire.Available, wire.PlacesRestantes} {
		if n != nil {
			return int(*n), nil
		}
	}
	return 0, fmt.Errorf("available places: %w", ErrUnrecognizedResponse)
}
