package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/s-rangarajan/festicart/internal/cart"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
)

// ErrNoReservationID is returned when the backend answers 2xx without a
// reservation identifier, which it does when it embeds an error in the body.
var ErrNoReservationID = errors.New("reservation response carries no reservation id")

type ReservationRequest struct {
	EventID  cart.ID `json:"event_id" validate:"required"`
	Quantity int     `json:"quantity" validate:"gte=1"`
	UserID   cart.ID `json:"user_id" validate:"required"`
	// PaymentCode is zero for free reservations.
	PaymentCode int `json:"payment_code" validate:"gte=0"`
}

type Reservation struct {
	ID        cart.ID
	EventName string
	CreatedAt string
	Amount    decimal.Decimal
	Paid      bool
}

type wireReservationPayload struct {
	IDMANIF           cart.ID `json:"IDMANIF"`
	IDPERS            cart.ID `json:"IDPERS"`
	NBPERSRESERVATION int     `json:"NBPERSRESERVATION"`
	IDTYPEPAIEMENT    int     `json:"IDTYPEPAIEMENT,omitempty"`
}

type wireFestival struct {
	NOMFESTIVAL string `json:"NOMFESTIVAL"`
}

type wireReservation struct {
	IDRESERVATION       cart.ID          `json:"ID_RESERVATION"`
	IDRESERVATIONLegacy cart.ID          `json:"IDRESERVATION"`
	ID                  cart.ID          `json:"id"`
	NOMFESTIVAL         string           `json:"NOMFESTIVAL"`
	Festival            *wireFestival    `json:"festival"`
	DATERESERVATION     string           `json:"DATE_RESERVATION"`
	CreatedAt           string           `json:"created_at"`
	MONTANTRESERVATION  *decimal.Decimal `json:"MONTANT_RESERVATION"`
	Total               *decimal.Decimal `json:"total"`
	PAYE                flag             `json:"PAYE"`
}

func normalizeReservation(w wireReservation) (Reservation, error) {
	id := firstID(w.IDRESERVATION, w.IDRESERVATIONLegacy, w.ID)
	if id == "" {
		return Reservation{}, ErrNoReservationID
	}
	name := w.NOMFESTIVAL
	if w.Festival != nil && w.Festival.NOMFESTIVAL != "" {
		name = w.Festival.NOMFESTIVAL
	}
	return Reservation{
		ID:        id,
		EventName: name,
		CreatedAt: firstString(w.DATERESERVATION, w.CreatedAt),
		Amount:    firstDecimal(w.MONTANTRESERVATION, w.Total),
		Paid:      bool(w.PAYE),
	}, nil
}

// CreateReservation books Quantity places for the payer with a payment method code.
func (c *Client) CreateReservation(ctx context.Context, req ReservationRequest) (Reservation, error) {
	if err := Validate(req); err != nil {
		return Reservation{}, err
	}
	if req.PaymentCode == 0 {
		return Reservation{}, pkgerrors.New(pkgerrors.CodeValidation, "payment_code is required").
			WithDetails(map[string]string{"payment_code": "is required"})
	}
	return c.reserve(ctx, req)
}

// CreateFreeReservation books places on a free event; no payment method is sent.
func (c *Client) CreateFreeReservation(ctx context.Context, req ReservationRequest) (Reservation, error) {
	req.PaymentCode = 0
	if err := Validate(req); err != nil {
		return Reservation{}, err
	}
	return c.reserve(ctx, req)
}

func (c *Client) reserve(ctx context.Context, req ReservationRequest) (Reservation, error) {
	var body json.RawMessage
	err := c.post(ctx, "/v1/reservations", wireReservationPayload{
		IDMANIF:           req.EventID,
		IDPERS:            req.UserID,
		NBPERSRESERVATION: req.Quantity,
		IDTYPEPAIEMENT:    req.PaymentCode,
	}, &body)
	if err != nil {
		return Reservation{}, err
	}

	var wire wireReservation
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return Reservation{}, fmt.Errorf("%w: %v", ErrNoReservationID, err)
	}
	return normalizeReservation(wire)
}

func (c *Client) ReservationsByClient(ctx context.Context, clientID cart.ID) ([]Reservation, error) {
	var body json.RawMessage
	if err := c.get(ctx, "/v1/reservations/client/"+url.PathEscape(clientID.String()), &body); err != nil {
		return nil, err
	}

	var wire []wireReservation
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return nil, fmt.Errorf("reservation list: %w: %v", ErrUnrecognizedResponse, err)
	}
	reservations := make([]Reservation, 0, len(wire))
	for _, w := range wire {
		reservation, err := normalizeReservation(w)
		if err != nil {
			return nil, fmt.Errorf("reservation list: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}
