package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/s-rangarajan/festicart/internal/cart"
)

// Ticket is an issued, individually scannable entitlement.
type Ticket struct {
	ID          cart.ID
	EventID     cart.ID
	EventName   string
	TypeName    string
	SessionDate string
	SessionTime string
	QRCode      string
	Used        bool
}

type wireTicket struct {
	IDBILLET        cart.ID `json:"ID_BILLET"`
	IDBILLETLegacy  cart.ID `json:"IDBILLET"`
	ID              cart.ID `json:"id"`
	IDMANIF         cart.ID `json:"IDMANIF"`
	NOMFESTIVAL     string  `json:"NOMFESTIVAL"`
	NOMMANIF        string  `json:"NOMMANIF"`
	NOMTYPEBILLET   string  `json:"NOMTYPEBILLET"`
	DATESESSION     string  `json:"DATESESSION"`
	HEUREDEBSESSION string  `json:"HEUREDEBSESSION"`
	QRCODE          string  `json:"QRCODE"`
	UTILISE         flag    `json:"UTILISE"`
	Used            flag    `json:"used"`
}

func normalizeTicket(w wireTicket) (Ticket, error) {
	id := firstID(w.IDBILLET, w.IDBILLETLegacy, w.ID)
	if id == "" {
		return Ticket{}, fmt.Errorf("ticket without id: %w", ErrUnrecognizedResponse)
	}
	return Ticket{
		ID:          id,
		EventID:     w.IDMANIF,
		EventName:   firstString(w.NOMFESTIVAL, w.NOMMANIF),
		TypeName:    w.NOMTYPEBILLET,
		SessionDate: w.DATESESSION,
		SessionTime: w.HEUREDEBSESSION,
		QRCode:      w.QRCODE,
		Used:        bool(w.UTILISE) || bool(w.Used),
	}, nil
}

func (c *Client) TicketsByClient(ctx context.Context, clientID cart.ID) ([]Ticket, error) {
	var body json.RawMessage
	if err := c.get(ctx, "/v1/billets/client/"+url.PathEscape(clientID.String()), &body); err != nil {
		return nil, err
	}

	var wire []wireTicket
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return nil, fmt.Errorf("ticket list: %w: %v", ErrUnrecognizedResponse, err)
	}
	tickets := make([]Ticket, 0, len(wire))
	for _, w := range wire {
		ticket, err := normalizeTicket(w)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (c *Client) GetTicket(ctx context.Context, id cart.ID) (Ticket, error) {
	var body json.RawMessage
	if err := c.get(ctx, "/v1/billets/"+url.PathEscape(id.String()), &body); err != nil {
		return Ticket{}, err
	}

	var wire wireTicket
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return Ticket{}, fmt.Errorf("ticket detail: %w: %v", ErrUnrecognizedResponse, err)
	}
	return normalizeTicket(wire)
}

// ValidationResult is what the gate shows after a successful validation.
type ValidationResult struct {
	Validated  int
	HolderName string
	EventName  string
	Message    string
}

type wireValidation struct {
	Count      *count      `json:"count"`
	Validated  *count      `json:"validated"`
	Client     *wireClient `json:"client"`
	HolderName string      `json:"holder_name"`
	NOMMANIF   string      `json:"NOMMANIF"`
	EventName  string      `json:"event_name"`
	Message    string      `json:"message"`
}

func normalizeValidation(body json.RawMessage, defaultCount int) (ValidationResult, error) {
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}
	var wire wireValidation
	if err := json.Unmarshal(unwrap(body), &wire); err != nil {
		return ValidationResult{}, fmt.Errorf("validation: %w: %v", ErrUnrecognizedResponse, err)
	}

	result := ValidationResult{
		Validated: defaultCount,
		EventName: firstString(wire.NOMMANIF, wire.EventName),
		Message:   wire.Message,
	}
	switch {
	case wire.Count != nil:
		result.Validated = int(*wire.Count)
	case wire.Validated != nil:
		result.Validated = int(*wire.Validated)
	case defaultCount == 0:
		return ValidationResult{}, fmt.Errorf("validation without count: %w", ErrUnrecognizedResponse)
	}

	result.HolderName = wire.HolderName
	if wire.Client != nil {
		holder := ClientProfile{FirstName: wire.Client.PRENOMPERS, LastName: wire.Client.NOMPERS}
		result.HolderName = firstString(holder.DisplayName(), wire.HolderName)
	}
	return result, nil
}

// ValidateTicket marks a single ticket used by its QR code. A response
// without a count means one ticket was validated.
func (c *Client) ValidateTicket(ctx context.Context, code string) (ValidationResult, error) {
	var body json.RawMessage
	if err := c.post(ctx, "/v1/billets/validate/"+url.PathEscape(code), struct{}{}, &body); err != nil {
		return ValidationResult{}, err
	}
	return normalizeValidation(body, 1)
}

type ValidateTicketsRequest struct {
	TicketIDs []cart.ID `json:"ticket_ids" validate:"required,min=1,dive,required"`
}

// ValidateTickets marks a group of tickets used in one call. The backend must
// report how many it validated.
func (c *Client) ValidateTickets(ctx context.Context, ids []cart.ID) (ValidationResult, error) {
	req := ValidateTicketsRequest{TicketIDs: ids}
	if err := Validate(req); err != nil {
		return ValidationResult{}, err
	}

	var body json.RawMessage
	if err := c.post(ctx, "/v1/billets/validate", req, &body); err != nil {
		return ValidationResult{}, err
	}
	return normalizeValidation(body, 0)
}
