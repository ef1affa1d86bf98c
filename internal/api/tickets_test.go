package api

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-rangarajan/festicart/internal/cart"
)

func TestTicketsByClientNormalizesTickets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/billets/client/7", r.URL.Path)
		_, _ = io.WriteString(w, `{"data":[
		  {"ID_BILLET":100,"IDMANIF":12,"NOMFESTIVAL":"Nuit Electro","NOMTYPEBILLET":"Standard",
		   "DATESESSION":"2026-07-14","HEUREDEBSESSION":"21:00","QRCODE":"3f1c2b9e-8d4a-4f6b-9c1d-2e3f4a5b6c7d","UTILISE":"1"},
		  {"IDBILLET":"101","IDMANIF":"12","NOMMANIF":"Nuit Electro","used":false}
		]}`)
	})

	tickets, err := c.TicketsByClient(context.Background(), "7")

	require.NoError(t, err)
	require.Equal(t, []Ticket{
		{
			ID:          "100",
			EventID:     "12",
			EventName:   "Nuit Electro",
			TypeName:    "Standard",
			SessionDate: "2026-07-14",
			SessionTime: "21:00",
			QRCode:      "3f1c2b9e-8d4a-4f6b-9c1d-2e3f4a5b6c7d",
			Used:        true,
		},
		{ID: "101", EventID: "12", EventName: "Nuit Electro"},
	}, tickets)
}

func TestGetTicketRejectsTicketWithoutID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/billets/5", r.URL.Path)
		_, _ = io.WriteString(w, `{"data":{"QRCODE":"abc"}}`)
	})

	_, err := c.GetTicket(context.Background(), "5")

	require.ErrorIs(t, err, ErrUnrecognizedResponse)
}

func TestValidateTicketDefaultsToOneValidated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/billets/validate/3f1c2b9e-8d4a-4f6b-9c1d-2e3f4a5b6c7d", r.URL.Path)
		_, _ = io.WriteString(w, `{"message":"Billet valide","data":{"client":{"PRENOMPERS":"Lea","NOMPERS":"Martin"},"NOMMANIF":"Nuit Electro"}}`)
	})

	result, err := c.ValidateTicket(context.Background(), "3f1c2b9e-8d4a-4f6b-9c1d-2e3f4a5b6c7d")

	require.NoError(t, err)
	require.Equal(t, ValidationResult{
		Validated:  1,
		HolderName: "Lea Martin",
		EventName:  "Nuit Electro",
	}, result)
}

func TestValidateTicketAcceptsEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	result, err := c.ValidateTicket(context.Background(), "code")

	require.NoError(t, err)
	require.Equal(t, 1, result.Validated)
}

func TestValidateTicketSurfacesConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message":"Billet deja utilise"}`)
	})

	_, err := c.ValidateTicket(context.Background(), "code")

	require.True(t, IsConflict(err))
}

func TestValidateTicketsPostsIDsAndReadsCount(t *testing.T) {
	var payload map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/billets/validate", r.URL.Path)
		payload = decodeBody(t, r)
		_, _ = io.WriteString(w, `{"count":"3","holder_name":"Lea Martin"}`)
	})

	result, err := c.ValidateTickets(context.Background(), []cart.ID{"100", "101", "102"})

	require.NoError(t, err)
	require.Equal(t, 3, result.Validated)
	require.Equal(t, "Lea Martin", result.HolderName)
	require.Equal(t, map[string]any{"ticket_ids": []any{"100", "101", "102"}}, payload)
}

func TestValidateTicketsRequiresCountInResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})

	_, err := c.ValidateTickets(context.Background(), []cart.ID{"100"})

	require.ErrorIs(t, err, ErrUnrecognizedResponse)
}

func TestValidateTicketsRejectsEmptyList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected call")
	})

	_, err := c.ValidateTickets(context.Background(), nil)

	require.Error(t, err)
}
