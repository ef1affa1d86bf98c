package scan

import (
	"strings"
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"

	"github.com/s-rangarajan/festicart/internal/cart"
)

func TestClassifySingleTicketToken(t *testing.T) {
	token := uuid.NewV4().String()

	for _, value := range []string{token, strings.ToUpper(token), " " + token + "\n"} {
		payload := Classify(value)
		require.Equal(t, KindSingle, payload.Kind, value)
		require.Equal(t, strings.TrimSpace(value), payload.Code)
	}
}

func TestClassifyBatchPayload(t *testing.T) {
	payload := Classify(`{"ticket_ids":[100,"101",102]}`)

	require.Equal(t, KindBatch, payload.Kind)
	require.Equal(t, []cart.ID{"100", "101", "102"}, payload.TicketIDs)
}

func TestClassifyUnknown(t *testing.T) {
	values := []string{
		"",
		"TICKET-12-4321",
		"3400000000017",
		// version 1
		uuid.NewV1().String(),
		// no hyphens
		strings.ReplaceAll(uuid.NewV4().String(), "-", ""),
		"{" + uuid.NewV4().String() + "}",
		`{"ticket_ids":[]}`,
		`{"ticket_ids":["", "2"]}`,
		`{"ticket_ids":"100"}`,
		`{"tickets":[1,2]}`,
		`[1,2]`,
		`{"ticket_ids":[1,2]`,
	}

	for _, value := range values {
		require.Equal(t, KindUnknown, Classify(value).Kind, value)
	}
}

func TestKindString(t *testing.T) {
	require.Equal(t, "single", KindSingle.String())
	require.Equal(t, "batch", KindBatch.String())
	require.Equal(t, "unknown", KindUnknown.String())
}
