package scan

import (
	"encoding/json"
	"strings"

	uuid "github.com/satori/go.uuid"

	"github.com/s-rangarajan/festicart/internal/cart"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindSingle is one ticket token, a UUID v4.
	KindSingle
	// KindBatch is a group payload: {"ticket_ids": [...]}.
	KindBatch
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindBatch:
		return "batch"
	}
	return "unknown"
}

type Payload struct {
	Kind      Kind
	Code      string
	TicketIDs []cart.ID
}

const uuidLength = 36

// Classify decides how a scanned value is validated. Only the canonical
// hyphenated UUID v4 form and a JSON object with a non-empty ticket_ids list
// are ours; everything else is KindUnknown and never reaches the network.
func Classify(raw string) Payload {
	value := strings.TrimSpace(raw)

	if isTicketToken(value) {
		return Payload{Kind: KindSingle, Code: value}
	}
	if ids, ok := batchIDs(value); ok {
		return Payload{Kind: KindBatch, TicketIDs: ids}
	}
	return Payload{Kind: KindUnknown, Code: value}
}

func isTicketToken(value string) bool {
	if len(value) != uuidLength {
		return false
	}
	id, err := uuid.FromString(value)
	if err != nil {
		return false
	}
	return id.Version() == uuid.V4 &&
		id.Variant() == uuid.VariantRFC4122 &&
		strings.EqualFold(id.String(), value)
}

type batchPayload struct {
	TicketIDs []cart.ID `json:"ticket_ids"`
}

func batchIDs(value string) ([]cart.ID, bool) {
	if !strings.HasPrefix(value, "{") {
		return nil, false
	}
	var payload batchPayload
	if err := json.Unmarshal([]byte(value), &payload); err != nil {
		return nil, false
	}
	if len(payload.TicketIDs) == 0 {
		return nil, false
	}
	for _, id := range payload.TicketIDs {
		if strings.TrimSpace(id.String()) == "" {
			return nil, false
		}
	}
	return payload.TicketIDs, true
}
