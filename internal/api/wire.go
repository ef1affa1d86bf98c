package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/s-rangarajan/festicart/internal/cart"
)

// flag decodes the loose booleans the backend emits: true/false, 0/1, "0"/"1"
// and null.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(raw) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("cannot decode %s as a boolean", data)
	}
	return nil
}

// count decodes an integer sent either as a number or a numeric string.
type count int

func (c *count) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("cannot decode %s as an integer: %w", data, err)
	}
	*c = count(n)
	return nil
}

// present reports whether a raw field carried a non-null value.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte("false"))
}

func firstID(ids ...cart.ID) cart.ID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

func firstString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstDecimal(values ...*decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return decimal.Zero
}

// envelope is the usual {"data": ...} wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// unwrap returns the "data" member when present, else the body itself.
func unwrap(body json.RawMessage) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && present(env.Data) {
		return env.Data
	}
	return body
}
