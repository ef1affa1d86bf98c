package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ID identifies an event or a session. The backend hands out numeric ids but
// some payloads carry them as strings, so both decode to the same value.
// Numbers are kept in their shortest decimal form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	// 5, 5.0 and 5e0 are the same event
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return fmt.Errorf("id %s: %w", n, err)
	}
	*id = ID(d.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type Item struct {
	ID          ID              `json:"id"`
	SessionID   ID              `json:"session_id,omitempty"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Type        string          `json:"type"`
	Quantity    int             `json:"quantity"`
	SessionDate string          `json:"session_date,omitempty"`
	SessionTime string          `json:"session_time,omitempty"`
	Image       string          `json:"image,omitempty"`
}

// SameLine reports whether two items share the line identity (event and session).
func (i Item) SameLine(other Item) bool {
	return i.ID == other.ID && i.SessionID == other.SessionID
}

// Subtotal is price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	Items []Item `json:"items"`
}

func NewCart() Cart {
	return Cart{Items: []Item{}}
}

// AddItem merges item into an existing line with the same identity by
// incrementing its quantity by one, or appends it as a new line.
func (c *Cart) AddItem(item Item) {
	for i := range c.Items {
		if c.Items[i].SameLine(item) {
			c.Items[i].Quantity++
			return
		}
	}

	if item.Quantity < 1 {
		item.Quantity = 1
	}
	c.Items = append(c.Items, item)
}

// RemoveItem drops every line for the event id, whatever its session.
func (c *Cart) RemoveItem(id ID) {
	kept := make([]Item, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	c.Items = kept
}

// UpdateQuantity sets the quantity of the lines for id. A quantity of zero or
// less removes them.
func (c *Cart) UpdateQuantity(id ID, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(id)
		return
	}

	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items[i].Quantity = quantity
		}
	}
}

// RemoveLines takes reserved lines out of the cart. Each matching line loses
// the reserved quantity and is dropped once nothing is left; lines that were
// not reserved stay as they are.
func (c *Cart) RemoveLines(reserved []Item) {
	for _, r := range reserved {
		for i := range c.Items {
			if c.Items[i].SameLine(r) {
				c.Items[i].Quantity -= r.Quantity
				break
			}
		}
	}

	kept := make([]Item, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	c.Items = kept
}

func (c *Cart) Clear() {
	c.Items = []Item{}
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count is the number of tickets across all lines.
func (c Cart) Count() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// IsFree reports whether the cart has lines and costs nothing.
func (c Cart) IsFree() bool {
	return !c.IsEmpty() && c.Total().IsZero()
}

// Lines returns a copy of the lines in insertion order.
func (c Cart) Lines() []Item {
	lines := make([]Item, len(c.Items))
	copy(lines, c.Items)
	return lines
}
