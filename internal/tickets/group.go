package tickets

import (
	"encoding/json"
	"fmt"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/cart"
)

type Options struct {
	// BySessionDate splits an event's tickets per session date.
	BySessionDate bool
}

// Group is the tickets a client holds for one event, presented together at
// the gate.
type Group struct {
	Key         string
	EventID     cart.ID
	Name        string
	SessionDate string
	Count       int
	QRCodes     []string
	TicketIDs   []cart.ID
	UsedCount   int

	// used follows TicketIDs position by position
	used []bool
}

// FullyUsed reports whether every ticket of the group went through the gate.
func (g *Group) FullyUsed() bool {
	return g.Count > 0 && g.UsedCount == g.Count
}

// UnusedIDs keeps ticket order.
func (g *Group) UnusedIDs() []cart.ID {
	ids := make([]cart.ID, 0, g.Count-g.UsedCount)
	for i, id := range g.TicketIDs {
		if !g.used[i] {
			ids = append(ids, id)
		}
	}
	return ids
}

type payload struct {
	TicketIDs []cart.ID `json:"ticket_ids"`
}

// Payload is the batch QR content for the tickets not used yet.
func (g *Group) Payload() (string, error) {
	unused := g.UnusedIDs()
	if len(unused) == 0 {
		return "", fmt.Errorf("group %s has no ticket left to validate", g.Key)
	}
	raw, err := json.Marshal(payload{TicketIDs: unused})
	if err != nil {
		return "", fmt.Errorf("error encoding group payload: %w", err)
	}
	return string(raw), nil
}

// GroupByEvent aggregates tickets in order of first appearance.
func GroupByEvent(list []api.Ticket, opts Options) []*Group {
	var groups []*Group
	byKey := make(map[string]*Group)

	for _, ticket := range list {
		key := groupKey(ticket, opts)
		group, ok := byKey[key]
		if !ok {
			group = &Group{
				Key:     key,
				EventID: ticket.EventID,
				Name:    ticket.EventName,
			}
			if opts.BySessionDate {
				group.SessionDate = ticket.SessionDate
			}
			byKey[key] = group
			groups = append(groups, group)
		}
		if group.Name == "" {
			group.Name = ticket.EventName
		}

		group.Count++
		group.TicketIDs = append(group.TicketIDs, ticket.ID)
		group.QRCodes = append(group.QRCodes, ticket.QRCode)
		group.used = append(group.used, ticket.Used)
		if ticket.Used {
			group.UsedCount++
		}
	}
	return groups
}

func groupKey(ticket api.Ticket, opts Options) string {
	key := ticket.EventID.String()
	if key == "" {
		// unknown event: the ticket stands alone
		key = "ticket:" + ticket.ID.String()
	}
	if opts.BySessionDate {
		key += "@" + ticket.SessionDate
	}
	return key
}
