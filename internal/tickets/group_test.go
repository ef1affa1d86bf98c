package tickets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/cart"
)

func sampleTickets() []api.Ticket {
	return []api.Ticket{
		{ID: "100", EventID: "12", EventName: "Nuit Electro", SessionDate: "2026-08-13", QRCode: "qr-100"},
		{ID: "200", EventID: "20", EventName: "Pottery", SessionDate: "2026-08-14", QRCode: "qr-200", Used: true},
		{ID: "101", EventID: "12", EventName: "Nuit Electro", SessionDate: "2026-08-14", QRCode: "qr-101", Used: true},
		{ID: "102", EventID: "12", EventName: "Nuit Electro", SessionDate: "2026-08-13", QRCode: "qr-102"},
	}
}

func TestGroupByEventKeepsFirstAppearanceOrder(t *testing.T) {
	groups := GroupByEvent(sampleTickets(), Options{})

	require.Len(t, groups, 2)

	electro := groups[0]
	require.Equal(t, cart.ID("12"), electro.EventID)
	require.Equal(t, "Nuit Electro", electro.Name)
	require.Equal(t, 3, electro.Count)
	require.Equal(t, 1, electro.UsedCount)
	require.Equal(t, []cart.ID{"100", "101", "102"}, electro.TicketIDs)
	require.Equal(t, []string{"qr-100", "qr-101", "qr-102"}, electro.QRCodes)
	require.False(t, electro.FullyUsed())

	pottery := groups[1]
	require.Equal(t, 1, pottery.Count)
	require.True(t, pottery.FullyUsed())
}

func TestGroupByEventAndSessionDate(t *testing.T) {
	groups := GroupByEvent(sampleTickets(), Options{BySessionDate: true})

	require.Len(t, groups, 3)
	require.Equal(t, "12@2026-08-13", groups[0].Key)
	require.Equal(t, []cart.ID{"100", "102"}, groups[0].TicketIDs)
	require.Equal(t, "20@2026-08-14", groups[1].Key)
	require.Equal(t, "12@2026-08-14", groups[2].Key)
	require.True(t, groups[2].FullyUsed())
}

func TestUsedCountNeverExceedsCount(t *testing.T) {
	for _, group := range GroupByEvent(sampleTickets(), Options{}) {
		require.LessOrEqual(t, group.UsedCount, group.Count)
		require.Len(t, group.TicketIDs, group.Count)
	}
}

func TestGroupByEventWithoutTickets(t *testing.T) {
	require.Empty(t, GroupByEvent(nil, Options{}))
}

func TestTicketsWithoutEventStayAlone(t *testing.T) {
	groups := GroupByEvent([]api.Ticket{{ID: "1"}, {ID: "2"}}, Options{})

	require.Len(t, groups, 2)
}

func TestPayloadListsUnusedTickets(t *testing.T) {
	groups := GroupByEvent(sampleTickets(), Options{})

	payload, err := groups[0].Payload()

	require.NoError(t, err)
	require.JSONEq(t, `{"ticket_ids":["100","102"]}`, payload)
}

func TestPayloadFailsWhenFullyUsed(t *testing.T) {
	groups := GroupByEvent(sampleTickets(), Options{})

	_, err := groups[1].Payload()

	require.Error(t, err)
}

func TestDuplicateTicketIDsAreTrackedPerTicket(t *testing.T) {
	groups := GroupByEvent([]api.Ticket{
		{ID: "100", EventID: "12", Used: true},
		{ID: "100", EventID: "12"},
		{ID: "101", EventID: "12"},
	}, Options{})

	require.Len(t, groups, 1)
	group := groups[0]
	require.Equal(t, 3, group.Count)
	require.Equal(t, 1, group.UsedCount)
	unused := group.UnusedIDs()
	require.Equal(t, []cart.ID{"100", "101"}, unused)
	require.Len(t, unused, group.Count-group.UsedCount)
}
