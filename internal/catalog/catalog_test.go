package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/cart"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
)

type MockEventSource struct {
	TestListEvents      func(context.Context) ([]api.Event, error)
	TestGetEvent        func(context.Context, cart.ID) (api.Event, error)
	TestAvailablePlaces func(context.Context, cart.ID) (int, error)
}

func (m MockEventSource) ListEvents(ctx context.Context) ([]api.Event, error) {
	return m.TestListEvents(ctx)
}

func (m MockEventSource) GetEvent(ctx context.Context, id cart.ID) (api.Event, error) {
	return m.TestGetEvent(ctx, id)
}

func (m MockEventSource) AvailablePlaces(ctx context.Context, id cart.ID) (int, error) {
	return m.TestAvailablePlaces(ctx, id)
}

type MockIdentity struct {
	TestUserID func(context.Context) (cart.ID, error)
}

func (m MockIdentity) UserID(ctx context.Context) (cart.ID, error) {
	return m.TestUserID(ctx)
}

type MockCartAdder struct {
	TestAddItem func(context.Context, cart.Item) (cart.Cart, error)
}

func (m MockCartAdder) AddItem(ctx context.Context, item cart.Item) (cart.Cart, error) {
	return m.TestAddItem(ctx, item)
}

var loggedIn = MockIdentity{TestUserID: func(context.Context) (cart.ID, error) { return "7", nil }}

var loggedOut = MockIdentity{TestUserID: func(context.Context) (cart.ID, error) {
	return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "you need to be logged in")
}}

func festivalEvents() []api.Event {
	return []api.Event{
		{ID: "1", Name: "Late show", IsConcert: true, Sessions: []api.Session{
			{ID: "11", Date: "2026-08-14", StartTime: "23:00"},
			{ID: "12", Date: "2026-08-13", StartTime: "22:00"},
		}},
		{ID: "2", Name: "No sessions yet", Kind: "Exposition"},
		{ID: "3", Name: "Morning talk", IsConference: true, Sessions: []api.Session{
			{ID: "31", Date: "2026-08-13", StartTime: "10:00"},
		}},
		{ID: "4", Name: "Pottery", IsWorkshop: true, Sessions: []api.Session{
			{ID: "41", Date: "2026-08-14"},
		}},
	}
}

func listedIDs(listings []Listing) []cart.ID {
	ids := make([]cart.ID, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.Event.ID)
	}
	return ids
}

func TestBrowseSortsByEarliestSessionWithSessionlessEventsLast(t *testing.T) {
	service := NewService(MockEventSource{
		TestListEvents: func(context.Context) ([]api.Event, error) { return festivalEvents(), nil },
	}, loggedIn, nil, nil, nil)

	listings, err := service.Browse(context.Background(), "")

	require.NoError(t, err)
	require.Equal(t, []cart.ID{"3", "1", "4", "2"}, listedIDs(listings))
	require.Equal(t, cart.ID("12"), listings[1].Session.ID)
	require.Nil(t, listings[3].Session)
	require.Equal(t, "Exposition", listings[3].Type)
}

func TestBrowseFiltersByDay(t *testing.T) {
	service := NewService(MockEventSource{
		TestListEvents: func(context.Context) ([]api.Event, error) { return festivalEvents(), nil },
	}, loggedIn, nil, nil, nil)

	listings, err := service.Browse(context.Background(), "08-14")

	require.NoError(t, err)
	// pottery has no start time so it sorts as midnight
	require.Equal(t, []cart.ID{"4", "1"}, listedIDs(listings))
	require.Equal(t, cart.ID("11"), listings[1].Session.ID)
}

func TestBrowseWrapsBackendErrors(t *testing.T) {
	service := NewService(MockEventSource{
		TestListEvents: func(context.Context) ([]api.Event, error) {
			return nil, &api.Error{Status: http.StatusServiceUnavailable, Message: "Maintenance en cours"}
		},
	}, loggedIn, nil, nil, nil)

	_, err := service.Browse(context.Background(), "")

	typed := pkgerrors.As(err)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())
	require.Equal(t, "Maintenance en cours", typed.Message())
}

func TestEventType(t *testing.T) {
	require.Equal(t, "Concert", EventType(api.Event{IsConcert: true, IsWorkshop: true}))
	require.Equal(t, "Conference", EventType(api.Event{IsConference: true}))
	require.Equal(t, "Workshop", EventType(api.Event{IsWorkshop: true}))
	require.Equal(t, "Exposition", EventType(api.Event{Kind: "Exposition"}))
	require.Equal(t, "Event", EventType(api.Event{Kind: "  "}))
}

func TestCartItemForCarriesSessionIdentity(t *testing.T) {
	event := api.Event{ID: "1", Name: "Late show", Price: decimal.RequireFromString("25.50"), IsConcert: true, Poster: "late.png"}
	session := api.Session{ID: "12", Date: "2026-08-13", StartTime: "22:00"}

	item := CartItemFor(event, &session)

	require.Equal(t, cart.ID("1"), item.ID)
	require.Equal(t, cart.ID("12"), item.SessionID)
	require.Equal(t, "Concert", item.Type)
	require.Equal(t, 1, item.Quantity)
	require.Equal(t, "2026-08-13", item.SessionDate)
	require.Equal(t, "22:00", item.SessionTime)
	require.Equal(t, "late.png", item.Image)
	require.True(t, item.Price.Equal(decimal.RequireFromString("25.5")))

	require.Empty(t, CartItemFor(event, nil).SessionID)
}

func TestAddToCartRequiresLogin(t *testing.T) {
	service := NewService(MockEventSource{}, loggedOut, MockCartAdder{
		TestAddItem: func(context.Context, cart.Item) (cart.Cart, error) {
			t.Fatal("cart must not change when logged out")
			return cart.Cart{}, nil
		},
	}, nil, nil)

	_, err := service.AddToCart(context.Background(), Listing{Event: api.Event{ID: "1"}})

	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
	require.False(t, service.RecentlyAdded("1"))
}

func TestAddToCartMarksEventAddedForTwoSeconds(t *testing.T) {
	now := time.Date(2026, 8, 13, 20, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	var added cart.Item
	service := NewService(MockEventSource{}, loggedIn, MockCartAdder{
		TestAddItem: func(_ context.Context, item cart.Item) (cart.Cart, error) {
			added = item
			c := cart.NewCart()
			c.AddItem(item)
			return c, nil
		},
	}, cart.NewAddedTracker(cart.DefaultAddedWindow, clock), nil)

	session := api.Session{ID: "12"}
	updated, err := service.AddToCart(context.Background(), Listing{Event: api.Event{ID: "1"}, Session: &session})

	require.NoError(t, err)
	require.Equal(t, 1, updated.Count())
	require.Equal(t, cart.ID("12"), added.SessionID)
	require.True(t, service.RecentlyAdded("1"))

	now = now.Add(2 * time.Second)
	require.False(t, service.RecentlyAdded("1"))
}

func TestAddEventToCartRefusesSoldOutEvents(t *testing.T) {
	service := NewService(MockEventSource{
		TestGetEvent: func(context.Context, cart.ID) (api.Event, error) {
			return api.Event{ID: "1"}, nil
		},
		TestAvailablePlaces: func(context.Context, cart.ID) (int, error) {
			return 0, nil
		},
	}, loggedIn, MockCartAdder{}, nil, nil)

	_, err := service.AddEventToCart(context.Background(), "1")

	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestAddEventToCartUsesFirstSessionWhenAvailabilityUnknown(t *testing.T) {
	var added cart.Item
	service := NewService(MockEventSource{
		TestGetEvent: func(context.Context, cart.ID) (api.Event, error) {
			return api.Event{ID: "1", Sessions: []api.Session{{ID: "12"}, {ID: "11"}}}, nil
		},
		TestAvailablePlaces: func(context.Context, cart.ID) (int, error) {
			return 0, errors.New("timeout")
		},
	}, loggedIn, MockCartAdder{
		TestAddItem: func(_ context.Context, item cart.Item) (cart.Cart, error) {
			added = item
			return cart.NewCart(), nil
		},
	}, nil, nil)

	_, err := service.AddEventToCart(context.Background(), "1")

	require.NoError(t, err)
	require.Equal(t, cart.ID("12"), added.SessionID)
}

func TestAddEventToCartMapsNotFound(t *testing.T) {
	service := NewService(MockEventSource{
		TestGetEvent: func(context.Context, cart.ID) (api.Event, error) {
			return api.Event{}, &api.Error{Status: http.StatusNotFound}
		},
	}, loggedIn, MockCartAdder{}, nil, nil)

	_, err := service.AddEventToCart(context.Background(), "404")

	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
