package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/cart"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
	"github.com/s-rangarajan/festicart/internal/logger"
)

// noSessionKey sorts events without any session after everything else.
const noSessionKey = "9999-12-31"

type EventSource interface {
	ListEvents(context.Context) ([]api.Event, error)
	GetEvent(context.Context, cart.ID) (api.Event, error)
	AvailablePlaces(context.Context, cart.ID) (int, error)
}

// Identity tells whether someone is logged in.
type Identity interface {
	UserID(context.Context) (cart.ID, error)
}

type CartAdder interface {
	AddItem(context.Context, cart.Item) (cart.Cart, error)
}

// Listing is an event with the session shown for it on the list.
type Listing struct {
	Event   api.Event
	Session *api.Session
	Type    string
}

type Service struct {
	events   EventSource
	identity Identity
	carts    CartAdder
	added    *cart.AddedTracker
	log      *logger.Logger
}

func NewService(events EventSource, identity Identity, carts CartAdder, added *cart.AddedTracker, log *logger.Logger) *Service {
	if added == nil {
		added = cart.NewAddedTracker(cart.DefaultAddedWindow, nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		events:   events,
		identity: identity,
		carts:    carts,
		added:    added,
		log:      log,
	}
}

// Browse lists events in chronological order of their relevant session. With
// a day ("MM-DD") only events playing that day are kept.
func (s *Service) Browse(ctx context.Context, day string) ([]Listing, error) {
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, messageOr(err, "could not load events"))
	}

	listings := make([]Listing, 0, len(events))
	for _, event := range events {
		listing := Listing{Event: event, Type: EventType(event)}
		if session, ok := SelectSession(event.Sessions, day); ok {
			listing.Session = &session
		}
		if day != "" && listing.Session == nil {
			continue
		}
		listings = append(listings, listing)
	}

	sort.SliceStable(listings, func(i, j int) bool {
		return sortKey(listings[i].Session) < sortKey(listings[j].Session)
	})
	return listings, nil
}

// SelectSession picks the first session on day when one is given, else the
// earliest session by date and start time.
func SelectSession(sessions []api.Session, day string) (api.Session, bool) {
	if len(sessions) == 0 {
		return api.Session{}, false
	}
	if day != "" {
		for _, session := range sessions {
			if strings.Contains(session.Date, day) {
				return session, true
			}
		}
		return api.Session{}, false
	}

	best := sessions[0]
	for _, session := range sessions[1:] {
		if sortKey(&session) < sortKey(&best) {
			best = session
		}
	}
	return best, true
}

func sortKey(session *api.Session) string {
	if session == nil {
		return noSessionKey
	}
	start := session.StartTime
	if start == "" {
		start = "00:00"
	}
	return session.Date + " " + start
}

func EventType(event api.Event) string {
	switch {
	case event.IsConcert:
		return "Concert"
	case event.IsConference:
		return "Conference"
	case event.IsWorkshop:
		return "Workshop"
	case strings.TrimSpace(event.Kind) != "":
		return event.Kind
	}
	return "Event"
}

// CartItemFor builds the cart line for an event at a session. A nil session
// gives a line without session identity.
func CartItemFor(event api.Event, session *api.Session) cart.Item {
	item := cart.Item{
		ID:       event.ID,
		Name:     event.Name,
		Price:    event.Price,
		Type:     EventType(event),
		Quantity: 1,
		Image:    event.Poster,
	}
	if session != nil {
		item.SessionID = session.ID
		item.SessionDate = session.Date
		item.SessionTime = session.StartTime
	}
	return item
}

// AddToCart adds one place for a listing. Only logged in users may add.
func (s *Service) AddToCart(ctx context.Context, listing Listing) (cart.Cart, error) {
	if _, err := s.identity.UserID(ctx); err != nil {
		return cart.Cart{}, err
	}

	item := CartItemFor(listing.Event, listing.Session)
	updated, err := s.carts.AddItem(ctx, item)
	if err != nil {
		return cart.Cart{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "could not save your cart")
	}
	s.added.MarkAdded(item.ID)
	return updated, nil
}

// AddEventToCart is the detail page flow: the event is refetched, refused
// when sold out, and added at its first session.
func (s *Service) AddEventToCart(ctx context.Context, id cart.ID) (cart.Cart, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			return cart.Cart{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "event not found")
		}
		return cart.Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, messageOr(err, "could not load the event"))
	}

	places, err := s.events.AvailablePlaces(ctx, id)
	if err != nil {
		s.log.Warn(s.log.WithEventID(ctx, id.String()), "availability unknown, adding anyway")
	} else if places <= 0 {
		return cart.Cart{}, pkgerrors.New(pkgerrors.CodeConflict, "this event is sold out")
	}

	listing := Listing{Event: event, Type: EventType(event)}
	if len(event.Sessions) > 0 {
		listing.Session = &event.Sessions[0]
	}
	return s.AddToCart(ctx, listing)
}

func (s *Service) RecentlyAdded(id cart.ID) bool {
	return s.added.RecentlyAdded(id)
}

func messageOr(err error, fallback string) string {
	if msg := api.Message(err); msg != "" {
		return msg
	}
	return fallback
}
