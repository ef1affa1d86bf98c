package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/cart"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
	"github.com/s-rangarajan/festicart/internal/logger"
	"github.com/s-rangarajan/festicart/internal/metrics"
)

const fallbackMessage = "the reservation could not be completed, please try again"

type Reserver interface {
	CreateReservation(context.Context, api.ReservationRequest) (api.Reservation, error)
	CreateFreeReservation(context.Context, api.ReservationRequest) (api.Reservation, error)
}

type CartStore interface {
	Cart(context.Context) (cart.Cart, error)
	RemoveLines(context.Context, []cart.Item) (cart.Cart, error)
}

type Result struct {
	ReservationIDs []cart.ID
	Total          decimal.Decimal
	Free           bool
}

// LineError is the failure of one cart line. Lines before it were reserved.
type LineError struct {
	Index int
	Item  cart.Item
	Err   error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("reserving line %d (event %s): %v", e.Index, e.Item.ID, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

type Service struct {
	reserver Reserver
	carts    CartStore
	metrics  *metrics.CheckoutMetrics
	log      *logger.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(reserver Reserver, carts CartStore, opts ...Option) *Service {
	s := &Service{
		reserver: reserver,
		carts:    carts,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout reserves every line of the cart one after the other. A zero total
// goes through free reservations and ignores method. Once every line got a
// reservation id, exactly the reserved lines leave the cart; the first failure
// stops the loop and leaves the cart as it was.
func (s *Service) Checkout(ctx context.Context, userID cart.ID, method PaymentMethod) (Result, error) {
	started := s.now()
	if userID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "you need to be logged in to check out")
	}
	ctx = s.log.WithUserID(ctx, userID.String())

	current, err := s.carts.Cart(ctx)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "could not load your cart")
	}
	if current.IsEmpty() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "your cart is empty")
	}

	result := Result{Total: current.Total(), Free: current.IsFree()}
	if !result.Free && !method.Valid() {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "choose a payment method").
			WithDetails(map[string]string{"payment_method": "must be one of card wallet"})
	}
	paymentLabel := "free"
	if !result.Free {
		paymentLabel = method.String()
	}

	for i, line := range current.Lines() {
		req := api.ReservationRequest{
			EventID:  line.ID,
			Quantity: line.Quantity,
			UserID:   userID,
		}

		var reservation api.Reservation
		if result.Free {
			reservation, err = s.reserver.CreateFreeReservation(ctx, req)
		} else {
			req.PaymentCode = method.Code()
			reservation, err = s.reserver.CreateReservation(ctx, req)
		}
		if err == nil && reservation.ID == "" {
			err = api.ErrNoReservationID
		}
		s.metrics.IncReservation(paymentLabel, err == nil)

		if err != nil {
			lineErr := &LineError{Index: i, Item: line, Err: err}
			s.log.Error(s.log.WithEventID(ctx, line.ID.String()), "checkout stopped", lineErr)
			s.metrics.ObserveCheckout(s.now().Sub(started), false)
			return Result{ReservationIDs: result.ReservationIDs}, lineFailure(lineErr)
		}
		result.ReservationIDs = append(result.ReservationIDs, reservation.ID)
	}

	if _, err := s.carts.RemoveLines(ctx, current.Lines()); err != nil {
		// reservations exist remotely, only the local cart is stale
		s.log.Error(ctx, "reservations made but cart not cleared", err)
	}
	s.metrics.ObserveCheckout(s.now().Sub(started), true)
	s.log.Info(ctx, "checkout completed")
	return result, nil
}

// lineFailure turns a line error into what the user sees: the server message
// when there is one, a generic text otherwise.
func lineFailure(lineErr *LineError) error {
	if typed := pkgerrors.As(lineErr.Err); typed != nil {
		return pkgerrors.Wrap(typed.Code(), lineErr, typed.Message()).WithDetails(typed.Details())
	}

	message := api.Message(lineErr.Err)
	if message == "" || errors.Is(lineErr.Err, api.ErrNoReservationID) {
		message = fallbackMessage
	}
	code := pkgerrors.CodeDependency
	if api.IsConflict(lineErr.Err) {
		code = pkgerrors.CodeConflict
	}
	return pkgerrors.Wrap(code, lineErr, message)
}
