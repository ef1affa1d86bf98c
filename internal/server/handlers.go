package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/s-rangarajan/festicart/internal/cart"
	"github.com/s-rangarajan/festicart/internal/checkout"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
)

type cartView struct {
	Items []cart.Item `json:"items"`
	Total string      `json:"total"`
	Count int         `json:"count"`
}

func viewOf(c cart.Cart) cartView {
	return cartView{
		Items: c.Lines(),
		Total: c.Total().StringFixed(2),
		Count: c.Count(),
	}
}

type addItemRequest struct {
	ID          cart.ID         `json:"id" validate:"required"`
	SessionID   cart.ID         `json:"session_id"`
	Name        string          `json:"name" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Type        string          `json:"type"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	SessionDate string          `json:"session_date"`
	SessionTime string          `json:"session_time"`
	Image       string          `json:"image"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=card wallet paypal"`
}

type checkoutView struct {
	ReservationIDs []cart.ID `json:"reservation_ids"`
	Total          string    `json:"total"`
	Free           bool      `json:"free"`
}

func (s *Server) cartContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// loggedIn gates cart mutations; reads stay open.
func (s *Server) loggedIn(ctx context.Context, w http.ResponseWriter) bool {
	if _, err := s.identity.UserID(ctx); err != nil {
		writeError(ctx, s.log, w, err)
		return false
	}
	return true
}

func (s *Server) ReadCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancelFunc := s.cartContext(r)
	defer cancelFunc()

	current, err := s.carts.Cart(ctx)
	if err != nil {
		writeError(ctx, s.log, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "error reading cart"))
		return
	}
	writeSuccess(ctx, s.log, w, http.StatusOK, viewOf(current))
}

func (s *Server) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	if req.Price.IsNegative() {
		writeError(r.Context(), s.log, w, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative").
			WithDetails(map[string]string{"price": "must not be negative"}))
		return
	}

	ctx, cancelFunc := s.cartContext(r)
	defer cancelFunc()
	if !s.loggedIn(ctx, w) {
		return
	}

	updated, err := s.carts.AddItem(ctx, cart.Item{
		ID:          req.ID,
		SessionID:   req.SessionID,
		Name:        req.Name,
		Price:       req.Price,
		Type:        req.Type,
		Quantity:    req.Quantity,
		SessionDate: req.SessionDate,
		SessionTime: req.SessionTime,
		Image:       req.Image,
	})
	if err != nil {
		writeError(ctx, s.log, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "error updating cart"))
		return
	}
	writeSuccess(ctx, s.log, w, http.StatusOK, viewOf(updated))
}

// UpdateQuantity sets an absolute quantity; zero or less removes the lines.
func (s *Server) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id := cart.ID(chi.URLParam(r, "id"))

	var req quantityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}

	ctx, cancelFunc := s.cartContext(r)
	defer cancelFunc()
	if !s.loggedIn(ctx, w) {
		return
	}

	updated, err := s.carts.UpdateQuantity(ctx, id, *req.Quantity)
	if err != nil {
		writeError(ctx, s.log, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "error updating cart"))
		return
	}
	writeSuccess(ctx, s.log, w, http.StatusOK, viewOf(updated))
}

func (s *Server) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := cart.ID(chi.URLParam(r, "id"))

	ctx, cancelFunc := s.cartContext(r)
	defer cancelFunc()
	if !s.loggedIn(ctx, w) {
		return
	}

	updated, err := s.carts.RemoveItem(ctx, id)
	if err != nil {
		writeError(ctx, s.log, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "error updating cart"))
		return
	}
	writeSuccess(ctx, s.log, w, http.StatusOK, viewOf(updated))
}

func (s *Server) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancelFunc := s.cartContext(r)
	defer cancelFunc()
	if !s.loggedIn(ctx, w) {
		return
	}

	if err := s.carts.Clear(ctx); err != nil {
		writeError(ctx, s.log, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "error clearing cart"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout reserves every line for the logged in user. An empty body pays by
// card.
func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeOptionalJSONBody(r, &req); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}

	method := checkout.PaymentCard
	if req.PaymentMethod != "" {
		parsed, err := checkout.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			writeError(r.Context(), s.log, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}
		method = parsed
	}

	ctx := r.Context()
	userID, err := s.identity.UserID(ctx)
	if err != nil {
		writeError(ctx, s.log, w, err)
		return
	}
	ctx = s.log.WithUserID(ctx, userID.String())

	result, err := s.checkout.Checkout(ctx, userID, method)
	if err != nil {
		writeError(ctx, s.log, w, withLineDetails(err, result))
		return
	}

	writeSuccess(ctx, s.log, w, http.StatusCreated, checkoutView{
		ReservationIDs: result.ReservationIDs,
		Total:          result.Total.StringFixed(2),
		Free:           result.Free,
	})
}

// withLineDetails tells the caller which line stopped the checkout and which
// reservations were already made.
func withLineDetails(err error, partial checkout.Result) error {
	var lineErr *checkout.LineError
	typed := pkgerrors.As(err)
	if typed == nil || !errors.As(err, &lineErr) {
		return err
	}
	reserved := partial.ReservationIDs
	if reserved == nil {
		reserved = []cart.ID{}
	}
	return pkgerrors.Wrap(typed.Code(), err, typed.Message()).WithDetails(map[string]any{
		"line":            lineErr.Index,
		"event_id":        lineErr.Item.ID,
		"reservation_ids": reserved,
	})
}
