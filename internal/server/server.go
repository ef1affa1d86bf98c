package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	uuid "github.com/satori/go.uuid"

	"github.com/s-rangarajan/festicart/internal/cart"
	"github.com/s-rangarajan/festicart/internal/checkout"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
	"github.com/s-rangarajan/festicart/internal/logger"
)

// cart handlers only touch redis; checkout runs on the request context alone
// since it makes one remote call per line.
var requestTimeout = 2 * time.Second

const requestIDHeader = "X-Request-Id"

type CartService interface {
	Cart(context.Context) (cart.Cart, error)
	AddItem(context.Context, cart.Item) (cart.Cart, error)
	RemoveItem(context.Context, cart.ID) (cart.Cart, error)
	UpdateQuantity(context.Context, cart.ID, int) (cart.Cart, error)
	Clear(context.Context) error
}

type Checkouter interface {
	Checkout(context.Context, cart.ID, checkout.PaymentMethod) (checkout.Result, error)
}

type Identity interface {
	UserID(context.Context) (cart.ID, error)
}

type Server struct {
	carts    CartService
	checkout Checkouter
	identity Identity
	gatherer prometheus.Gatherer
	log      *logger.Logger
	timeout  time.Duration
}

func New(carts CartService, checkout Checkouter, identity Identity, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		carts:    carts,
		checkout: checkout,
		identity: identity,
		gatherer: gatherer,
		log:      log,
		timeout:  requestTimeout,
	}
}

// Router exposes the local cart over HTTP.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer, s.requestID)

	r.Get("/cart", s.ReadCart)
	r.Post("/cart/items", s.AddItem)
	r.Put("/cart/items/{id}", s.UpdateQuantity)
	r.Delete("/cart/items/{id}", s.RemoveItem)
	r.Delete("/cart", s.ClearCart)
	r.Post("/checkout", s.Checkout)

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewV4().String()
		}
		w.Header().Set(requestIDHeader, reqID)

		ctx := s.log.WithField(r.Context(), "request_id", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// headerWriter remembers whether the response was started.
type headerWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *headerWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hw := &headerWriter{ResponseWriter: w}
		defer func() {
			if rec := recover(); rec != nil {
				err := pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("panic: %v", rec), "panic")
				if hw.wroteHeader {
					// too late for an error body
					s.log.Error(r.Context(), "panic after response started", err)
					return
				}
				writeError(r.Context(), s.log, hw, err)
			}
		}()
		next.ServeHTTP(hw, r)
	})
}
