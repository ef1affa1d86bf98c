package scan

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/cart"
	"github.com/s-rangarajan/festicart/internal/config"
	"github.com/s-rangarajan/festicart/internal/logger"
	"github.com/s-rangarajan/festicart/internal/metrics"
)

type State int

const (
	Idle State = iota
	CandidateDetected
	Validating
	Accepted
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CandidateDetected:
		return "candidate_detected"
	case Validating:
		return "validating"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Reason string

const (
	ReasonNone          Reason = ""
	ReasonUnknownFormat Reason = "unknown_format"
	ReasonAlreadyUsed   Reason = "already_used"
	ReasonNotFound      Reason = "not_found"
	ReasonFailed        Reason = "failed"
)

const (
	messageUnknownFormat = "this code is not a festival ticket"
	messageAlreadyUsed   = "ticket already used"
	messageNotFound      = "ticket not found"
	messageFailed        = "validation failed"
)

// Rect is a bounding box in frame pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Detection is one code read by the camera.
type Detection struct {
	Value       string
	Box         Rect
	FrameWidth  float64
	FrameHeight float64
}

// Center returns the box center as fractions of the frame size.
func (d Detection) Center() (x, y float64, ok bool) {
	if d.Value == "" || d.Box.Width <= 0 || d.Box.Height <= 0 || d.FrameWidth <= 0 || d.FrameHeight <= 0 {
		return 0, 0, false
	}
	x = (d.Box.X + d.Box.Width/2) / d.FrameWidth
	y = (d.Box.Y + d.Box.Height/2) / d.FrameHeight
	return x, y, true
}

// Haptics gives the operator physical feedback on detection.
type Haptics interface {
	Pulse(time.Duration)
}

type HapticsFunc func(time.Duration)

func (f HapticsFunc) Pulse(d time.Duration) {
	f(d)
}

type TicketValidator interface {
	ValidateTicket(context.Context, string) (api.ValidationResult, error)
	ValidateTickets(context.Context, []cart.ID) (api.ValidationResult, error)
}

// Outcome is what the gate shows once a code was handled.
type Outcome struct {
	State      State
	Kind       Kind
	Reason     Reason
	Validated  int
	HolderName string
	EventName  string
	Message    string
}

// Validator is the gate: it watches frames, picks the code held in the
// center of the frame, validates it remotely and holds the result until
// acknowledged. Frames can come from any goroutine.
type Validator struct {
	mu    sync.Mutex
	state State
	last  Outcome

	tickets TicketValidator
	haptics Haptics
	zoneMin float64
	zoneMax float64
	pulse   time.Duration
	metrics *metrics.ScanMetrics
	log     *logger.Logger
	now     func() time.Time
}

type Option func(*Validator)

// WithZone sets the acceptance zone; a center must lie strictly between min
// and max on both axes.
func WithZone(min, max float64) Option {
	return func(v *Validator) {
		v.zoneMin = min
		v.zoneMax = max
	}
}

func WithHaptics(h Haptics, pulse time.Duration) Option {
	return func(v *Validator) {
		if h != nil {
			v.haptics = h
		}
		if pulse > 0 {
			v.pulse = pulse
		}
	}
}

func WithMetrics(m *metrics.ScanMetrics) Option {
	return func(v *Validator) {
		v.metrics = m
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(v *Validator) {
		if log != nil {
			v.log = log
		}
	}
}

// FromConfig applies the configured zone and pulse length.
func FromConfig(cfg config.ScanConfig) Option {
	return func(v *Validator) {
		v.zoneMin = cfg.ZoneMin
		v.zoneMax = cfg.ZoneMax
		if cfg.HapticPulse > 0 {
			v.pulse = cfg.HapticPulse
		}
	}
}

func NewValidator(tickets TicketValidator, opts ...Option) *Validator {
	v := &Validator{
		state:   Idle,
		tickets: tickets,
		haptics: HapticsFunc(func(time.Duration) {}),
		zoneMin: 0.35,
		zoneMax: 0.65,
		pulse:   100 * time.Millisecond,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Last is the outcome of the most recent handled code.
func (v *Validator) Last() Outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Acknowledge re-arms the scanner after a result was shown.
func (v *Validator) Acknowledge() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Accepted && v.state != Rejected {
		return false
	}
	v.state = Idle
	return true
}

// OnFrame handles one detection. handled is false when the frame was
// dropped: scanner busy or paused, incomplete detection, or code outside the
// acceptance zone. A handled frame blocks until the remote validation ends.
func (v *Validator) OnFrame(ctx context.Context, d Detection) (outcome Outcome, handled bool) {
	if !v.claim(d) {
		return Outcome{}, false
	}
	v.haptics.Pulse(v.pulse)

	payload := Classify(d.Value)
	if payload.Kind == KindUnknown {
		return v.finish(Outcome{
			State:   Rejected,
			Kind:    KindUnknown,
			Reason:  ReasonUnknownFormat,
			Message: messageUnknownFormat,
		}), true
	}

	v.setState(Validating)
	ctx = v.log.WithField(ctx, "scan_kind", payload.Kind.String())
	started := v.now()

	var result api.ValidationResult
	var err error
	switch payload.Kind {
	case KindSingle:
		result, err = v.tickets.ValidateTicket(ctx, payload.Code)
	case KindBatch:
		result, err = v.tickets.ValidateTickets(ctx, payload.TicketIDs)
	}
	v.metrics.ObserveValidation(payload.Kind.String(), v.now().Sub(started))

	if err != nil {
		v.log.Warn(v.log.WithField(ctx, "error", err.Error()), "ticket rejected")
		return v.finish(rejection(payload.Kind, err)), true
	}
	return v.finish(Outcome{
		State:      Accepted,
		Kind:       payload.Kind,
		Validated:  result.Validated,
		HolderName: result.HolderName,
		EventName:  result.EventName,
		Message:    result.Message,
	}), true
}

// claim moves Idle to CandidateDetected when d sits in the acceptance zone.
// Holding any other state is what keeps a single validation in flight.
func (v *Validator) claim(d Detection) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Idle {
		return false
	}
	x, y, ok := d.Center()
	if !ok || !v.inZone(x) || !v.inZone(y) {
		return false
	}
	v.state = CandidateDetected
	return true
}

func (v *Validator) inZone(p float64) bool {
	return p > v.zoneMin && p < v.zoneMax
}

func (v *Validator) setState(s State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = s
}

func (v *Validator) finish(outcome Outcome) Outcome {
	v.mu.Lock()
	v.state = outcome.State
	v.last = outcome
	v.mu.Unlock()

	v.metrics.IncOutcome(outcome.Kind.String(), outcomeLabel(outcome))
	return outcome
}

func outcomeLabel(o Outcome) string {
	if o.State == Accepted {
		return "accepted"
	}
	return string(o.Reason)
}

func rejection(kind Kind, err error) Outcome {
	outcome := Outcome{State: Rejected, Kind: kind}
	switch {
	case api.IsStatus(err, http.StatusConflict):
		outcome.Reason = ReasonAlreadyUsed
		outcome.Message = messageAlreadyUsed
	case api.IsStatus(err, http.StatusNotFound):
		outcome.Reason = ReasonNotFound
		outcome.Message = messageNotFound
	default:
		outcome.Reason = ReasonFailed
		outcome.Message = messageFailed
		if detail := api.Message(err); detail != "" {
			outcome.Message = messageFailed + ": " + detail
		}
	}
	return outcome
}
