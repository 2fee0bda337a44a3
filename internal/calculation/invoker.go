package calculation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rshade/tcocalc/internal/logging"
)

// DefaultTimeout bounds one calculation when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// ErrCalculation is the sentinel every CalculationError matches.
var ErrCalculation = errors.New("calculation failed")

// Engine is the remote calculation service.
type Engine interface {
	Calculate(ctx context.Context, req Request) (Result, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req Request) (Result, error)

// Calculate calls f.
func (f EngineFunc) Calculate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// CalculationError describes one failed calculation. Label names the
// configuration that was being calculated, if any.
type CalculationError struct {
	Label   string
	Status  int
	Message string
	Timeout bool
	Err     error
}

func (e *CalculationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Timeout && e.Label != "":
		return fmt.Sprintf("calculation %s timed out: %s", e.Label, msg)
	case e.Timeout:
		return "calculation timed out: " + msg
	case e.Label != "" && e.Status != 0:
		return fmt.Sprintf("calculation %s failed (status %d): %s", e.Label, e.Status, msg)
	case e.Label != "":
		return fmt.Sprintf("calculation %s failed: %s", e.Label, msg)
	case e.Status != 0:
		return fmt.Sprintf("calculation failed (status %d): %s", e.Status, msg)
	default:
		return "calculation failed: " + msg
	}
}

func (e *CalculationError) Unwrap() error { return e.Err }

// Is matches ErrCalculation.
func (e *CalculationError) Is(target error) bool { return target == ErrCalculation }

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// Invoker runs single calculations against an Engine. It never retries.
type Invoker struct {
	engine  Engine
	timeout time.Duration
}

// NewInvoker returns an Invoker. A non-positive timeout selects DefaultTimeout.
func NewInvoker(engine Engine, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{engine: engine, timeout: timeout}
}

// Timeout returns the per-call bound.
func (i *Invoker) Timeout() time.Duration { return i.timeout }

// Invoke sends req and returns the engine's result. Every failure, including
// an exceeded timeout, is returned as a *CalculationError labelled with label.
func (i *Invoker) Invoke(ctx context.Context, label string, req Request) (Result, error) {
	log := logging.FromContext(ctx)
	start := time.Now()
	audit := logging.NewAuditEntry("calculate", logging.TraceIDFromContext(ctx)).
		WithParameters(req.Params())

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	log.Debug().Ctx(ctx).
		Str("component", "calculation").
		Str("operation", "invoke").
		Str("label", label).
		Str("solution_type", req.SolutionType).
		Int("field_count", len(req.Values)).
		Msg("invoking calculation engine")

	res, err := i.engine.Calculate(callCtx, req)
	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty result", ErrMalformedResult)
	}
	if err != nil {
		cerr := wrapError(callCtx, label, err)
		logging.AuditLoggerFromContext(ctx).Log(ctx, *audit.WithError(cerr.Error()).WithDuration(start))
		log.Error().Ctx(ctx).
			Str("component", "calculation").
			Str("label", label).
			Int("status", cerr.Status).
			Bool("timeout", cerr.Timeout).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("calculation failed")
		return nil, cerr
	}

	logging.AuditLoggerFromContext(ctx).Log(ctx, *audit.WithSuccess(len(res)).WithDuration(start))
	log.Debug().Ctx(ctx).
		Str("component", "calculation").
		Str("label", label).
		Int("result_keys", len(res)).
		Dur("elapsed", time.Since(start)).
		Msg("calculation complete")
	return res, nil
}

func wrapError(callCtx context.Context, label string, err error) *CalculationError {
	var cerr *CalculationError
	if errors.As(err, &cerr) {
		out := *cerr
		if out.Label == "" {
			out.Label = label
		}
		return &out
	}
	out := &CalculationError{Label: label, Err: err, Message: err.Error()}
	var sc statusCoder
	if errors.As(err, &sc) {
		out.Status = sc.StatusCode()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		out.Timeout = true
	}
	return out
}
