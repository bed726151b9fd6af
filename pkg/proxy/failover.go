package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/security/auth"
	"mercator-hq/rotor/pkg/telemetry/logging"
	"mercator-hq/rotor/pkg/telemetry/tracing"
	"mercator-hq/rotor/pkg/upstream"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "mercator-hq/rotor/pkg/proxy"

// TriesPerCredential is how many consecutive attempts a candidate gets
// before the cursor moves on.
const TriesPerCredential = 2

// Routes label how a request was served.
const (
	RoutePool   = "pool"
	RouteDirect = "direct"
)

// Doer performs one upstream attempt.
type Doer interface {
	Do(ctx context.Context, req *upstream.Request) (*upstream.Response, error)
}

// Result is a successful upstream response. Exactly one of Body and Stream
// is set: buffered responses are fully read, streamed responses are still
// open and must be closed by the caller.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Stream     *upstream.Response

	Route    string
	Attempts int
}

// Executor runs the failover loop for inbound requests.
type Executor struct {
	store    credentials.Store
	client   Doer
	userKeys *auth.UserKeyValidator
	observer Observer
	logger   *slog.Logger
}

// NewExecutor creates an executor. A nil observer disables measurements.
func NewExecutor(store credentials.Store, client Doer, userKeys *auth.UserKeyValidator, observer Observer) *Executor {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Executor{
		store:    store,
		client:   client,
		userKeys: userKeys,
		observer: observer,
		logger:   slog.Default().With("component", "failover"),
	}
}

// Handle serves one inbound request.
//
// A caller presenting a trusted user key is served from the pool: the
// active credentials are ranked once and tried in that order, each
// candidate getting TriesPerCredential consecutive attempts. The attempt
// budget is TriesPerCredential times the pool size. Any other presented
// value is sent upstream as its own credential exactly once.
//
// On failure the returned error is *AuthenticationMissingError,
// *PoolExhaustedError, *UpstreamFailure (the last one observed) or the
// context error if the caller went away.
func (e *Executor) Handle(ctx context.Context, in *InboundRequest) (*Result, error) {
	if in.Key == "" {
		e.logger.WarnContext(ctx, "request without API key", "path", in.Path)
		e.observer.ObserveRequest("", OutcomeUnauthenticated, 0)
		return nil, &AuthenticationMissingError{}
	}

	if !e.userKeys.IsTrusted(in.Key) {
		return e.handleDirect(ctx, in)
	}
	return e.handlePool(ctx, in)
}

func (e *Executor) handleDirect(ctx context.Context, in *InboundRequest) (*Result, error) {
	e.logger.InfoContext(ctx, "forwarding caller credential directly",
		"credential", logging.RedactAPIKey(in.Key),
		"key_location", in.Location.String(),
		"stream", in.Stream,
	)

	result, failure, err := e.attempt(ctx, in, in.Key, RouteDirect, 1, 1)
	if err != nil {
		e.observer.ObserveRequest(RouteDirect, OutcomeCancelled, 1)
		return nil, err
	}
	if failure != nil {
		failure.Attempts = 1
		e.observer.ObserveRequest(RouteDirect, OutcomeUpstreamFailure, 1)
		return nil, failure
	}

	result.Route = RouteDirect
	result.Attempts = 1
	e.observer.ObserveRequest(RouteDirect, OutcomeSuccess, 1)
	return result, nil
}

func (e *Executor) handlePool(ctx context.Context, in *InboundRequest) (*Result, error) {
	active, err := e.store.ListActive(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to load credential pool", "error", err)
		e.observer.ObserveRequest(RoutePool, OutcomeError, 0)
		return nil, err
	}

	ranked := credentials.Rank(active)
	if len(ranked) == 0 {
		e.logger.WarnContext(ctx, "no active credentials in pool")
		e.observer.ObserveRequest(RoutePool, OutcomePoolExhausted, 0)
		return nil, &PoolExhaustedError{}
	}

	budget := TriesPerCredential * len(ranked)
	cursor, tries := 0, 0
	var last *UpstreamFailure

	for attempt := 1; attempt <= budget; attempt++ {
		if cursor >= len(ranked) {
			cursor, tries = 0, 0
		}
		candidate := ranked[cursor]

		result, failure, err := e.attempt(ctx, in, candidate.ID, RoutePool, attempt, budget)
		if err != nil {
			e.observer.ObserveRequest(RoutePool, OutcomeCancelled, attempt)
			return nil, err
		}
		if failure == nil {
			result.Route = RoutePool
			result.Attempts = attempt
			e.observer.ObserveRequest(RoutePool, OutcomeSuccess, attempt)
			return result, nil
		}

		last = failure
		tries++
		if tries >= TriesPerCredential {
			cursor++
			tries = 0
		}
	}

	e.logger.ErrorContext(ctx, "all credentials failed",
		"attempts", budget,
		"pool_size", len(ranked),
		"last_status", last.StatusCode,
	)
	last.Attempts = budget
	e.observer.ObserveRequest(RoutePool, OutcomeUpstreamFailure, budget)
	return nil, last
}

// attempt performs one upstream call with credential and records the
// outcome. It returns a Result on success, an *UpstreamFailure on failure,
// or an error when ctx ended before the attempt could be classified; no
// outcome is recorded in that case.
func (e *Executor) attempt(ctx context.Context, in *InboundRequest, credential, route string, n, budget int) (result *Result, failure *UpstreamFailure, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "upstream.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.AttemptAttributes(route, logging.RedactAPIKey(credential), n, budget, in.Stream)...),
	)
	defer func() {
		switch {
		case err != nil:
			tracing.SetError(span, err)
			span.SetStatus(codes.Error, "cancelled")
		case failure != nil:
			span.SetAttributes(tracing.StatusAttribute(failure.StatusCode))
			span.SetStatus(codes.Error, "upstream failure")
		default:
			span.SetAttributes(tracing.StatusAttribute(result.StatusCode))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	logger := e.logger.With(
		"credential", logging.RedactAPIKey(credential),
		"route", route,
		"attempt", n,
		"max_attempts", budget,
	)
	logger.DebugContext(ctx, "upstream attempt", "stream", in.Stream)

	start := time.Now()
	resp, err := e.client.Do(ctx, in.Outbound(credential))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		failure = &UpstreamFailure{
			StatusCode: http.StatusInternalServerError,
			Body:       []byte(err.Error()),
			Cause:      err,
		}
		e.fail(ctx, logger, credential, route, failure, time.Since(start))
		return nil, failure, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := resp.ReadBody()
		if readErr != nil && ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		failure = &UpstreamFailure{
			StatusCode:  resp.StatusCode,
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
			Cause:       readErr,
		}
		e.fail(ctx, logger, credential, route, failure, time.Since(start))
		return nil, failure, nil
	}

	result = &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}

	if in.Stream {
		result.Stream = resp
	} else {
		body, readErr := resp.ReadBody()
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			failure = &UpstreamFailure{
				StatusCode: http.StatusInternalServerError,
				Body:       []byte(readErr.Error()),
				Cause:      readErr,
			}
			e.fail(ctx, logger, credential, route, failure, time.Since(start))
			return nil, failure, nil
		}
		result.Body = body
	}

	e.record(ctx, credential, credentials.Succeeded())
	e.observer.ObserveAttempt(route, OutcomeSuccess, resp.StatusCode, time.Since(start))
	logger.InfoContext(ctx, "upstream attempt succeeded", "status", resp.StatusCode)
	return result, nil, nil
}

func (e *Executor) fail(ctx context.Context, logger *slog.Logger, credential, route string, failure *UpstreamFailure, d time.Duration) {
	e.record(ctx, credential, credentials.Failed(failure.StatusCode, failure.Body))
	e.observer.ObserveAttempt(route, OutcomeFailure, failure.StatusCode, d)

	args := []any{"status", failure.StatusCode}
	if failure.Cause != nil {
		args = append(args, "error", failure.Cause)
	}
	logger.WarnContext(ctx, "upstream attempt failed", args...)
}

// record persists an attempt outcome. The write outlives a cancelled
// request context, and a store error never fails the request.
//
// Direct credentials are recorded too: the store ignores identifiers it
// does not manage, so only a value that collides with a pool credential
// updates its counters.
func (e *Executor) record(ctx context.Context, credential string, outcome credentials.Outcome) {
	if err := e.store.RecordOutcome(context.WithoutCancel(ctx), credential, outcome); err != nil {
		e.logger.ErrorContext(ctx, "failed to record attempt outcome",
			"credential", logging.RedactAPIKey(credential),
			"error", err,
		)
	}
}
