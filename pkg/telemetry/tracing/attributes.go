package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/throttle/pkg/limits/ratelimit"
)

// Attribute keys set on request spans.
const (
	AttrLimiter   = attribute.Key("throttle.limiter")
	AttrAllowed   = attribute.Key("throttle.allowed")
	AttrLimit     = attribute.Key("throttle.limit")
	AttrAskN      = attribute.Key("throttle.ask.n")
	AttrWaitNs    = attribute.Key("throttle.ask.wait_ns")
	AttrRequestID = attribute.Key("throttle.request_id")
	AttrClient    = attribute.Key("throttle.client")
)

// SetLimiter tags the active span with the limiter a request targets.
func SetLimiter(ctx context.Context, name string) {
	trace.SpanFromContext(ctx).SetAttributes(AttrLimiter.String(name))
}

// SetClient tags the active span with the authenticated client.
func SetClient(ctx context.Context, name string) {
	trace.SpanFromContext(ctx).SetAttributes(AttrClient.String(name))
}

// SetHitResult records the outcome of a hit. A rejection is a normal
// outcome and leaves the span status unset; other errors mark it failed.
func SetHitResult(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)

	var limited *ratelimit.LimitedError
	switch {
	case err == nil:
		span.SetAttributes(AttrAllowed.Bool(true))
	case errors.As(err, &limited):
		span.SetAttributes(AttrAllowed.Bool(false), AttrLimit.String(limited.Description))
	default:
		SetError(span, err)
	}
}

// SetAskResult records the projection of an ask.
func SetAskResult(ctx context.Context, n, waitNs int64, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(AttrAskN.Int64(n))
	if err != nil {
		SetError(span, err)
		return
	}
	span.SetAttributes(AttrWaitNs.Int64(waitNs))
}

// SetError records err on span and marks it failed.
func SetError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
