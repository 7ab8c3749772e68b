package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// requestCarrier reads and writes propagation headers on a fiber request.
type requestCarrier struct{ c *fiber.Ctx }

func (r requestCarrier) Get(key string) string { return r.c.Get(key) }

func (r requestCarrier) Set(key, value string) { r.c.Request().Header.Set(key, value) }

func (r requestCarrier) Keys() []string {
	var keys []string
	r.c.Request().Header.VisitAll(func(k, _ []byte) { keys = append(keys, string(k)) })
	return keys
}

// TracingMiddleware opens a server span per request, continuing any
// incoming W3C trace, and returns the trace ID in X-Trace-ID. Spans are
// renamed to the matched route once routing is done so IDs in paths do not
// explode span cardinality.
func TracingMiddleware(tracer trace.Tracer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), requestCarrier{c})
		ctx, span := tracer.Start(parent, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("net.peer.ip", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(c.Method() + " " + route.Path)
			span.SetAttributes(attribute.String("http.route", route.Path))
		}
		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		if uid, ok := c.Locals("userID").(uint); ok {
			span.SetAttributes(attribute.Int64("user.id", int64(uid)))
		}

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(status))
		}
		return err
	}
}
