/*
Package tracing records lightweight spans for HTTP requests and plugin
evaluations and writes them to the structured log.

Trace context travels in the X-Trace-ID and X-Span-ID headers, so a caller
can stitch its own logs to the server's. Finished spans are buffered (1000)
and logged by one collector goroutine; a full buffer drops spans rather
than blocking request handling.

# Usage

	tracer := tracing.New("toolrc", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "sandbox.evaluate")
	defer tracer.End(span)
	span.SetTag("phase", "compile")
*/
package tracing
