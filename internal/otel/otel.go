//go:build !no_otel

package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the globally registered tracer for the named instrumentation scope.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
