// Package observability holds the process-wide metrics and tracer.
package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is shared by packages that open spans around remote calls. It uses
// the global provider, so spans are no-ops until one is installed.
var Tracer trace.Tracer = otel.Tracer("coach")
