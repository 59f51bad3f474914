package weather

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/knolabs/daela/core/weather"

var tracer = otel.Tracer(scopeName)
