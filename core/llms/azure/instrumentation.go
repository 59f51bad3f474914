package azure

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/knolabs/daela/core/llms/azure"

var tracer = otel.Tracer(scopeName)
