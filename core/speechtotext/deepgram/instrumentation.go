package deepgram

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/knolabs/daela/core/speechtotext/deepgram"

var logger = otelslog.NewLogger(scopeName)
