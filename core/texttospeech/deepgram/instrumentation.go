package deepgram

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/knolabs/daela/core/texttospeech/deepgram"

var logger = otelslog.NewLogger(scopeName)
