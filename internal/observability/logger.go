package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pearlryder/CellProfiler/internal/logging"
)

// InitLogger configures the process-wide logger and returns a child
// tagged with the owning component.
func InitLogger(component string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("component", component).Logger()
	return logger
}
