// In file: internal/logger/resty.go
package logger

import (
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// restyLogger routes resty's internal messages (failed attempts, retries) through zerolog
// instead of resty's own stderr logger.
type restyLogger struct {
	log zerolog.Logger
}

// Resty adapts a zerolog.Logger to resty.Logger.
func Resty(l zerolog.Logger) resty.Logger {
	return restyLogger{log: l.With().Str("component", "http").Logger()}
}

func (r restyLogger) Errorf(format string, v ...any) {
	r.log.Warn().Msg(clean(format, v...))
}

func (r restyLogger) Warnf(format string, v ...any) {
	r.log.Warn().Msg(clean(format, v...))
}

func (r restyLogger) Debugf(format string, v ...any) {
	r.log.Debug().Msg(clean(format, v...))
}

func clean(format string, v ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
