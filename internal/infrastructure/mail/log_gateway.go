package mail

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/audit"
)

// LogGateway is the development gateway. Bodies carry live tokens, so only
// the subject and a masked recipient are logged.
type LogGateway struct {
	lg zerolog.Logger
}

func NewLogGateway(lg zerolog.Logger) *LogGateway {
	return &LogGateway{lg: lg.With().Str("component", "log_gateway").Logger()}
}

func (g *LogGateway) Send(ctx context.Context, msg Message) error {
	g.lg.Info().
		Str("to", audit.MaskEmail(msg.To)).
		Str("subject", msg.Subject).
		Msg("mail (not sent)")
	return nil
}
