package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/config"
	"github.com/baechuer/contacts-api/internal/infrastructure/mail"
	"github.com/baechuer/contacts-api/internal/infrastructure/messaging/rabbitmq"
)

// MailGateway is the delivery backend plus its readiness probe (nil when the
// backend has nothing to ping) and its close func.
type MailGateway struct {
	mail.Gateway
	Ping  func(ctx context.Context) error
	Close func() error
}

func newMailGateway(cfg *config.Config, lg zerolog.Logger) (MailGateway, error) {
	switch cfg.MailGateway {
	case config.MailGatewaySMTP:
		gw := mail.NewSMTPGateway(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Insecure: cfg.IsDev(),
		}, lg)
		return MailGateway{Gateway: gw, Close: noopClose}, nil

	case config.MailGatewayRabbit:
		pub, err := rabbitmq.NewMailPublisher(cfg.RabbitURL, lg)
		if err != nil {
			return MailGateway{}, fmt.Errorf("mail publisher: %w", err)
		}
		return MailGateway{Gateway: pub, Ping: pub.Ping, Close: pub.Close}, nil

	default:
		return MailGateway{Gateway: mail.NewLogGateway(lg), Close: noopClose}, nil
	}
}

func noopClose() error { return nil }
