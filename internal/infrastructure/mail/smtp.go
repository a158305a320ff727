package mail

import (
	"context"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
	"github.com/rs/zerolog"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	// Insecure downgrades TLS to opportunistic (local relays, mailhog).
	Insecure bool
}

type SMTPGateway struct {
	cfg SMTPConfig
	lg  zerolog.Logger
}

func NewSMTPGateway(cfg SMTPConfig, lg zerolog.Logger) *SMTPGateway {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPGateway{
		cfg: cfg,
		lg:  lg.With().Str("component", "smtp_gateway").Logger(),
	}
}

func (g *SMTPGateway) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	m := gomail.NewMsg()
	if err := m.From(g.cfg.From); err != nil {
		return PermanentError{msg: "invalid from address: " + err.Error()}
	}
	if err := m.To(msg.To); err != nil {
		return PermanentError{msg: "invalid to address: " + err.Error()}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}

	client, err := gomail.NewClient(g.cfg.Host, g.clientOptions()...)
	if err != nil {
		return PermanentError{msg: "smtp client init failed: " + err.Error()}
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		text := err.Error()
		if containsAny(text, "535", "5.7.8", "authentication") {
			return PermanentError{msg: "smtp auth failed: " + text}
		}
		return err
	}

	g.lg.Debug().Str("subject", msg.Subject).Msg("smtp send ok")
	return nil
}

func (g *SMTPGateway) clientOptions() []gomail.Option {
	policy := gomail.TLSMandatory
	if g.cfg.Insecure {
		policy = gomail.TLSOpportunistic
	}
	opts := []gomail.Option{
		gomail.WithPort(g.cfg.Port),
		gomail.WithTLSPolicy(policy),
		gomail.WithTimeout(g.cfg.Timeout),
	}
	if g.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(g.cfg.Username),
			gomail.WithPassword(g.cfg.Password),
		)
	}
	return opts
}

func containsAny(s string, subs ...string) bool {
	for _, x := range subs {
		if x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}
