package mail

import (
	"context"
	"fmt"
	"time"
)

// Notifier renders link mails and hands them to a Gateway (normally the
// Dispatcher). It implements auth.Notifier.
type Notifier struct {
	gw         Gateway
	confirmTTL time.Duration
	resetTTL   time.Duration
}

func NewNotifier(gw Gateway, confirmTTL, resetTTL time.Duration) *Notifier {
	return &Notifier{gw: gw, confirmTTL: confirmTTL, resetTTL: resetTTL}
}

func (n *Notifier) ConfirmationEmail(ctx context.Context, to, link string) error {
	return n.send(ctx, to, linkMail{
		Subject: "Confirm your email",
		Title:   "Confirm your email",
		Intro:   "Click the button below to confirm your email address.",
		Button:  "Confirm email",
		Link:    link,
		Expires: humanDuration(n.confirmTTL),
	})
}

func (n *Notifier) PasswordResetEmail(ctx context.Context, to, link string) error {
	return n.send(ctx, to, linkMail{
		Subject: "Reset your password",
		Title:   "Reset your password",
		Intro:   "Someone asked to reset the password for this account. If it was not you, ignore this email.",
		Button:  "Reset password",
		Link:    link,
		Expires: humanDuration(n.resetTTL),
	})
}

func (n *Notifier) send(ctx context.Context, to string, lm linkMail) error {
	msg, err := lm.render(to)
	if err != nil {
		return fmt.Errorf("render %q: %w", lm.Subject, err)
	}
	return n.gw.Send(ctx, msg)
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%(24*time.Hour) == 0:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case d%time.Hour == 0:
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		return fmt.Sprintf("%d minutes", int(d.Round(time.Minute)/time.Minute))
	}
}
