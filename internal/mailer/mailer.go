// Package mailer delivers the "your video is ready" email. Delivery is
// best-effort: a failed send never changes job state.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
)

// Notifier sends the result link to a recipient.
type Notifier interface {
	SendResultLink(ctx context.Context, to, locale, downloadURL string, expiresAt time.Time) error
}

// Options configures the SMTP mailer.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer is the SMTP-backed Notifier.
type Mailer struct {
	opts Options
}

// New builds a mailer. An empty host yields a mailer that reports itself
// unconfigured; callers skip notification in that case.
func New(opts Options) *Mailer {
	return &Mailer{opts: opts}
}

// Configured reports whether an SMTP host is set.
func (m *Mailer) Configured() bool {
	return m != nil && m.opts.Host != ""
}

var supported = language.NewMatcher([]language.Tag{
	language.English,
	language.Indonesian,
})

// SendResultLink emails the download URL, localized to the recipient's
// locale as collected at checkout.
func (m *Mailer) SendResultLink(ctx context.Context, to, locale, downloadURL string, expiresAt time.Time) error {
	if !m.Configured() {
		return errors.New("mailer: smtp host not configured")
	}

	subject, body := composeResultLink(locale, downloadURL, expiresAt)

	msg := mail.NewMsg()
	if err := msg.From(m.opts.From); err != nil {
		return fmt.Errorf("mailer: set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	clientOpts := []mail.Option{mail.WithPort(m.opts.Port)}
	if m.opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.opts.Username),
			mail.WithPassword(m.opts.Password),
		)
	}
	client, err := mail.NewClient(m.opts.Host, clientOpts...)
	if err != nil {
		return fmt.Errorf("mailer: build client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

func composeResultLink(locale, downloadURL string, expiresAt time.Time) (subject, body string) {
	tag, _ := language.MatchStrings(supported, locale)
	base, _ := tag.Base()
	if base.String() == "id" {
		subject = "Video kamu sudah siap"
		body = fmt.Sprintf(
			"Video hasil render kamu sudah jadi.\n\nUnduh di sini: %s\n\nTautan berlaku sampai %s.\n",
			downloadURL, expiresAt.Format("2 January 2006 15:04 MST"),
		)
		return subject, body
	}
	subject = "Your video is ready"
	body = fmt.Sprintf(
		"Your rendered video is ready.\n\nDownload it here: %s\n\nThe link is available until %s.\n",
		downloadURL, expiresAt.Format("2 January 2006 15:04 MST"),
	)
	return subject, body
}

var _ Notifier = (*Mailer)(nil)
