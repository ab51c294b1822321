package mailer

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/srgjo27/eventflow/internal/core/ports"
)

const defaultSendTimeout = 20 * time.Second

var _ ports.Mailer = (*SMTPMailer)(nil)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	dialer  dialer
	from    string
	timeout time.Duration
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newSMTPMailer(d, cfg.From, cfg.Timeout)
}

func newSMTPMailer(d dialer, from string, timeout time.Duration) *SMTPMailer {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &SMTPMailer{dialer: d, from: from, timeout: timeout}
}

// Send returns once the relay accepted the message, the timeout elapsed or
// ctx was canceled. gomail has no context support, so an abandoned dial keeps
// running in the background until the relay answers.
func (m *SMTPMailer) Send(ctx context.Context, msg ports.Message) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	gm := buildMessage(m.from, msg)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(gm)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

func buildMessage(from string, msg ports.Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTMLBody)

	if att := msg.Attachment; len(att.Content) > 0 {
		content := att.Content
		gm.Attach(att.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
		)
	}
	return gm
}
