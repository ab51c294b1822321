package mailer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/platform/logging"
)

var _ ports.Mailer = (*ConsoleMailer)(nil)

// ConsoleMailer logs messages instead of sending them. Used when no SMTP
// relay is configured.
type ConsoleMailer struct{}

func NewConsole() *ConsoleMailer {
	return &ConsoleMailer{}
}

func (c *ConsoleMailer) Send(ctx context.Context, msg ports.Message) error {
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"to":         msg.To,
		"subject":    msg.Subject,
		"attachment": msg.Attachment.Filename,
		"bytes":      len(msg.Attachment.Content),
	}).Info("[mail] message not sent, no SMTP relay configured")
	return nil
}
