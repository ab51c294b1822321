package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/platform/logging"
)

type fakeDialer struct {
	delay time.Duration
	err   error
	sent  []*gomail.Message
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	time.Sleep(f.delay)
	f.sent = append(f.sent, m...)
	return f.err
}

func testMessage() ports.Message {
	return ports.Message{
		To:       "ana@example.com",
		Subject:  "Your ticket for Rock Night",
		HTMLBody: "<p>Hello, Ana!</p>",
		Attachment: ports.Attachment{
			Filename:    "Ticket_Rock_Night_t1.pdf",
			ContentType: "application/pdf",
			Content:     []byte("%PDF-1.3 fake"),
		},
	}
}

func TestBuildMessage(t *testing.T) {
	gm := buildMessage("tickets@eventflow.dev", testMessage())

	var buf bytes.Buffer
	_, err := gm.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "From: tickets@eventflow.dev")
	assert.Contains(t, raw, "To: ana@example.com")
	assert.Contains(t, raw, "Subject: Your ticket for Rock Night")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "Ticket_Rock_Night_t1.pdf")
	assert.Contains(t, raw, "application/pdf")
}

func TestSMTPMailer_Send(t *testing.T) {
	d := &fakeDialer{}
	m := newSMTPMailer(d, "tickets@eventflow.dev", time.Second)

	require.NoError(t, m.Send(context.Background(), testMessage()))
	assert.Len(t, d.sent, 1)
}

func TestSMTPMailer_RelayError(t *testing.T) {
	d := &fakeDialer{err: errors.New("535 authentication failed")}
	m := newSMTPMailer(d, "tickets@eventflow.dev", time.Second)

	err := m.Send(context.Background(), testMessage())

	assert.ErrorContains(t, err, "535")
}

func TestSMTPMailer_Timeout(t *testing.T) {
	d := &fakeDialer{delay: 200 * time.Millisecond}
	m := newSMTPMailer(d, "tickets@eventflow.dev", 10*time.Millisecond)

	err := m.Send(context.Background(), testMessage())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsoleMailer(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ctx := logging.WithLogger(context.Background(), logrus.NewEntry(logger))

	require.NoError(t, NewConsole().Send(ctx, testMessage()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "ana@example.com", entry.Data["to"])
	assert.Equal(t, "Ticket_Rock_Night_t1.pdf", entry.Data["attachment"])
}
