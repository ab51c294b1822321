package artifact_test

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/eventflow/internal/core/artifact"
	"github.com/srgjo27/eventflow/internal/core/domain"
)

func fixtures() (*domain.Buyer, *domain.Event, *domain.Batch) {
	venue := "Arena Norte"
	return &domain.Buyer{ID: "buyer-1", Name: "Ana", Email: "ana@example.com"},
		&domain.Event{
			ID:       "event-1",
			Title:    "Rock Night",
			StartsAt: domain.ResolvedTimestamp(time.Date(2026, 11, 20, 22, 30, 0, 0, time.UTC).Unix()),
			Venue:    &venue,
		},
		&domain.Batch{ID: "batch-1", EventID: "event-1", Name: "First batch", Price: 50, Quantity: 10}
}

func decodeQR(t *testing.T, pngBytes []byte) string {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	require.NoError(t, err)
	res, err := zxingqr.NewQRCodeReader().Decode(bmp, nil)
	require.NoError(t, err)
	return res.GetText()
}

func TestGenerate_Success(t *testing.T) {
	buyer, event, batch := fixtures()
	gen := artifact.NewGenerator()

	a, err := gen.Generate(buyer, event, batch, "tkt-123")

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(a.PDF, []byte("%PDF-")))
	assert.Equal(t, "EVENTFLOW-tkt-123", a.Payload)
	assert.Equal(t, "Ticket_Rock_Night_tkt-123.pdf", a.Filename)
	assert.Equal(t, "EVENTFLOW-tkt-123", decodeQR(t, a.QRCode))
}

func TestGenerate_PayloadIsDeterministic(t *testing.T) {
	buyer, event, batch := fixtures()
	gen := artifact.NewGenerator()

	first, err := gen.Generate(buyer, event, batch, "tkt-42")
	require.NoError(t, err)
	second, err := gen.Generate(buyer, event, batch, "tkt-42")
	require.NoError(t, err)

	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, first.QRCode, second.QRCode)
	assert.Equal(t, decodeQR(t, first.QRCode), decodeQR(t, second.QRCode))

	id, ok := artifact.ParsePayload(decodeQR(t, second.QRCode))
	assert.True(t, ok)
	assert.Equal(t, "tkt-42", id)
}

func TestGenerate_Fallbacks(t *testing.T) {
	buyer, event, batch := fixtures()
	event.StartsAt = domain.PendingTimestamp()
	event.Venue = nil
	gen := artifact.NewGenerator(artifact.WithCompression(false))

	a, err := gen.Generate(buyer, event, batch, "tkt-7")

	require.NoError(t, err)
	assert.Contains(t, string(a.PDF), "Date: To be defined")
	assert.Contains(t, string(a.PDF), "Venue: To be defined")
	assert.Contains(t, string(a.PDF), "Price: 50.00")
	assert.Contains(t, string(a.PDF), "ID: tkt-7")
}

func TestGenerate_FormatsStartInLocation(t *testing.T) {
	buyer, event, batch := fixtures()
	loc := time.FixedZone("BRT", -3*60*60)
	gen := artifact.NewGenerator(artifact.WithCompression(false), artifact.WithLocation(loc))

	a, err := gen.Generate(buyer, event, batch, "tkt-8")

	require.NoError(t, err)
	assert.Contains(t, string(a.PDF), "Date: 20/11/2026 19:30")
}

func TestGenerate_Failures(t *testing.T) {
	buyer, event, batch := fixtures()
	gen := artifact.NewGenerator()

	_, err := gen.Generate(buyer, event, batch, "  ")
	assert.True(t, errors.Is(err, domain.ErrArtifactGenerationFailed))

	_, err = gen.Generate(nil, event, batch, "tkt-1")
	assert.True(t, errors.Is(err, domain.ErrArtifactGenerationFailed))

	batch.Price = math.NaN()
	_, err = gen.Generate(buyer, event, batch, "tkt-1")
	assert.True(t, errors.Is(err, domain.ErrArtifactGenerationFailed))
}

func TestParsePayload(t *testing.T) {
	id, ok := artifact.ParsePayload("EVENTFLOW-abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = artifact.ParsePayload("OTHER-abc")
	assert.False(t, ok)

	_, ok = artifact.ParsePayload("EVENTFLOW-")
	assert.False(t, ok)
}

func TestFilename_SanitizesTitle(t *testing.T) {
	assert.Equal(t, "Ticket_Show__Caf___2026_x.pdf", artifact.Filename("Show: Café! 2026", "x"))
	assert.Equal(t, "Ticket_Event_x.pdf", artifact.Filename("", "x"))
}
