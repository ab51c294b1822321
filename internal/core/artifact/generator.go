package artifact

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/srgjo27/eventflow/internal/core/domain"
)

const (
	pageMargin = 50.0
	qrWidth    = 200.0
	qrImage    = "ticket-qr"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Artifact is the buyer-facing proof of purchase.
type Artifact struct {
	PDF      []byte
	QRCode   []byte
	Payload  string
	Filename string
}

type Generator struct {
	loc         *time.Location
	compression bool
}

type Option func(*Generator)

// WithLocation sets the time zone event start times are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithCompression toggles PDF stream compression. Disabled output keeps the
// text readable, which tests rely on.
func WithCompression(on bool) Option {
	return func(g *Generator) {
		g.compression = on
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{loc: time.UTC, compression: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the ticket PDF. It performs no I/O, so a failed call can
// simply be repeated. Every failure wraps domain.ErrArtifactGenerationFailed.
func (g *Generator) Generate(buyer *domain.Buyer, event *domain.Event, batch *domain.Batch, ticketID string) (*Artifact, error) {
	if buyer == nil || event == nil || batch == nil {
		return nil, fmt.Errorf("%w: missing purchase records", domain.ErrArtifactGenerationFailed)
	}
	if strings.TrimSpace(ticketID) == "" {
		return nil, fmt.Errorf("%w: empty ticket id", domain.ErrArtifactGenerationFailed)
	}
	if math.IsNaN(batch.Price) || math.IsInf(batch.Price, 0) {
		return nil, fmt.Errorf("%w: invalid price for batch %s", domain.ErrArtifactGenerationFailed, batch.ID)
	}

	payload := Payload(ticketID)
	qr, err := EncodeQR(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactGenerationFailed, err)
	}

	pdfBytes, err := g.render(buyer, event, batch, ticketID, qr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactGenerationFailed, err)
	}

	return &Artifact{
		PDF:      pdfBytes,
		QRCode:   qr,
		Payload:  payload,
		Filename: Filename(event.Title, ticketID),
	}, nil
}

func (g *Generator) render(buyer *domain.Buyer, event *domain.Event, batch *domain.Batch, ticketID string, qr []byte) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(g.compression)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(time.Unix(0, 0).UTC())
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle("EventFlow ticket "+ticketID, true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(30, 64, 175)
	pdf.CellFormat(0, 30, "EVENTFLOW TICKET", "", 1, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0, 0, 0)
	lines := []string{
		"Name: " + orDefault(buyer.Name, "Guest"),
		"Event: " + orDefault(event.Title, "Event"),
		"Date: " + domain.FormatTimestamp(event.StartsAt, g.loc),
		"Venue: " + event.VenueOrUnspecified(),
		"Batch: " + orDefault(batch.Name, "Batch"),
		"Price: " + domain.FormatPrice(batch.Price),
		"ID: " + ticketID,
	}
	for _, line := range lines {
		pdf.CellFormat(0, 18, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(12)

	pdf.RegisterImageOptionsReader(qrImage, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pageWidth, _ := pdf.GetPageSize()
	y := pdf.GetY()
	pdf.ImageOptions(qrImage, (pageWidth-qrWidth)/2, y, qrWidth, qrWidth, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.SetY(y + qrWidth + 24)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(0, 14, "Present this QR code at the event entrance", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the attachment name for a ticket, e.g. Ticket_Rock_Night_<id>.pdf.
func Filename(eventTitle, ticketID string) string {
	title := unsafeFilenameChars.ReplaceAllString(orDefault(eventTitle, "Event"), "_")
	return fmt.Sprintf("Ticket_%s_%s.pdf", title, ticketID)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
