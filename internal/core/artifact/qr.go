package artifact

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// PayloadPrefix namespaces QR payloads so scanners can tell our tickets apart.
const PayloadPrefix = "EVENTFLOW"

const qrSize = 300

// Payload is the scannable string for ticketID.
func Payload(ticketID string) string {
	return PayloadPrefix + "-" + ticketID
}

// ParsePayload maps a scanned string back to its ticket id.
func ParsePayload(s string) (string, bool) {
	id, ok := strings.CutPrefix(strings.TrimSpace(s), PayloadPrefix+"-")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// EncodeQR renders payload as a PNG QR code with the highest error
// correction level (H, ~30% recovery).
func EncodeQR(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty qr payload")
	}
	png, err := qrcode.Encode(payload, qrcode.Highest, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
