package ui

import (
	"strings"

	"github.com/skip2/go-qrcode"
)

// renderQR draws content as a QR code made of half-block characters.
func renderQR(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(qr.ToSmallString(false), "\n"), nil
}

// truncateMiddle shortens value to limit runes by cutting out its middle.
func truncateMiddle(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	head := (limit - 1) / 2
	tail := limit - 1 - head
	return string(runes[:head]) + "…" + string(runes[len(runes)-tail:])
}
