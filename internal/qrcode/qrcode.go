// Package qrcode turns participant ids into QR images and validates scanned
// payloads. The payload is the bare id; possession of the code is the credential.
package qrcode

import (
	"errors"
	"regexp"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	minSize     = 64
	maxSize     = 1024
)

// ErrInvalidPayload is returned for scans that cannot be a participant id.
var ErrInvalidPayload = errors.New("QR code tidak valid")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Encode renders id as a PNG of size x size pixels.
func Encode(id string, size int) ([]byte, error) {
	q, err := newCode(id)
	if err != nil {
		return nil, err
	}
	return q.PNG(clampSize(size))
}

// Terminal renders id as block characters for printing on a console.
func Terminal(id string) (string, error) {
	q, err := newCode(id)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}

// Decode extracts the participant id from a scanned payload.
func Decode(payload string) (string, error) {
	id := strings.TrimSpace(payload)
	if !idPattern.MatchString(id) {
		return "", ErrInvalidPayload
	}
	return id, nil
}

func newCode(id string) (*qrcode.QRCode, error) {
	if !idPattern.MatchString(id) {
		return nil, ErrInvalidPayload
	}
	return qrcode.New(id, qrcode.Medium)
}

func clampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < minSize:
		return minSize
	case size > maxSize:
		return maxSize
	}
	return size
}
