// Package media decodes inline report photos and stores them as resources.
package media

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Predefined media errors.
var (
	ErrMalformedDataURI = errors.New("malformed data URI")
	ErrEmptyPhoto       = errors.New("photo payload is empty")
)

// Photo is a decoded inline image.
type Photo struct {
	ContentType string
	Extension   string
	Data        []byte
}

// Store persists photos and returns a reference clients can fetch.
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}

var dataURIPattern = regexp.MustCompile(`^data:(image/(\w+));base64,(.+)$`)

// ParseDataURI decodes "data:image/<subtype>;base64,<payload>".
func ParseDataURI(uri string) (*Photo, error) {
	m := dataURIPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if m == nil {
		return nil, ErrMalformedDataURI
	}

	data, err := base64.StdEncoding.DecodeString(m[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPhoto
	}

	return &Photo{
		ContentType: strings.ToLower(m[1]),
		Extension:   strings.ToLower(m[2]),
		Data:        data,
	}, nil
}

// IsDataURI reports whether s looks like an inline data URI rather than a
// reference to an already stored resource.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// FileName returns a unique name like report_1700000000000_a1b2c3d4e5f6.jpeg.
func FileName(now time.Time, ext string) string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("report_%d.%s", now.UnixNano(), ext)
	}
	return fmt.Sprintf("report_%d_%s.%s", now.UnixMilli(), hex.EncodeToString(suffix), ext)
}

// SaveDataURI decodes uri and stores it, returning the stored reference.
func SaveDataURI(ctx context.Context, store Store, uri string, now time.Time) (string, error) {
	photo, err := ParseDataURI(uri)
	if err != nil {
		return "", err
	}
	return store.Save(ctx, FileName(now, photo.Extension), photo.ContentType, photo.Data)
}
