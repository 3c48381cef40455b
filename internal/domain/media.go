package domain

import (
	"fmt"
	"strings"
)

// MediaType enumerates captured media kinds.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// Valid reports whether the media type is known.
func (t MediaType) Valid() bool {
	return t == MediaPhoto || t == MediaVideo
}

// MediaRef points at a captured file on the originating device.
type MediaRef struct {
	URI  string    `json:"uri"`
	Type MediaType `json:"type"`
}

// FileURIPrefix is the scheme prefix carried by device-local media.
const FileURIPrefix = "file://"

// LocalPath strips the file scheme from the URI.
func (m MediaRef) LocalPath() string {
	return strings.TrimPrefix(m.URI, FileURIPrefix)
}

// FileURI formats a filesystem path as a media URI.
func FileURI(path string) string {
	if strings.HasPrefix(path, FileURIPrefix) {
		return path
	}
	return FileURIPrefix + path
}

// ValidateMedia checks every reference has a URI and a known type.
func ValidateMedia(media []MediaRef) error {
	for i, m := range media {
		if strings.TrimSpace(m.URI) == "" {
			return fmt.Errorf("%w: media %d has no uri", ErrValidation, i)
		}
		if !m.Type.Valid() {
			return fmt.Errorf("%w: media %d has unknown type %q", ErrValidation, i, m.Type)
		}
	}
	return nil
}
