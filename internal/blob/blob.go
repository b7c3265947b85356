// Package blob converts document payloads between raw bytes and the base64
// data URI form the API and the generative-AI providers exchange.
package blob

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMimeType is used when a payload is encoded without a declared type.
const DefaultMimeType = "application/octet-stream"

// ErrDecode is matched by every *DecodeError.
var ErrDecode = errors.New("blob: malformed base64 payload")

// DecodeError reports a payload that could not be decoded. Offset is the
// byte offset into the base64 text reported by encoding/base64, or -1.
type DecodeError struct {
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("blob: malformed base64 payload at offset %d", e.Offset)
	}
	return "blob: malformed base64 payload: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) true for any *DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Encode returns data as a data URI: "data:<mime>;base64,<payload>".
func Encode(data []byte, mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mimeType) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// Decode returns the bytes carried by s. The data URI header is optional:
// a bare base64 payload is accepted as well.
func Decode(s string) ([]byte, error) {
	_, payload := Split(s)
	out, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var cie base64.CorruptInputError
		if errors.As(err, &cie) {
			return nil, &DecodeError{Offset: int64(cie), Err: err}
		}
		return nil, &DecodeError{Offset: -1, Err: err}
	}
	return out, nil
}

// Split separates a data URI into its MIME type and base64 payload. A
// string without a header yields an empty MIME type and the trimmed input.
func Split(s string) (mimeType, payload string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return "", stripSpace(s)
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return "", stripSpace(s)
	}
	header := s[len("data:"):comma]
	header = strings.TrimSuffix(header, ";base64")
	if i := strings.IndexByte(header, ';'); i >= 0 {
		header = header[:i]
	}
	return header, stripSpace(s[comma+1:])
}

// Sniff detects the MIME type of data from its leading bytes.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsPDF reports whether data starts like a PDF file.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is("application/pdf")
}

// stripSpace drops line breaks some clients insert into long payloads.
func stripSpace(s string) string {
	if !strings.ContainsAny(s, "\r\n\t ") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\t', ' ':
			return -1
		}
		return r
	}, s)
}
