// Package message turns raw RFC 5322 bytes into the subject and plain-text
// body handed to the classifier.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
)

// ErrDecode is returned when the message cannot be parsed at all.
var ErrDecode = errors.New("decode message")

// Decoded is the part of a message the classifier sees.
type Decoded struct {
	Subject string
	Body    string // trimmed plain text; empty means no usable body
}

var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(label string, input io.Reader) (io.Reader, error) {
		r, err := charset.Reader(label, input)
		if err != nil {
			return charmap.ISO8859_1.NewDecoder().Reader(input), nil
		}
		return r, nil
	},
}

// DecodeHeader decodes RFC 2047 encoded words segment by segment. A segment
// in an unknown charset is read as ISO-8859-1; invalid bytes become U+FFFD.
func DecodeHeader(raw string) string {
	if raw == "" {
		return ""
	}
	s, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		s = raw
	}
	return strings.ToValidUTF8(s, "�")
}

// Decode parses raw and extracts the subject and plain-text body.
func Decode(raw []byte) (Decoded, error) {
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !tolerable(err) {
		return Decoded{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	body, _ := plainText(entity, gomessage.IsUnknownCharset(err))
	return Decoded{
		Subject: DecodeHeader(entity.Header.Get("Subject")),
		Body:    strings.TrimSpace(body),
	}, nil
}

// PlainTextBody returns the first non-attachment text/plain part of raw,
// trimmed. It returns "" when there is none or raw cannot be parsed.
func PlainTextBody(raw []byte) string {
	d, err := Decode(raw)
	if err != nil {
		return ""
	}
	return d.Body
}

// tolerable reports errors after which go-message still returns a usable
// entity whose body is left undecoded.
func tolerable(err error) bool {
	return gomessage.IsUnknownCharset(err) || gomessage.IsUnknownEncoding(err)
}

// plainText walks e depth first. The bool reports whether a text/plain
// part was found, even if it decoded to nothing.
func plainText(e *gomessage.Entity, rawCharset bool) (string, bool) {
	if mr := e.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", false
			}
			if err != nil && !tolerable(err) {
				return "", false
			}
			if text, ok := plainText(part, gomessage.IsUnknownCharset(err)); ok {
				return text, true
			}
		}
	}

	if isAttachment(e.Header) || mediaType(e.Header) != "text/plain" {
		return "", false
	}
	data, err := io.ReadAll(e.Body)
	if err != nil && len(data) == 0 {
		return "", false
	}
	return decodeText(data, rawCharset), true
}

func decodeText(data []byte, rawCharset bool) string {
	if rawCharset {
		if out, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
			return string(out)
		}
	}
	return strings.ToValidUTF8(string(data), "�")
}

func isAttachment(h gomessage.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Content-Disposition")), "attachment")
}

// mediaType defaults to text/plain for a missing or malformed header.
func mediaType(h gomessage.Header) string {
	if h.Get("Content-Type") == "" {
		return "text/plain"
	}
	t, _, err := h.ContentType()
	if err != nil {
		return "text/plain"
	}
	return strings.ToLower(t)
}
