// Package multipart decodes raw multipart/form-data request bodies.
//
// The decoder works on a fully buffered body and never text-decodes part
// content, so binary payloads survive byte-exact. Callers cap the body
// size at the HTTP layer before handing it over.
package multipart

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
)

// ErrBoundaryMissing is returned when the Content-Type header carries no
// boundary parameter.
var ErrBoundaryMissing = errors.New("multipart boundary missing")

// Part is one named segment of a multipart body.
type Part struct {
	Name     string
	Filename string
	// HasFilename distinguishes a form field from a file part with an
	// empty filename attribute.
	HasFilename bool
	Content     []byte
}

var (
	nameRe     = regexp.MustCompile(`\bname="([^"]*)"`)
	filenameRe = regexp.MustCompile(`\bfilename="([^"]*)"`)
)

// BoundaryFromContentType extracts the boundary parameter from a
// Content-Type header value.
func BoundaryFromContentType(contentType string) (string, error) {
	for _, param := range strings.Split(contentType, ";") {
		param = strings.TrimSpace(param)
		if strings.HasPrefix(param, "boundary=") {
			boundary := strings.TrimPrefix(param, "boundary=")
			boundary = strings.Trim(boundary, `"`)
			if boundary != "" {
				return boundary, nil
			}
		}
	}
	return "", ErrBoundaryMissing
}

// Decode parses a buffered multipart body into its ordered parts. The
// contentType argument is the raw Content-Type header value; its boundary
// parameter is required.
func Decode(contentType string, body []byte) ([]Part, error) {
	boundary, err := BoundaryFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	return decodeWithBoundary(boundary, body), nil
}

// decodeWithBoundary scans the body for successive occurrences of the
// literal marker "--<boundary>". Each span between two consecutive
// occurrences is a candidate part; the first span is the preamble and is
// skipped. Content bytes that merely resemble the marker are preserved,
// only exact marker matches split parts.
func decodeWithBoundary(boundary string, body []byte) []Part {
	marker := []byte("--" + boundary)

	var spans [][]byte
	rest := body
	for {
		idx := bytes.Index(rest, marker)
		if idx < 0 {
			break
		}
		spans = append(spans, rest[:idx])
		rest = rest[idx+len(marker):]
	}

	var parts []Part
	for i, span := range spans {
		if i == 0 {
			// Preamble before the first marker.
			continue
		}
		if part, ok := parsePart(span); ok {
			parts = append(parts, part)
		}
	}
	return parts
}

// parsePart splits a candidate span into its header block and raw
// content. Parts without a name capture are dropped.
func parsePart(span []byte) (Part, bool) {
	sep := bytes.Index(span, []byte("\r\n\r\n"))
	if sep < 0 {
		return Part{}, false
	}
	headerBlock := string(span[:sep])
	content := span[sep+4:]

	// Strip the line terminator that precedes the next boundary marker.
	content = bytes.TrimSuffix(content, []byte("\r\n"))

	nameMatch := nameRe.FindStringSubmatch(headerBlock)
	if nameMatch == nil {
		return Part{}, false
	}

	part := Part{Name: nameMatch[1], Content: content}
	if fnMatch := filenameRe.FindStringSubmatch(headerBlock); fnMatch != nil {
		part.Filename = fnMatch[1]
		part.HasFilename = true
	}
	return part, true
}

// FilePart returns the first part carrying a non-empty filename, which is
// what upload handlers treat as the attached file. A part with
// filename="" counts as no file attached.
func FilePart(parts []Part) (Part, bool) {
	for _, p := range parts {
		if p.HasFilename && p.Filename != "" {
			return p, true
		}
	}
	return Part{}, false
}

// Field returns the content of the named form field as a string.
func Field(parts []Part, name string) (string, bool) {
	for _, p := range parts {
		if p.Name == name && !p.HasFilename {
			return string(p.Content), true
		}
	}
	return "", false
}
