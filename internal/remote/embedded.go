package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrNoPayload means the page had no <p> element to read JSON from.
	ErrNoPayload = errors.New("remote: response has no embedded payload")
	// ErrMalformed means the payload was not valid JSON.
	ErrMalformed = errors.New("remote: malformed payload")
)

// Envelope is the JSON document the decode services wrap in a paragraph.
type Envelope struct {
	Result bool            `json:"result"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ExtractParagraph returns the text of the first <p> element in page.
func ExtractParagraph(page []byte) (string, bool) {
	z := html.NewTokenizer(bytes.NewReader(page))

	depth := 0
	var text strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF && depth > 0 {
				// unterminated paragraph: take what we have
				return text.String(), true
			}
			return "", false
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "p" {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "p" && depth > 0 {
				depth--
				if depth == 0 {
					return text.String(), true
				}
			}
		case html.TextToken:
			if depth > 0 {
				text.Write(z.Text())
			}
		}
	}
}

// DecodeEmbedded extracts and parses the JSON envelope from a decode-service
// page.
func DecodeEmbedded(page []byte) (Envelope, error) {
	text, ok := ExtractParagraph(page)
	if !ok {
		return Envelope{}, ErrNoPayload
	}

	var env Envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return env, nil
}
