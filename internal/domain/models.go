// Package domain contains the wire types shared by the relay components.
package domain

import (
	"encoding/json"
	"fmt"
)

// UpstreamFormat is the only text format the relay asks the backend for.
const UpstreamFormat = "text"

// Error messages returned to callers.
const (
	ErrMsgInvalidRequest = "Invalid request"
	ErrMsgInternal       = "Internal server error"
)

// TooManyTextsMessage is the 400 message for a batch above the cap.
func TooManyTextsMessage(maxTexts int) string {
	return fmt.Sprintf("Too many texts (max %d)", maxTexts)
}

// TranslateResponse is the success body of POST /translate.
type TranslateResponse struct {
	Translations []string `json:"translations"`
}

// ErrorResponse is the body of every JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UpstreamRequest is the payload sent to the translation backend for one item.
type UpstreamRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

// UpstreamResponse is the expected backend reply. TranslatedText is kept raw
// so a non-string value can be told apart from a string.
type UpstreamResponse struct {
	TranslatedText json.RawMessage `json:"translatedText"`
}

// Text returns the translated string, or false when the field is missing
// or not a JSON string.
func (r UpstreamResponse) Text() (string, bool) {
	if len(r.TranslatedText) == 0 || string(r.TranslatedText) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r.TranslatedText, &s); err != nil {
		return "", false
	}
	return s, true
}
