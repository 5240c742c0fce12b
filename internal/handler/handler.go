// Package handler serves POST /translate: it validates the payload, runs the
// batch and maps the outcome to an HTTP response.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pricofy/translate-relay/internal/batch"
	"github.com/pricofy/translate-relay/internal/domain"
)

// DefaultMaxBodyBytes bounds the request body.
const DefaultMaxBodyBytes int64 = 1 << 20

var errInvalidRequest = errors.New(domain.ErrMsgInvalidRequest)

var utf8BOM = []byte("\xEF\xBB\xBF")

// BulkTranslator is what the handler needs from the batch orchestrator.
type BulkTranslator interface {
	TranslateBulk(ctx context.Context, texts []string, source, target string) ([]string, error)
	MaxTexts() int
}

// Request is a validated and sanitized translation request.
type Request struct {
	Texts  []string
	Source string
	Target string
}

// Options tunes the handler.
type Options struct {
	MaxBodyBytes int64
}

// Handler is the http.Handler for POST /translate.
type Handler struct {
	translator   BulkTranslator
	logger       *zap.Logger
	maxBodyBytes int64
}

// New creates a Handler backed by translator.
func New(translator BulkTranslator, logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		translator:   translator,
		logger:       logger.With(zap.String("component", "handler")),
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// ServeHTTP answers POST /translate. It always writes a JSON body.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.internalError(w, fmt.Errorf("panic: %v", rec))
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.internalError(w, fmt.Errorf("failed to read request body: %w", err))
		return
	}

	req, err := parseRequest(body)
	if errors.Is(err, errInvalidRequest) {
		writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Error: domain.ErrMsgInvalidRequest})
		return
	}
	if err != nil {
		h.internalError(w, err)
		return
	}

	maxTexts := h.translator.MaxTexts()
	if len(req.Texts) > maxTexts {
		writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Error: domain.TooManyTextsMessage(maxTexts)})
		return
	}

	translations, err := h.translator.TranslateBulk(r.Context(), req.Texts, req.Source, req.Target)
	if errors.Is(err, batch.ErrTooManyItems) {
		writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Error: domain.TooManyTextsMessage(maxTexts)})
		return
	}
	if err != nil {
		h.internalError(w, fmt.Errorf("batch translation failed: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, domain.TranslateResponse{Translations: translations})
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("translate handler error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, domain.ErrorResponse{Error: domain.ErrMsgInternal})
}

// parseRequest decodes the body as generic JSON. Malformed JSON, trailing data
// after the value and a null body are internal errors; a wrong shape is
// errInvalidRequest. Numbers stay json.Number so no literal is out of range.
func parseRequest(body []byte) (Request, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Request{}, fmt.Errorf("failed to parse request body: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Request{}, errors.New("failed to parse request body: unexpected data after JSON value")
	}
	if raw == nil {
		return Request{}, errors.New("request body is null")
	}

	// Non-object JSON has no fields and fails validation below.
	fields, _ := raw.(map[string]interface{})
	return validateRequest(fields)
}

// validateRequest checks the field types and coerces every non-string text to "".
func validateRequest(fields map[string]interface{}) (Request, error) {
	texts, ok := fields["texts"].([]interface{})
	if !ok {
		return Request{}, errInvalidRequest
	}
	source, ok := fields["source"].(string)
	if !ok {
		return Request{}, errInvalidRequest
	}
	target, ok := fields["target"].(string)
	if !ok {
		return Request{}, errInvalidRequest
	}

	safeTexts := make([]string, len(texts))
	for i, v := range texts {
		if s, ok := v.(string); ok {
			safeTexts[i] = s
		}
	}

	return Request{Texts: safeTexts, Source: source, Target: target}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"` + domain.ErrMsgInternal + `"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}
