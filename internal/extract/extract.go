// Package extract turns uploaded bytes into ordered text segments.
//
// Extraction is strictly best-effort: unsupported formats and undecodable
// bytes yield an empty segment list, never an error. The caller treats
// "zero content" as the single failure signal. Binary legacy formats such
// as PDF are not parsed here; that capability lives behind an external
// AI extraction service exposing the same segment shape.
package extract

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Segment is one ordered piece of extracted text.
type Segment struct {
	Page      int    `json:"page"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
	Method    string `json:"method"`
}

// Extractor dispatches on a declared content type.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract converts data into ordered segments. The declared type is matched
// case-insensitively and may be a bare extension ("md") or filename suffix.
func (e *Extractor) Extract(data []byte, declaredType string) []Segment {
	if len(data) == 0 {
		return nil
	}

	switch normalizeType(declaredType) {
	case "txt", "text", "md", "markdown", "csv":
		return e.extractText(data)
	case "html", "htm":
		return e.extractHTML(data)
	case "docx":
		return e.extractDocx(data)
	default:
		e.logger.Warn("unsupported content type, producing zero segments", "type", declaredType)
		return nil
	}
}

func normalizeType(declared string) string {
	t := strings.ToLower(strings.TrimSpace(declared))
	t = strings.TrimPrefix(t, ".")
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	return t
}

func (e *Extractor) extractText(data []byte) []Segment {
	text, ok := decodeText(data)
	if !ok || strings.TrimSpace(text) == "" {
		return nil
	}
	return []Segment{{
		Page:      1,
		Text:      text,
		CharCount: utf8.RuneCountInString(text),
		Method:    "text",
	}}
}

// decodeText runs the encoding fallback chain: BOM-declared UTF-8/UTF-16,
// then plain UTF-8, then windows-1252 as the terminal fallback.
func decodeText(data []byte) (string, bool) {
	switch {
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return string(data[3:]), true
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return decodeWith(data, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM))
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return decodeWith(data, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM))
	}
	if utf8.Valid(data) {
		return string(data), true
	}
	return decodeWith(data, charmap.Windows1252)
}

func decodeWith(data []byte, enc encoding.Encoding) (string, bool) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}
