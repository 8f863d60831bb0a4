package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/unidoc/unioffice/document"
)

// extractDocx concatenates paragraph text in document order. A corrupt or
// non-docx payload yields zero segments.
func (e *Extractor) extractDocx(data []byte) []Segment {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Warn("docx parse failed, producing zero segments", "err", err)
		return nil
	}
	defer doc.Close()

	var paragraphs []string
	for _, para := range doc.Paragraphs() {
		var sb strings.Builder
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	text := strings.Join(paragraphs, "\n\n")
	return []Segment{{
		Page:      1,
		Text:      text,
		CharCount: utf8.RuneCountInString(text),
		Method:    "docx",
	}}
}
