package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	e := New(nil)
	segments := e.Extract([]byte("hello world"), "txt")

	require.Len(t, segments, 1)
	assert.Equal(t, 1, segments[0].Page)
	assert.Equal(t, "hello world", segments[0].Text)
	assert.Equal(t, 11, segments[0].CharCount)
	assert.Equal(t, "text", segments[0].Method)
}

func TestExtractTypeNormalization(t *testing.T) {
	e := New(nil)
	data := []byte("content here")

	for _, declared := range []string{"TXT", ".md", "markdown", "report.csv", "notes.TXT"} {
		segments := e.Extract(data, declared)
		require.Len(t, segments, 1, "declared type %q", declared)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	e := New(nil)
	assert.Nil(t, e.Extract([]byte("data"), "xlsx"))
	assert.Nil(t, e.Extract([]byte("data"), ""))
}

func TestExtractEmptyInput(t *testing.T) {
	e := New(nil)
	assert.Nil(t, e.Extract(nil, "txt"))
	assert.Nil(t, e.Extract([]byte("   \n\t "), "txt"))
}

func TestExtractUTF8BOM(t *testing.T) {
	e := New(nil)
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("bom text")...)
	segments := e.Extract(data, "txt")

	require.Len(t, segments, 1)
	assert.Equal(t, "bom text", segments[0].Text)
}

func TestExtractUTF16LE(t *testing.T) {
	e := New(nil)
	// "hi" as UTF-16 little-endian with BOM.
	data := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}
	segments := e.Extract(data, "txt")

	require.Len(t, segments, 1)
	assert.Equal(t, "hi", segments[0].Text)
}

func TestExtractUTF16BE(t *testing.T) {
	e := New(nil)
	data := []byte{0xFE, 0xFF, 0x00, 'h', 0x00, 'i'}
	segments := e.Extract(data, "txt")

	require.Len(t, segments, 1)
	assert.Equal(t, "hi", segments[0].Text)
}

func TestExtractWindows1252Fallback(t *testing.T) {
	e := New(nil)
	// 0x93/0x94 are curly quotes in windows-1252 and invalid UTF-8.
	data := []byte{0x93, 'o', 'k', 0x94}
	segments := e.Extract(data, "txt")

	require.Len(t, segments, 1)
	assert.Equal(t, "“ok”", segments[0].Text)
}

func TestExtractHTMLStripsTags(t *testing.T) {
	e := New(nil)
	data := []byte(`<html><head><title>Title</title>
		<script>var x = 1;</script>
		<style>body { color: red; }</style></head>
		<body><h1>Heading</h1><p>First   paragraph.</p>
		<noscript>enable js</noscript></body></html>`)
	segments := e.Extract(data, "html")

	require.Len(t, segments, 1)
	assert.Equal(t, "Title Heading First paragraph.", segments[0].Text)
	assert.Equal(t, "html", segments[0].Method)
	assert.NotContains(t, segments[0].Text, "var x")
	assert.NotContains(t, segments[0].Text, "color")
	assert.NotContains(t, segments[0].Text, "enable js")
}

func TestExtractHTMLEmptyBody(t *testing.T) {
	e := New(nil)
	assert.Nil(t, e.Extract([]byte("<html><body></body></html>"), "html"))
}

func TestExtractDocxGarbage(t *testing.T) {
	e := New(nil)
	// Not a zip archive at all; the parser must fail soft.
	assert.Nil(t, e.Extract([]byte("definitely not a docx"), "docx"))
}

func TestNormalizeType(t *testing.T) {
	cases := map[string]string{
		"txt":        "txt",
		".HTML":      "html",
		"Report.MD":  "md",
		" docx ":     "docx",
		"a.b.c.html": "html",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeType(in), "input %q", in)
	}
}
