package kb

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// minimalPDF 构造一个单页 PDF（xref 偏移量按实际写入位置计算）
func minimalPDF(text string) []byte {
	var buf bytes.Buffer
	var offsets []int
	addObj := func(s string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(s)
	}

	buf.WriteString("%PDF-1.4\n")
	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	addObj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	addObj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	addObj(fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream))
	addObj("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefPos := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1))
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefPos))
	return buf.Bytes()
}

func TestParserRegistrySupports(t *testing.T) {
	reg := NewParserRegistry()

	tests := []struct {
		filename  string
		supported bool
	}{
		{"doc.pdf", true},
		{"DOC.PDF", true},
		{"notes.txt", true},
		{"readme.md", true},
		{"report.docx", true},
		{"data.csv", true},
		{"image.png", false},
		{"archive.zip", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := reg.Supports(tt.filename); got != tt.supported {
			t.Errorf("Supports(%q) = %v, want %v", tt.filename, got, tt.supported)
		}
	}
}

func TestParserRegistryGetUnsupported(t *testing.T) {
	reg := NewParserRegistry()
	if _, err := reg.Get("image.png"); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func TestPlainTextParser(t *testing.T) {
	p := &PlainTextParser{}
	result, err := p.Parse(strings.NewReader("  line one\n\nline two  \n"), "doc.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Content != "line one\n\nline two" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.Metadata["format"] != ".txt" {
		t.Errorf("unexpected format metadata: %q", result.Metadata["format"])
	}
}

func TestMarkdownParser(t *testing.T) {
	p := &MarkdownParser{}
	input := "# Heading\n\nSome **bold** text with [a link](http://example.com).\n\n```\ncode block\n```"

	result, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(result.Content, "Some") || !strings.Contains(result.Content, "text") {
		t.Errorf("prose lost: %q", result.Content)
	}
	if strings.Contains(result.Content, "**") || strings.Contains(result.Content, "](") {
		t.Errorf("markdown syntax not stripped: %q", result.Content)
	}
}

func TestPDFParserSinglePage(t *testing.T) {
	p := &PDFParser{}

	result, err := p.Parse(bytes.NewReader(minimalPDF("The sky is blue.")), "doc.pdf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Pages != 1 {
		t.Errorf("pages = %d, want 1", result.Pages)
	}
	if !strings.Contains(result.Content, "sky") {
		t.Errorf("content lost: %q", result.Content)
	}
	if result.Metadata["format"] != "pdf" {
		t.Errorf("format metadata = %q", result.Metadata["format"])
	}
}

func TestPDFParserRejectsGarbage(t *testing.T) {
	p := &PDFParser{}
	if _, err := p.Parse(strings.NewReader("this is not a pdf"), "bad.pdf"); err == nil {
		t.Error("expected error for non-PDF input")
	}
}
