package extract

import (
    "context"
    "os"
    "strings"

    "code.sajari.com/docconv"
    "github.com/ledongthuc/pdf"
)

// extractPDF concatenates the text of every page, newline-joined and trimmed.
func extractPDF(_ context.Context, path string) (string, error) {
    f, r, err := pdf.Open(path)
    if err != nil { return "", err }
    defer f.Close()
    var b strings.Builder
    for i := 1; i <= r.NumPage(); i++ {
        p := r.Page(i)
        if p.V.IsNull() { continue }
        text, err := p.GetPlainText(nil)
        if err != nil { return "", err }
        if strings.TrimSpace(text) != "" {
            b.WriteString(text)
            b.WriteString("\n")
        }
    }
    return strings.TrimSpace(b.String()), nil
}

// extractDocx keeps paragraph text, dropping blank paragraphs.
func extractDocx(_ context.Context, path string) (string, error) {
    f, err := os.Open(path)
    if err != nil { return "", err }
    defer f.Close()
    body, _, err := docconv.ConvertDocx(f)
    if err != nil { return "", err }
    return joinNonBlankLines(body), nil
}

// extractPptx concatenates all shape text across all slides.
func extractPptx(_ context.Context, path string) (string, error) {
    f, err := os.Open(path)
    if err != nil { return "", err }
    defer f.Close()
    body, _, err := docconv.ConvertPptx(f)
    if err != nil { return "", err }
    return strings.TrimSpace(body), nil
}

func joinNonBlankLines(s string) string {
    lines := strings.Split(s, "\n")
    out := make([]string, 0, len(lines))
    for _, ln := range lines {
        if strings.TrimSpace(ln) == "" { continue }
        out = append(out, ln)
    }
    return strings.Join(out, "\n")
}
