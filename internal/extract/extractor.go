// Package extract downloads issue attachments and pulls plain text out of the
// formats worth indexing. The binary is always persisted next to its sidecar
// text file; unsupported formats are kept but produce no text.
package extract

import (
    "context"
    "io"
    "os"
    "path/filepath"
    "strings"

    "github.com/rs/zerolog"
)

// NoText is returned when a format is unsupported or extraction yields nothing.
// It is a sentinel value, not an error.
const NoText = "no text extracted"

type Downloader interface {
    Download(ctx context.Context, contentURL string) (io.ReadCloser, error)
}

type ImageDescriber interface {
    DescribeImage(ctx context.Context, data []byte, mime string) (string, error)
}

// Strategy extracts plain text from a downloaded file.
type Strategy func(ctx context.Context, path string) (string, error)

type Extractor struct {
    dl         Downloader
    log        zerolog.Logger
    strategies map[string]Strategy
}

func New(dl Downloader, vision ImageDescriber, log zerolog.Logger) *Extractor {
    e := &Extractor{dl: dl, log: log}
    e.strategies = map[string]Strategy{
        ".pdf":  extractPDF,
        ".docx": extractDocx,
        ".pptx": extractPptx,
        ".txt":  extractTxt,
    }
    for ext, mime := range map[string]string{".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg"} {
        e.strategies[ext] = imageStrategy(vision, mime)
    }
    return e
}

// FetchAndExtract downloads the attachment into destDir, dispatches on the
// lowercase file extension and writes non-empty text to <filename>.txt.
// Download and extraction failures both propagate; the caller decides the
// isolation boundary.
func (e *Extractor) FetchAndExtract(ctx context.Context, contentURL, filename, destDir string) (string, error) {
    if err := os.MkdirAll(destDir, 0o755); err != nil { return "", err }
    path := filepath.Join(destDir, filename)

    rc, err := e.dl.Download(ctx, contentURL)
    if err != nil { return "", err }
    defer rc.Close()
    f, err := os.Create(path)
    if err != nil { return "", err }
    if _, err := io.Copy(f, rc); err != nil { f.Close(); return "", err }
    if err := f.Close(); err != nil { return "", err }
    e.log.Debug().Str("file", path).Msg("attachment downloaded")

    ext := strings.ToLower(filepath.Ext(filename))
    strategy, ok := e.strategies[ext]
    if !ok {
        e.log.Info().Str("ext", ext).Str("file", filename).Msg("unsupported attachment type, no text extracted")
        return NoText, nil
    }
    text, err := strategy(ctx, path)
    if err != nil { return "", err }
    text = strings.TrimSpace(text)
    if text == "" { return NoText, nil }
    if err := os.WriteFile(path+".txt", []byte(text), 0o644); err != nil { return "", err }
    return text, nil
}

func imageStrategy(vision ImageDescriber, mime string) Strategy {
    return func(ctx context.Context, path string) (string, error) {
        data, err := os.ReadFile(path)
        if err != nil { return "", err }
        return vision.DescribeImage(ctx, data, mime)
    }
}

func extractTxt(_ context.Context, path string) (string, error) {
    b, err := os.ReadFile(path)
    if err != nil { return "", err }
    return string(b), nil
}
