// Package upsert maintains the webhook-fed CSV index of issues, keyed by
// issue key. It projects the incoming event payload into the row schema and
// merges it into the existing file, widening headers as new fields appear.
package upsert

import (
    "encoding/csv"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/domain"
)

// projectionOrder is the order newly observed headers are appended in.
var projectionOrder = []string{"key", "summary", "status", "priority", "project", "project_key", "timestamp"}

type Store struct {
    path string
    log  zerolog.Logger
}

func New(path string, log zerolog.Logger) *Store { return &Store{path: path, log: log} }

// Upsert projects one issue event into a row and inserts or updates it in the
// CSV file. Fields absent from the payload stay untouched on update; new
// fields widen the header for every existing row. The rewrite goes through a
// temp file in the same directory followed by a rename.
func (s *Store) Upsert(payload map[string]any) (domain.UpsertResult, error) {
    row, err := project(payload)
    if err != nil { return domain.UpsertResult{}, err }

    headers, keys, rows, err := s.load()
    if err != nil { return domain.UpsertResult{}, err }

    have := map[string]bool{}
    for _, h := range headers { have[h] = true }
    for _, h := range projectionOrder {
        if _, ok := row[h]; ok && !have[h] {
            headers = append(headers, h)
            have[h] = true
        }
    }

    key := *row["key"]
    action := "updated"
    existing, ok := rows[key]
    if !ok {
        action = "inserted"
        existing = map[string]string{}
        rows[key] = existing
        keys = append(keys, key)
    }
    for h, v := range row {
        if v != nil { existing[h] = *v }
    }

    if err := s.write(headers, keys, rows); err != nil { return domain.UpsertResult{}, err }
    s.log.Info().Str("key", key).Str("action", action).Msg("issue row upserted")
    return domain.UpsertResult{Action: action, Row: existing}, nil
}

// project maps the raw webhook payload onto the row schema. A nil value means
// the field was absent and must not overwrite existing data. The issue key is
// the only required field.
func project(payload map[string]any) (map[string]*string, error) {
    issue, _ := payload["issue"].(map[string]any)
    if issue == nil { issue = payload }
    fields, _ := issue["fields"].(map[string]any)

    row := map[string]*string{}
    key, ok := issue["key"].(string)
    if !ok || key == "" { return nil, fmt.Errorf("upsert: payload has no issue key") }
    row["key"] = &key

    // any webhook event counts as activity on an open issue
    status := "In Progress"
    row["status"] = &status

    if fields != nil {
        if v, ok := fields["summary"].(string); ok { row["summary"] = &v }
        if pr, ok := fields["priority"].(map[string]any); ok {
            if v, ok := pr["name"].(string); ok { row["priority"] = &v }
        }
        if pj, ok := fields["project"].(map[string]any); ok {
            if v, ok := pj["name"].(string); ok { row["project"] = &v }
            if v, ok := pj["key"].(string); ok { row["project_key"] = &v }
        }
    }
    ts := time.Now().UTC().Format(time.RFC3339)
    row["timestamp"] = &ts
    return row, nil
}

// load reads the current file. A missing file is an empty store, not an error.
func (s *Store) load() (headers []string, keys []string, rows map[string]map[string]string, err error) {
    rows = map[string]map[string]string{}
    f, err := os.Open(s.path)
    if err != nil {
        if os.IsNotExist(err) { return nil, nil, rows, nil }
        return nil, nil, nil, err
    }
    defer f.Close()

    r := csv.NewReader(f)
    r.FieldsPerRecord = -1
    headers, err = r.Read()
    if err == io.EOF { return nil, nil, rows, nil }
    if err != nil { return nil, nil, nil, err }

    keyIdx := -1
    for i, h := range headers {
        if h == "key" { keyIdx = i; break }
    }
    if keyIdx < 0 { return nil, nil, nil, fmt.Errorf("upsert: %s has no key column", s.path) }

    for {
        record, err := r.Read()
        if err == io.EOF { break }
        if err != nil { return nil, nil, nil, err }
        if keyIdx >= len(record) || record[keyIdx] == "" { continue }
        row := map[string]string{}
        for i, h := range headers {
            if i < len(record) { row[h] = record[i] }
        }
        k := record[keyIdx]
        if _, seen := rows[k]; !seen { keys = append(keys, k) }
        rows[k] = row
    }
    return headers, keys, rows, nil
}

func (s *Store) write(headers []string, keys []string, rows map[string]map[string]string) error {
    dir := filepath.Dir(s.path)
    if err := os.MkdirAll(dir, 0o755); err != nil { return err }
    tmp, err := os.CreateTemp(dir, "tmp_*.csv")
    if err != nil { return err }
    defer os.Remove(tmp.Name())

    w := csv.NewWriter(tmp)
    if err := w.Write(headers); err != nil { tmp.Close(); return err }
    for _, k := range keys {
        row := rows[k]
        record := make([]string, len(headers))
        for i, h := range headers { record[i] = row[h] }
        if err := w.Write(record); err != nil { tmp.Close(); return err }
    }
    w.Flush()
    if err := w.Error(); err != nil { tmp.Close(); return err }
    if err := tmp.Close(); err != nil { return err }
    return os.Rename(tmp.Name(), s.path)
}
