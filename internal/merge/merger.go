// Package merge combines per-source cleaned files into one corpus and writes
// every serialized form the downstream consumers need in a single run.
package merge

import (
    "encoding/csv"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "sort"

    "github.com/rs/zerolog"
    "github.com/xuri/excelize/v2"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/domain"
)

type Merger struct {
    log zerolog.Logger
}

func New(log zerolog.Logger) *Merger { return &Merger{log: log} }

// Merge scans sourceDir for cleaned files, stamps provenance and emits the
// corpus artifacts into outDir. A malformed file is logged and skipped; the
// batch continues. An empty source directory yields an empty corpus.
func (m *Merger) Merge(sourceDir, outDir string) ([]map[string]any, []domain.ProjectSummary, error) {
    if err := os.MkdirAll(outDir, 0o755); err != nil { return nil, nil, err }
    files, err := filepath.Glob(filepath.Join(sourceDir, "*_cleaned.json"))
    if err != nil { return nil, nil, err }
    sort.Strings(files)

    allIssues := []map[string]any{}
    summaries := []domain.ProjectSummary{}
    for _, path := range files {
        issues, projectName, err := readCleaned(path)
        if err != nil {
            m.log.Error().Err(err).Str("file", path).Msg("merge: failed to load file, skipping")
            continue
        }
        total := 0
        for _, issue := range issues {
            if _, ok := issue["project_name"]; !ok { issue["project_name"] = projectName }
            allIssues = append(allIssues, issue)
            total++
        }
        summaries = append(summaries, domain.ProjectSummary{
            ProjectName: projectName,
            File:        filepath.Base(path),
            TotalIssues: total,
        })
    }

    if err := m.writeArtifacts(outDir, allIssues, summaries); err != nil { return nil, nil, err }
    m.log.Info().Int("files", len(summaries)).Int("issues", len(allIssues)).Str("out", outDir).Msg("merge complete")
    return allIssues, summaries, nil
}

// readCleaned accepts either the {issues: [...]} wrapper or a bare array.
// Anything else is an error the caller isolates at file granularity.
func readCleaned(path string) ([]map[string]any, string, error) {
    data, err := os.ReadFile(path)
    if err != nil { return nil, "", err }
    var decoded any
    if err := json.Unmarshal(data, &decoded); err != nil { return nil, "", err }

    projectName := "UnknownProject"
    var rawIssues []any
    switch v := decoded.(type) {
    case map[string]any:
        arr, ok := v["issues"].([]any)
        if !ok { return nil, "", fmt.Errorf("unrecognized JSON structure in file: %s", path) }
        if name, ok := v["project_name"].(string); ok && name != "" { projectName = name }
        rawIssues = arr
    case []any:
        rawIssues = v
    default:
        return nil, "", fmt.Errorf("unrecognized JSON structure in file: %s", path)
    }

    issues := make([]map[string]any, 0, len(rawIssues))
    for _, it := range rawIssues {
        if rec, ok := it.(map[string]any); ok { issues = append(issues, rec) }
    }
    return issues, projectName, nil
}

func (m *Merger) writeArtifacts(outDir string, issues []map[string]any, summaries []domain.ProjectSummary) error {
    if err := writeJSON(filepath.Join(outDir, "all_issues.json"), issues); err != nil { return err }
    if err := writeNDJSON(filepath.Join(outDir, "all_issues.jsonl"), issues); err != nil { return err }
    if err := writeJSON(filepath.Join(outDir, "project_summary.json"), summaries); err != nil { return err }
    cols := unionColumns(issues)
    if err := writeCSV(filepath.Join(outDir, "all_issues.csv"), cols, issues); err != nil { return err }
    return writeXLSX(filepath.Join(outDir, "all_issues.xlsx"), cols, issues)
}

func writeJSON(path string, v any) error {
    b, err := json.MarshalIndent(v, "", "  ")
    if err != nil { return err }
    return os.WriteFile(path, b, 0o644)
}

func writeNDJSON(path string, issues []map[string]any) error {
    f, err := os.Create(path)
    if err != nil { return err }
    defer f.Close()
    enc := json.NewEncoder(f)
    for _, issue := range issues {
        if err := enc.Encode(issue); err != nil { return err }
    }
    return nil
}

// preferredColumns pins the core schema to a stable leading order; any extra
// observed fields follow alphabetically so repeated merges stay byte-identical.
var preferredColumns = []string{
    "key", "project_key", "project_name", "summary", "description", "issue_type",
    "status", "priority", "created", "updated", "reporter", "creator",
    "subtasks", "files",
    "parent_key", "parent_summary", "parent_priority", "parent_issuetype",
    "parent_description", "parent_issuetype_icon",
    "board_id", "board_name", "sprint_id", "sprint_name",
}

func unionColumns(issues []map[string]any) []string {
    seen := map[string]bool{}
    for _, issue := range issues {
        for k := range issue { seen[k] = true }
    }
    cols := make([]string, 0, len(seen))
    for _, c := range preferredColumns {
        if seen[c] { cols = append(cols, c); delete(seen, c) }
    }
    extras := make([]string, 0, len(seen))
    for k := range seen { extras = append(extras, k) }
    sort.Strings(extras)
    return append(cols, extras...)
}

func cellString(v any) string {
    switch t := v.(type) {
    case nil:
        return ""
    case string:
        return t
    case float64, bool:
        return fmt.Sprintf("%v", t)
    default:
        // sequences and nested objects are serialized as JSON in tabular form
        b, err := json.Marshal(t)
        if err != nil { return fmt.Sprintf("%v", t) }
        return string(b)
    }
}

func writeCSV(path string, cols []string, issues []map[string]any) error {
    f, err := os.Create(path)
    if err != nil { return err }
    defer f.Close()
    w := csv.NewWriter(f)
    if err := w.Write(cols); err != nil { return err }
    for _, issue := range issues {
        row := make([]string, len(cols))
        for i, c := range cols { row[i] = cellString(issue[c]) }
        if err := w.Write(row); err != nil { return err }
    }
    w.Flush()
    return w.Error()
}

func writeXLSX(path string, cols []string, issues []map[string]any) error {
    f := excelize.NewFile()
    defer f.Close()
    const sheet = "Sheet1"
    for i, c := range cols {
        cell, err := excelize.CoordinatesToCellName(i+1, 1)
        if err != nil { return err }
        if err := f.SetCellValue(sheet, cell, c); err != nil { return err }
    }
    for r, issue := range issues {
        for i, c := range cols {
            cell, err := excelize.CoordinatesToCellName(i+1, r+2)
            if err != nil { return err }
            if err := f.SetCellValue(sheet, cell, cellString(issue[c])); err != nil { return err }
        }
    }
    return f.SaveAs(path)
}
