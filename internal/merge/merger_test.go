package merge

import (
    "bytes"
    "encoding/csv"
    "encoding/json"
    "os"
    "path/filepath"
    "testing"

    "github.com/rs/zerolog"
)

func writeFile(t *testing.T, dir, name, content string) {
    t.Helper()
    if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
        t.Fatalf("write %s: %v", name, err)
    }
}

func TestMergeSkipsMalformedFiles(t *testing.T) {
    src := t.TempDir()
    out := t.TempDir()
    writeFile(t, src, "good_cleaned.json", `{"project_name":"Alpha","total":1,"issues":[{"key":"A-1","summary":"ok"}]}`)
    writeFile(t, src, "broken_cleaned.json", `{"this is not json`)
    writeFile(t, src, "wrongshape_cleaned.json", `"just a string"`)

    m := New(zerolog.Nop())
    issues, summaries, err := m.Merge(src, out)
    if err != nil { t.Fatalf("merge must isolate per-file errors: %v", err) }
    if len(issues) != 1 { t.Fatalf("issues = %d", len(issues)) }
    if len(summaries) != 1 || summaries[0].ProjectName != "Alpha" || summaries[0].TotalIssues != 1 {
        t.Fatalf("summaries = %+v", summaries)
    }
}

func TestMergeAcceptsWrapperAndBareList(t *testing.T) {
    src := t.TempDir()
    writeFile(t, src, "a_cleaned.json", `{"project_name":"Alpha","issues":[{"key":"A-1"}]}`)
    writeFile(t, src, "b_cleaned.json", `[{"key":"B-1"},{"key":"B-2"},"not a dict"]`)

    m := New(zerolog.Nop())
    issues, summaries, err := m.Merge(src, t.TempDir())
    if err != nil { t.Fatalf("merge: %v", err) }
    if len(issues) != 3 { t.Fatalf("issues = %d, non-dict entries must be dropped", len(issues)) }
    if summaries[1].ProjectName != "UnknownProject" {
        t.Fatalf("bare list has no project name, got %q", summaries[1].ProjectName)
    }
}

func TestMergeBackfillsProjectNameOnlyWhenAbsent(t *testing.T) {
    src := t.TempDir()
    writeFile(t, src, "x_cleaned.json",
        `{"project_name":"FileLevel","issues":[{"key":"X-1"},{"key":"X-2","project_name":"OwnName"},{"key":"X-3","project_name":""}]}`)

    m := New(zerolog.Nop())
    issues, _, err := m.Merge(src, t.TempDir())
    if err != nil { t.Fatalf("merge: %v", err) }
    if issues[0]["project_name"] != "FileLevel" { t.Fatalf("absent key must be backfilled: %v", issues[0]) }
    if issues[1]["project_name"] != "OwnName" { t.Fatalf("present key must be kept: %v", issues[1]) }
    if issues[2]["project_name"] != "" { t.Fatalf("empty value is still present, must be kept: %v", issues[2]) }
}

func TestMergeWritesAllArtifacts(t *testing.T) {
    src := t.TempDir()
    out := t.TempDir()
    writeFile(t, src, "a_cleaned.json",
        `{"project_name":"Alpha","issues":[{"key":"A-1","summary":"one","subtasks":[{"key":"A-2"}]}]}`)

    m := New(zerolog.Nop())
    if _, _, err := m.Merge(src, out); err != nil { t.Fatalf("merge: %v", err) }

    for _, name := range []string{"all_issues.json", "all_issues.jsonl", "project_summary.json", "all_issues.csv", "all_issues.xlsx"} {
        if _, err := os.Stat(filepath.Join(out, name)); err != nil { t.Fatalf("missing artifact %s: %v", name, err) }
    }

    f, err := os.Open(filepath.Join(out, "all_issues.csv"))
    if err != nil { t.Fatalf("open csv: %v", err) }
    defer f.Close()
    records, err := csv.NewReader(f).ReadAll()
    if err != nil { t.Fatalf("read csv: %v", err) }
    if len(records) != 2 { t.Fatalf("csv rows = %d", len(records)) }
    if records[0][0] != "key" { t.Fatalf("header = %v", records[0]) }

    // nested values are embedded as JSON text
    var cell []map[string]any
    col := -1
    for i, h := range records[0] {
        if h == "subtasks" { col = i }
    }
    if col < 0 { t.Fatalf("subtasks column missing: %v", records[0]) }
    if err := json.Unmarshal([]byte(records[1][col]), &cell); err != nil {
        t.Fatalf("subtasks cell is not JSON: %q", records[1][col])
    }
}

func TestMergeEmptyDirectory(t *testing.T) {
    m := New(zerolog.Nop())
    out := t.TempDir()
    issues, summaries, err := m.Merge(t.TempDir(), out)
    if err != nil { t.Fatalf("empty corpus is not an error: %v", err) }
    if len(issues) != 0 || len(summaries) != 0 { t.Fatalf("corpus must be empty") }
    b, err := os.ReadFile(filepath.Join(out, "all_issues.json"))
    if err != nil { t.Fatalf("artifacts are still written: %v", err) }
    if string(bytes.TrimSpace(b)) != "[]" { t.Fatalf("all_issues.json = %q", b) }
}

func TestMergeIdempotent(t *testing.T) {
    src := t.TempDir()
    writeFile(t, src, "a_cleaned.json", `{"project_name":"Alpha","issues":[{"key":"A-1","extra_field":"x"}]}`)
    writeFile(t, src, "b_cleaned.json", `{"project_name":"Beta","issues":[{"key":"B-1","zz_other":"y"}]}`)

    m := New(zerolog.Nop())
    out1 := t.TempDir()
    out2 := t.TempDir()
    if _, _, err := m.Merge(src, out1); err != nil { t.Fatalf("merge 1: %v", err) }
    if _, _, err := m.Merge(src, out2); err != nil { t.Fatalf("merge 2: %v", err) }

    for _, name := range []string{"all_issues.json", "all_issues.jsonl", "project_summary.json", "all_issues.csv"} {
        a, err := os.ReadFile(filepath.Join(out1, name))
        if err != nil { t.Fatalf("read %s: %v", name, err) }
        b, err := os.ReadFile(filepath.Join(out2, name))
        if err != nil { t.Fatalf("read %s: %v", name, err) }
        if !bytes.Equal(a, b) { t.Fatalf("%s differs across identical merges", name) }
    }
}
