package normalize

import (
    "context"
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "testing"

    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/raw"
)

type fakeSink struct {
    calls []string
    text  string
    err   error
}

func (f *fakeSink) FetchAndExtract(_ context.Context, contentURL, filename, destDir string) (string, error) {
    f.calls = append(f.calls, filename)
    if f.err != nil { return "", f.err }
    return f.text, nil
}

func issueFromJSON(t *testing.T, s string) raw.Issue {
    t.Helper()
    var o raw.Object
    if err := json.Unmarshal([]byte(s), &o); err != nil { t.Fatalf("bad test issue: %v", err) }
    return raw.Issue(o)
}

func TestNormalizeIssueDefaultsWhenFieldsMissing(t *testing.T) {
    n := New(&fakeSink{}, zerolog.Nop())
    rec, err := n.NormalizeIssue(context.Background(), issueFromJSON(t, `{"key":"ABC-1"}`), t.TempDir())
    if err != nil { t.Fatalf("normalize: %v", err) }

    if rec.Key != "ABC-1" { t.Fatalf("key = %q", rec.Key) }
    if rec.Summary != "" || rec.Status != "" || rec.Priority != "" || rec.Reporter != "" {
        t.Fatalf("absent scalars must default to empty, got %+v", rec)
    }
    if rec.Subtasks == nil || len(rec.Subtasks) != 0 { t.Fatalf("subtasks = %v", rec.Subtasks) }
    if rec.Files == nil || len(rec.Files) != 0 { t.Fatalf("files = %v", rec.Files) }
    if rec.ParentKey != nil { t.Fatalf("parent fields must be absent") }
}

func TestNormalizeIssueParentPresence(t *testing.T) {
    n := New(&fakeSink{}, zerolog.Nop())

    withParent := `{"key":"ABC-2","fields":{"parent":{"key":"ABC-1","fields":{
        "summary":"epic","priority":{"name":"High"},
        "issuetype":{"name":"Epic","description":"big item","iconUrl":"http://x/icon.png"}}}}}`
    rec, err := n.NormalizeIssue(context.Background(), issueFromJSON(t, withParent), t.TempDir())
    if err != nil { t.Fatalf("normalize: %v", err) }

    b, err := json.Marshal(rec)
    if err != nil { t.Fatalf("marshal: %v", err) }
    var out map[string]any
    if err := json.Unmarshal(b, &out); err != nil { t.Fatalf("unmarshal: %v", err) }
    for _, field := range []string{"parent_key", "parent_summary", "parent_priority", "parent_issuetype", "parent_description", "parent_issuetype_icon"} {
        if _, ok := out[field]; !ok { t.Fatalf("missing %s in serialized record", field) }
    }
    if out["parent_key"] != "ABC-1" { t.Fatalf("parent_key = %v", out["parent_key"]) }
    if out["parent_issuetype"] != "Epic" { t.Fatalf("parent_issuetype = %v", out["parent_issuetype"]) }

    // parent without its own fields sub-object does not count as a parent
    bare := `{"key":"ABC-3","fields":{"parent":{"key":"ABC-1"}}}`
    rec, err = n.NormalizeIssue(context.Background(), issueFromJSON(t, bare), t.TempDir())
    if err != nil { t.Fatalf("normalize bare parent: %v", err) }
    b, _ = json.Marshal(rec)
    out = map[string]any{}
    _ = json.Unmarshal(b, &out)
    if _, ok := out["parent_key"]; ok { t.Fatalf("parent_key must be omitted when parent has no fields") }
}

func TestNormalizeIssueSubtaskOrderAndDefaults(t *testing.T) {
    n := New(&fakeSink{}, zerolog.Nop())
    src := `{"key":"ABC-4","fields":{"subtasks":[
        {"key":"ABC-5","fields":{"summary":"first","status":{"name":"Done"},"issuetype":{"name":"Sub-task"}}},
        {"key":"ABC-6"}]}}`
    rec, err := n.NormalizeIssue(context.Background(), issueFromJSON(t, src), t.TempDir())
    if err != nil { t.Fatalf("normalize: %v", err) }
    if len(rec.Subtasks) != 2 { t.Fatalf("subtasks = %d", len(rec.Subtasks)) }
    if rec.Subtasks[0].Key != "ABC-5" || rec.Subtasks[1].Key != "ABC-6" {
        t.Fatalf("subtask order not preserved: %+v", rec.Subtasks)
    }
    if rec.Subtasks[1].Summary != "" || rec.Subtasks[1].Status != "" {
        t.Fatalf("absent subtask fields must default to empty: %+v", rec.Subtasks[1])
    }
}

func TestNormalizeIssueAttachments(t *testing.T) {
    sink := &fakeSink{text: "extracted body"}
    n := New(sink, zerolog.Nop())
    src := `{"key":"ABC-7","fields":{"attachment":[
        {"filename":"spec.pdf","content":"http://x/1"},
        {"filename":"broken.pdf"},
        {"content":"http://x/2"}]}}`
    rec, err := n.NormalizeIssue(context.Background(), issueFromJSON(t, src), t.TempDir())
    if err != nil { t.Fatalf("normalize: %v", err) }
    if len(sink.calls) != 1 || sink.calls[0] != "spec.pdf" {
        t.Fatalf("entries without both filename and content must be skipped, calls = %v", sink.calls)
    }
    if len(rec.Files) != 1 || rec.Files[0].ExtractedText != "extracted body" {
        t.Fatalf("files = %+v", rec.Files)
    }
}

func TestNormalizeIssueAttachmentFailurePropagates(t *testing.T) {
    sink := &fakeSink{err: errors.New("download refused")}
    n := New(sink, zerolog.Nop())
    src := `{"key":"ABC-8","fields":{"attachment":[{"filename":"a.pdf","content":"http://x/1"}]}}`
    if _, err := n.NormalizeIssue(context.Background(), issueFromJSON(t, src), t.TempDir()); err == nil {
        t.Fatalf("attachment failure must abort the issue")
    }
}

func TestParseTimestamp(t *testing.T) {
    if got := parseTimestamp("2024-03-05T10:11:12.000+0330"); got == "" {
        t.Fatalf("jira timestamp must parse")
    }
    if got := parseTimestamp("not a date"); got != "" {
        t.Fatalf("unparseable input must yield empty, got %q", got)
    }
    if got := parseTimestamp(""); got != "" {
        t.Fatalf("empty input must stay empty, got %q", got)
    }
}

func TestCleanFileBoardTraversal(t *testing.T) {
    dir := t.TempDir()
    rawPath := filepath.Join(dir, "project_ABC_board_7.json")
    src := `{"project":"ABC","boards":[{"id":7,"name":"Board Seven","sprints":[
        {"id":3,"name":"Sprint 3","issues":[{"key":"ABC-1","fields":{"summary":"one"}}]},
        {"id":4,"name":"Sprint 4","issues":[{"key":"ABC-2","fields":{"summary":"two"}}]}]}]}`
    if err := os.WriteFile(rawPath, []byte(src), 0o644); err != nil { t.Fatalf("write raw: %v", err) }

    outDir := filepath.Join(dir, "cleaned")
    n := New(&fakeSink{}, zerolog.Nop())
    count, err := n.CleanFile(context.Background(), rawPath, outDir)
    if err != nil { t.Fatalf("clean: %v", err) }
    if count != 2 { t.Fatalf("count = %d", count) }

    b, err := os.ReadFile(filepath.Join(outDir, "project_ABC_board_7_cleaned.json"))
    if err != nil { t.Fatalf("read cleaned: %v", err) }
    var out map[string]any
    if err := json.Unmarshal(b, &out); err != nil { t.Fatalf("unmarshal cleaned: %v", err) }
    if out["project_name"] != "ABC" { t.Fatalf("project_name = %v", out["project_name"]) }
    if out["total"] != float64(2) { t.Fatalf("total = %v", out["total"]) }

    issues := out["issues"].([]any)
    first := issues[0].(map[string]any)
    if first["board_name"] != "Board Seven" || first["sprint_name"] != "Sprint 3" {
        t.Fatalf("board/sprint stamping missing: %v", first)
    }
}

func TestCleanFileFlatIssueList(t *testing.T) {
    dir := t.TempDir()
    rawPath := filepath.Join(dir, "flat.json")
    src := `{"project":"XYZ","issues":[{"key":"XYZ-1","fields":{"summary":"solo"}}]}`
    if err := os.WriteFile(rawPath, []byte(src), 0o644); err != nil { t.Fatalf("write raw: %v", err) }

    n := New(&fakeSink{}, zerolog.Nop())
    count, err := n.CleanFile(context.Background(), rawPath, filepath.Join(dir, "out"))
    if err != nil { t.Fatalf("clean: %v", err) }
    if count != 1 { t.Fatalf("count = %d", count) }
}

func TestCleanFileUnknownProject(t *testing.T) {
    dir := t.TempDir()
    rawPath := filepath.Join(dir, "anon.json")
    if err := os.WriteFile(rawPath, []byte(`{"issues":[]}`), 0o644); err != nil { t.Fatalf("write raw: %v", err) }

    n := New(&fakeSink{}, zerolog.Nop())
    if _, err := n.CleanFile(context.Background(), rawPath, filepath.Join(dir, "out")); err != nil {
        t.Fatalf("clean: %v", err)
    }
    b, err := os.ReadFile(filepath.Join(dir, "out", "anon_cleaned.json"))
    if err != nil { t.Fatalf("read cleaned: %v", err) }
    var out map[string]any
    _ = json.Unmarshal(b, &out)
    if out["project_name"] != "UnknownProject" { t.Fatalf("project_name = %v", out["project_name"]) }
}
