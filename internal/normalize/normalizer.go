// Package normalize flattens raw Jira issue payloads into the fixed record
// schema the corpus is built from.
package normalize

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/araddon/dateparse"
    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/domain"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/raw"
)

// AttachmentSink receives every attachment that carries both a filename and a
// content reference. Its errors propagate out of normalization: one failed
// attachment aborts the whole enclosing source file, by contract.
type AttachmentSink interface {
    FetchAndExtract(ctx context.Context, contentURL, filename, destDir string) (string, error)
}

type Normalizer struct {
    sink AttachmentSink
    log  zerolog.Logger
}

func New(sink AttachmentSink, log zerolog.Logger) *Normalizer {
    return &Normalizer{sink: sink, log: log}
}

// NormalizeIssue flattens one raw issue. Missing optional structure never
// raises: every absent scalar becomes "", subtasks and files become empty
// sequences, and the six parent_* fields appear only when the parent carries
// its own field set.
func (n *Normalizer) NormalizeIssue(ctx context.Context, issue raw.Issue, attachDir string) (domain.IssueRecord, error) {
    fields := issue.Fields()
    project := fields.Obj("project")

    rec := domain.IssueRecord{
        Key:         issue.Key(),
        ProjectKey:  project.Str("key"),
        ProjectName: project.Str("name"),
        Summary:     fields.Str("summary"),
        Description: fields.Str("description"),
        IssueType:   fields.Obj("issuetype").Str("name"),
        Status:      fields.Obj("status").Str("name"),
        Priority:    fields.Obj("priority").Str("name"),
        Created:     parseTimestamp(fields.Str("created")),
        Updated:     parseTimestamp(fields.Str("updated")),
        Reporter:    fields.Obj("reporter").Str("displayName"),
        Creator:     fields.Obj("creator").Str("displayName"),
        Subtasks:    []domain.Subtask{},
        Files:       []domain.AttachmentResult{},
    }

    if parent, ok := issue.Parent(); ok {
        pf := parent.Fields()
        issuetype := pf.Obj("issuetype")
        rec.ParentKey = strptr(parent.Key())
        rec.ParentSummary = strptr(pf.Str("summary"))
        rec.ParentPriority = strptr(pf.Obj("priority").Str("name"))
        rec.ParentIssueType = strptr(issuetype.Str("name"))
        rec.ParentDescription = strptr(issuetype.Str("description"))
        rec.ParentIssueTypeIcon = strptr(issuetype.Str("iconUrl"))
    }

    for _, sub := range issue.Subtasks() {
        rec.Subtasks = append(rec.Subtasks, domain.Subtask{
            Key:       sub.Key(),
            Summary:   sub.Summary(),
            Status:    sub.Status(),
            IssueType: sub.IssueType(),
        })
    }

    for _, att := range issue.Attachments() {
        filename := att.Filename()
        contentURL := att.ContentURL()
        // An attachment entry missing either field is silently skipped.
        if filename == "" || contentURL == "" { continue }
        issueDir := filepath.Join(attachDir, rec.Key)
        text, err := n.sink.FetchAndExtract(ctx, contentURL, filename, issueDir)
        if err != nil { return domain.IssueRecord{}, fmt.Errorf("attachment %s of %s: %w", filename, rec.Key, err) }
        rec.Files = append(rec.Files, domain.AttachmentResult{Filename: filename, ExtractedText: text})
    }

    return rec, nil
}

// CleanFile reads one raw board snapshot, normalizes every issue it contains
// and writes the cleaned output next to the attachments it downloaded.
// Both traversal shapes are handled: the board → sprint → issue tree the
// fetcher writes, and a bare {issues: [...]} list for flat boards.
func (n *Normalizer) CleanFile(ctx context.Context, path, outDir string) (int, error) {
    if err := os.MkdirAll(outDir, 0o755); err != nil { return 0, err }
    data, err := os.ReadFile(path)
    if err != nil { return 0, err }
    var payload raw.Object
    if err := json.Unmarshal(data, &payload); err != nil { return 0, err }

    projectName := payload.Str("project")
    if projectName == "" { projectName = "UnknownProject" }

    stem := strings.TrimSuffix(filepath.Base(path), ".json")
    attachDir := filepath.Join(outDir, stem+"_attachments")

    var cleaned []domain.IssueRecord
    appendIssue := func(issue raw.Object, board, sprint raw.Object) error {
        rec, err := n.NormalizeIssue(ctx, raw.Issue(issue), attachDir)
        if err != nil { return err }
        if board != nil {
            rec.BoardID = board.Int64("id")
            rec.BoardName = board.Str("name")
        }
        if sprint != nil {
            rec.SprintID = sprint.Int64("id")
            rec.SprintName = sprint.Str("name")
        }
        cleaned = append(cleaned, rec)
        return nil
    }

    if boards := payload.List("boards"); len(boards) > 0 {
        for _, board := range boards {
            for _, sprint := range board.List("sprints") {
                issues := sprint.List("issues")
                n.log.Debug().Str("sprint", sprint.Str("name")).Int("issues", len(issues)).Msg("cleaning sprint")
                for _, issue := range issues {
                    if err := appendIssue(issue, board, sprint); err != nil { return 0, err }
                }
            }
        }
    } else {
        for _, issue := range payload.List("issues") {
            if err := appendIssue(issue, nil, nil); err != nil { return 0, err }
        }
    }

    out := domain.CleanedFile{ProjectName: projectName, Total: len(cleaned), Issues: cleaned}
    if out.Issues == nil { out.Issues = []domain.IssueRecord{} }
    b, err := json.MarshalIndent(out, "", "  ")
    if err != nil { return 0, err }
    outPath := filepath.Join(outDir, stem+"_cleaned.json")
    if err := os.WriteFile(outPath, b, 0o644); err != nil { return 0, err }
    n.log.Info().Str("file", outPath).Int("issues", len(cleaned)).Msg("cleaned file saved")
    return len(cleaned), nil
}

// parseTimestamp normalizes Jira's assorted datetime formats to RFC 3339.
// Unparseable input yields "": the rest of the record matters more than a
// broken timestamp.
func parseTimestamp(s string) string {
    if s == "" { return "" }
    t, err := dateparse.ParseAny(s)
    if err != nil { return "" }
    return t.Format(time.RFC3339)
}

func strptr(s string) *string { return &s }
