/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "sync"
    "time"

    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/config"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/domain"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/fingerprint"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/merge"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/normalize"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/raw"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/upsert"
)

const pageSize = 50

// ErrSyncRunning is returned when a sync is requested while one is in flight.
// The pipeline writes fingerprint and snapshot files without cross-run
// coordination, so overlapping runs are refused rather than serialized.
var ErrSyncRunning = errors.New("sync already running")

// JiraClient is the slice of the Jira API the sync pipeline consumes.
type JiraClient interface {
    Boards(ctx context.Context, startAt, max int) (map[string]any, error)
    BoardsForProject(ctx context.Context, projectKey string, startAt, max int) (map[string]any, error)
    Sprints(ctx context.Context, boardID int64, startAt, max int) (map[string]any, error)
    SprintIssues(ctx context.Context, sprintID int64, startAt, max int) (map[string]any, error)
    BoardIssues(ctx context.Context, boardID int64, startAt, max int) (map[string]any, error)
}

// CorpusIndex receives the merged corpus. Nil index means indexing is off.
type CorpusIndex interface {
    EnsureClass(ctx context.Context) error
    Upload(ctx context.Context, records []map[string]any) (int, error)
}

type Service struct {
    cfg    config.Config
    jira   JiraClient
    fps    *fingerprint.Store
    norm   *normalize.Normalizer
    merger *merge.Merger
    ups    *upsert.Store
    index  CorpusIndex
    log    zerolog.Logger

    // single-flight guard shared by every entry point (cron, admin trigger)
    runMu sync.Mutex

    mu      sync.Mutex
    lastRun *domain.SyncReport
}

func New(cfg config.Config, jira JiraClient, fps *fingerprint.Store, norm *normalize.Normalizer, merger *merge.Merger, ups *upsert.Store, index CorpusIndex, log zerolog.Logger) *Service {
    return &Service{cfg: cfg, jira: jira, fps: fps, norm: norm, merger: merger, ups: ups, index: index, log: log}
}

// RunSync walks the full pipeline: discover boards, fetch changed board
// subtrees, clean every raw snapshot, merge the cleaned corpus and upload it
// when an index is configured. Cleaning isolates failures at file level; a
// failed file is counted and skipped, never fatal for the batch.
// Returns ErrSyncRunning without touching any state when a run is in flight.
func (s *Service) RunSync(ctx context.Context) error {
    if !s.runMu.TryLock() { return ErrSyncRunning }
    defer s.runMu.Unlock()
    return s.runReported(ctx)
}

// StartSync launches a sync in the background, holding the single-flight
// guard for the run's whole lifetime. Returns ErrSyncRunning immediately
// when one is already in flight.
func (s *Service) StartSync() error {
    if !s.runMu.TryLock() { return ErrSyncRunning }
    go func() {
        defer s.runMu.Unlock()
        if err := s.runReported(context.Background()); err != nil {
            s.log.Error().Err(err).Msg("background sync failed")
        }
    }()
    return nil
}

func (s *Service) runReported(ctx context.Context) error {
    started := time.Now().UTC()
    report := domain.SyncReport{StartedAt: started}
    err := s.runSync(ctx, &report)
    finished := time.Now().UTC()
    report.FinishedAt = &finished
    report.Success = err == nil
    if err != nil { report.Error = err.Error() }

    s.mu.Lock()
    s.lastRun = &report
    s.mu.Unlock()

    if err != nil {
        s.log.Error().Err(err).Msg("sync failed")
        return err
    }
    s.log.Info().
        Int("boards_seen", report.BoardsSeen).
        Int("boards_skipped", report.BoardsSkipped).
        Int("files_cleaned", report.FilesCleaned).
        Int("files_failed", report.FilesFailed).
        Int("corpus_records", report.CorpusRecords).
        Int("uploaded", report.Uploaded).
        Dur("took", finished.Sub(started)).
        Msg("sync complete")
    return nil
}

func (s *Service) runSync(ctx context.Context, report *domain.SyncReport) error {
    if err := os.MkdirAll(s.cfg.RawDir(), 0o755); err != nil { return err }

    projects, err := s.discoverProjects(ctx)
    if err != nil { return err }
    s.log.Info().Strs("projects", projects).Msg("projects discovered")

    for _, key := range projects {
        if err := s.fetchProject(ctx, key, report); err != nil { return fmt.Errorf("fetch project %s: %w", key, err) }
    }

    if err := s.cleanAll(ctx, report); err != nil { return err }

    records, _, err := s.merger.Merge(s.cfg.CleanedDir(), s.cfg.CombinedDir())
    if err != nil { return err }
    report.CorpusRecords = len(records)

    if s.index != nil {
        if err := s.index.EnsureClass(ctx); err != nil { return err }
        n, err := s.index.Upload(ctx, records)
        if err != nil { return err }
        report.Uploaded = n
    }
    return nil
}

// discoverProjects pages through all boards and collects the project keys they
// belong to. An explicit JIRA_PROJECTS list overrides discovery.
func (s *Service) discoverProjects(ctx context.Context) ([]string, error) {
    if len(s.cfg.JiraProjects) > 0 { return s.cfg.JiraProjects, nil }

    seen := map[string]bool{}
    for startAt := 0; ; {
        page, err := s.jira.Boards(ctx, startAt, pageSize)
        if err != nil { return nil, err }
        values := raw.Object(page).List("values")
        for _, board := range values {
            key := board.Obj("location").Str("projectKey")
            if key != "" { seen[key] = true }
        }
        startAt += len(values)
        if len(values) < pageSize { break }
    }

    keys := make([]string, 0, len(seen))
    for k := range seen { keys = append(keys, k) }
    sort.Strings(keys)
    return keys, nil
}

// fetchProject pulls every board of the project with its sprint/issue subtree,
// fingerprints each board and writes a raw snapshot only when the board
// changed since the last committed state.
func (s *Service) fetchProject(ctx context.Context, projectKey string, report *domain.SyncReport) error {
    boards, err := s.pageAll(ctx, func(startAt int) (map[string]any, error) {
        return s.jira.BoardsForProject(ctx, projectKey, startAt, pageSize)
    })
    if err != nil { return err }

    for _, board := range boards {
        boardID := board.Int64("id")
        if boardID <= 0 { continue }
        report.BoardsSeen++

        subtree, err := s.fetchBoard(ctx, board)
        if err != nil { return err }

        fp, err := s.fps.Fingerprint(subtree)
        if err != nil { return err }
        changed, err := s.fps.HasChanged(boardID, fp)
        if err != nil { return err }
        if !changed {
            report.BoardsSkipped++
            s.log.Debug().Int64("board", boardID).Str("project", projectKey).Msg("board unchanged, skipping")
            continue
        }

        snapshot := map[string]any{
            "project": projectKey,
            "boards":  []any{subtree},
        }
        b, err := json.MarshalIndent(snapshot, "", "  ")
        if err != nil { return err }
        path := filepath.Join(s.cfg.RawDir(), fmt.Sprintf("project_%s_board_%d.json", projectKey, boardID))
        if err := os.WriteFile(path, b, 0o644); err != nil { return err }
        if err := s.fps.Commit(boardID, fp); err != nil { return err }
        s.log.Info().Int64("board", boardID).Str("file", path).Msg("board snapshot written")
    }
    return nil
}

// fetchBoard builds the board subtree: board info plus all sprints with their
// issues. Boards without sprints fall back to the board issue list under a
// synthetic sprint entry so downstream traversal stays uniform.
func (s *Service) fetchBoard(ctx context.Context, board raw.Object) (map[string]any, error) {
    boardID := board.Int64("id")
    sprints, err := s.pageAll(ctx, func(startAt int) (map[string]any, error) {
        return s.jira.Sprints(ctx, boardID, startAt, pageSize)
    })
    if err != nil { return nil, err }

    sprintList := make([]any, 0, len(sprints))
    for _, sprint := range sprints {
        sprintID := sprint.Int64("id")
        issues, err := s.pageAll(ctx, func(startAt int) (map[string]any, error) {
            return s.jira.SprintIssues(ctx, sprintID, startAt, pageSize)
        })
        if err != nil { return nil, err }
        entry := map[string]any(sprint)
        entry["issues"] = toAnyList(issues)
        sprintList = append(sprintList, entry)
    }

    if len(sprintList) == 0 {
        issues, err := s.pageAll(ctx, func(startAt int) (map[string]any, error) {
            return s.jira.BoardIssues(ctx, boardID, startAt, pageSize)
        })
        if err != nil { return nil, err }
        if len(issues) > 0 {
            sprintList = append(sprintList, map[string]any{
                "id":     board.Int64("id"),
                "name":   "backlog",
                "issues": toAnyList(issues),
            })
        }
    }

    subtree := map[string]any{
        "id":      board.Int64("id"),
        "name":    board.Str("name"),
        "type":    board.Str("type"),
        "sprints": sprintList,
    }
    return subtree, nil
}

// pageAll drains a paginated agile endpoint. Both envelope shapes are handled:
// "values" for boards and sprints, "issues" for issue search.
func (s *Service) pageAll(ctx context.Context, fetch func(startAt int) (map[string]any, error)) ([]raw.Object, error) {
    var out []raw.Object
    for startAt := 0; ; {
        page, err := fetch(startAt)
        if err != nil { return nil, err }
        env := raw.Object(page)
        values := env.List("values")
        if !env.Has("values") { values = env.List("issues") }
        out = append(out, values...)
        startAt += len(values)
        if len(values) < pageSize { break }
    }
    return out, nil
}

func toAnyList(objs []raw.Object) []any {
    out := make([]any, len(objs))
    for i, o := range objs { out[i] = map[string]any(o) }
    return out
}

// cleanAll normalizes every raw snapshot. One failed file (including a failed
// attachment inside it) is logged and skipped; the rest of the batch runs.
func (s *Service) cleanAll(ctx context.Context, report *domain.SyncReport) error {
    files, err := filepath.Glob(filepath.Join(s.cfg.RawDir(), "*.json"))
    if err != nil { return err }
    sort.Strings(files)
    for _, path := range files {
        n, err := s.norm.CleanFile(ctx, path, s.cfg.CleanedDir())
        if err != nil {
            report.FilesFailed++
            s.log.Error().Err(err).Str("file", path).Msg("cleaning failed, skipping file")
            continue
        }
        report.FilesCleaned++
        s.log.Debug().Str("file", path).Int("issues", n).Msg("file cleaned")
    }
    return nil
}

// UpsertEvent applies one webhook issue event to the CSV index.
func (s *Service) UpsertEvent(payload map[string]any) (domain.UpsertResult, error) {
    return s.ups.Upsert(payload)
}

// LastRun returns the report of the most recent sync, nil before the first.
func (s *Service) LastRun() *domain.SyncReport {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.lastRun
}
