package domain

import "time"

// IssueRecord is the flat, fixed-schema form of one Jira issue after cleaning.
// Parent fields are pointers so a record without a parent omits all six keys
// while a record whose parent carries empty values still serializes them.
type IssueRecord struct {
    Key         string `json:"key"`
    ProjectKey  string `json:"project_key"`
    ProjectName string `json:"project_name"`
    Summary     string `json:"summary"`
    Description string `json:"description"`
    IssueType   string `json:"issue_type"`
    Status      string `json:"status"`
    Priority    string `json:"priority"`
    Created     string `json:"created"`
    Updated     string `json:"updated"`
    Reporter    string `json:"reporter"`
    Creator     string `json:"creator"`

    Subtasks []Subtask          `json:"subtasks"`
    Files    []AttachmentResult `json:"files"`

    ParentKey           *string `json:"parent_key,omitempty"`
    ParentSummary       *string `json:"parent_summary,omitempty"`
    ParentPriority      *string `json:"parent_priority,omitempty"`
    ParentIssueType     *string `json:"parent_issuetype,omitempty"`
    ParentDescription   *string `json:"parent_description,omitempty"`
    ParentIssueTypeIcon *string `json:"parent_issuetype_icon,omitempty"`

    BoardID    int64  `json:"board_id,omitempty"`
    BoardName  string `json:"board_name,omitempty"`
    SprintID   int64  `json:"sprint_id,omitempty"`
    SprintName string `json:"sprint_name,omitempty"`
}

type Subtask struct {
    Key       string `json:"key"`
    Summary   string `json:"summary"`
    Status    string `json:"status"`
    IssueType string `json:"issuetype"`
}

type AttachmentResult struct {
    Filename      string `json:"filename"`
    ExtractedText string `json:"extracted_text"`
}

// CleanedFile is the per-source-file output shape consumed by the merger.
type CleanedFile struct {
    ProjectName string        `json:"project_name"`
    Total       int           `json:"total"`
    Issues      []IssueRecord `json:"issues"`
}

// ProjectSummary is the per-file audit entry produced by a merge run.
type ProjectSummary struct {
    ProjectName string `json:"project_name"`
    File        string `json:"file"`
    TotalIssues int    `json:"total_issues"`
}

type UpsertResult struct {
    Action string            `json:"action"`
    Row    map[string]string `json:"row"`
}

// SyncReport tracks the outcome of one pipeline run.
type SyncReport struct {
    StartedAt     time.Time  `json:"started_at"`
    FinishedAt    *time.Time `json:"finished_at"`
    BoardsSeen    int        `json:"boards_seen"`
    BoardsSkipped int        `json:"boards_skipped"`
    FilesCleaned  int        `json:"files_cleaned"`
    FilesFailed   int        `json:"files_failed"`
    CorpusRecords int        `json:"corpus_records"`
    Uploaded      int        `json:"uploaded"`
    Success       bool       `json:"success"`
    Error         string     `json:"error"`
}
