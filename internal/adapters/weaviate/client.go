// Package weaviate manages the vector collection the merged corpus is
// uploaded into. Object IDs are derived deterministically from the issue key
// so re-uploads overwrite instead of duplicating.
package weaviate

import (
    "context"
    "encoding/json"
    "fmt"
    "net/url"
    "strings"

    "github.com/go-openapi/strfmt"
    "github.com/google/uuid"
    "github.com/rs/zerolog"
    wv "github.com/weaviate/weaviate-go-client/v4/weaviate"
    "github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
    "github.com/weaviate/weaviate/entities/models"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/config"
)

const batchSize = 50

type Client struct {
    cli   *wv.Client
    class string
    log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) (*Client, error) {
    u, err := url.Parse(cfg.WeaviateURL)
    if err != nil { return nil, fmt.Errorf("weaviate: bad url %q: %w", cfg.WeaviateURL, err) }
    scheme := u.Scheme
    if scheme == "" { scheme = "http" }

    wcfg := wv.Config{
        Host:   u.Host,
        Scheme: scheme,
        Headers: map[string]string{"X-OpenAI-Api-Key": cfg.OpenAIKey},
    }
    if cfg.WeaviateAPIKey != "" {
        wcfg.AuthConfig = auth.ApiKey{Value: cfg.WeaviateAPIKey}
    }
    cli, err := wv.NewClient(wcfg)
    if err != nil { return nil, err }
    return &Client{cli: cli, class: cfg.WeaviateClass, log: log}, nil
}

// EnsureClass creates the collection with the OpenAI vectorizer if it does
// not exist yet. An existing class is left untouched.
func (c *Client) EnsureClass(ctx context.Context) error {
    exists, err := c.cli.Schema().ClassExistenceChecker().WithClassName(c.class).Do(ctx)
    if err != nil { return err }
    if exists {
        c.log.Debug().Str("class", c.class).Msg("weaviate class already exists")
        return nil
    }
    class := &models.Class{
        Class:      c.class,
        Vectorizer: "text2vec-openai",
        Properties: []*models.Property{
            {Name: "key", DataType: []string{"text"}},
            {Name: "project_key", DataType: []string{"text"}},
            {Name: "project_name", DataType: []string{"text"}},
            {Name: "summary", DataType: []string{"text"}},
            {Name: "description", DataType: []string{"text"}},
            {Name: "issue_type", DataType: []string{"text"}},
            {Name: "status", DataType: []string{"text"}},
            {Name: "priority", DataType: []string{"text"}},
            {Name: "created", DataType: []string{"text"}},
            {Name: "updated", DataType: []string{"text"}},
            {Name: "reporter", DataType: []string{"text"}},
            {Name: "creator", DataType: []string{"text"}},
            {Name: "parent_key", DataType: []string{"text"}},
            {Name: "parent_summary", DataType: []string{"text"}},
            {Name: "parent_priority", DataType: []string{"text"}},
            {Name: "parent_issuetype", DataType: []string{"text"}},
            {Name: "parent_description", DataType: []string{"text"}},
            {Name: "parent_issuetype_icon", DataType: []string{"text"}},
            {Name: "subtasks", DataType: []string{"text[]"}},
            {Name: "files", DataType: []string{"text[]"}},
        },
    }
    if err := c.cli.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil { return err }
    c.log.Info().Str("class", c.class).Msg("weaviate class created")
    return nil
}

// Upload pushes the merged corpus in batches. Records without a key are
// skipped. Returns the number of objects submitted.
func (c *Client) Upload(ctx context.Context, records []map[string]any) (int, error) {
    objs := make([]*models.Object, 0, len(records))
    for _, rec := range records {
        key, _ := rec["key"].(string)
        if key == "" { continue }
        objs = append(objs, &models.Object{
            Class:      c.class,
            ID:         strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String()),
            Properties: properties(rec),
        })
    }

    uploaded := 0
    for start := 0; start < len(objs); start += batchSize {
        end := start + batchSize
        if end > len(objs) { end = len(objs) }
        resp, err := c.cli.Batch().ObjectsBatcher().WithObjects(objs[start:end]...).Do(ctx)
        if err != nil { return uploaded, err }
        for _, r := range resp {
            if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
                return uploaded, fmt.Errorf("weaviate: object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
            }
        }
        uploaded += end - start
        c.log.Debug().Int("uploaded", uploaded).Int("total", len(objs)).Msg("weaviate batch stored")
    }
    return uploaded, nil
}

// properties maps a corpus record to the class schema. Nested subtask and
// file entries are flattened to text so the vectorizer can use them.
func properties(rec map[string]any) map[string]any {
    props := map[string]any{}
    for _, field := range []string{
        "key", "project_key", "project_name", "summary", "description",
        "issue_type", "status", "priority", "created", "updated",
        "reporter", "creator",
        "parent_key", "parent_summary", "parent_priority", "parent_issuetype",
        "parent_description", "parent_issuetype_icon",
    } {
        if v, ok := rec[field].(string); ok { props[field] = v }
    }
    props["subtasks"] = textList(rec["subtasks"])
    props["files"] = textList(rec["files"])
    return props
}

func textList(v any) []string {
    items, ok := v.([]any)
    if !ok { return []string{} }
    out := make([]string, 0, len(items))
    for _, it := range items {
        switch t := it.(type) {
        case string:
            out = append(out, t)
        case map[string]any:
            parts := make([]string, 0, len(t))
            for _, field := range []string{"key", "filename", "summary", "status", "issuetype", "extracted_text"} {
                if s, ok := t[field].(string); ok && s != "" { parts = append(parts, s) }
            }
            if len(parts) > 0 {
                out = append(out, strings.Join(parts, " | "))
                continue
            }
            b, err := json.Marshal(t)
            if err == nil { out = append(out, string(b)) }
        }
    }
    return out
}
