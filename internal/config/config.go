/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "log"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

type Config struct {
    AppEnv   string
    TZ       string
    HTTPAddr string

    JiraBaseURL    string
    JiraEmail      string
    JiraAPIToken   string
    JiraProjects   []string

    OpenAIKey         string
    OpenAIVisionModel string
    OpenAITimeout     time.Duration

    WeaviateURL     string
    WeaviateAPIKey  string
    WeaviateClass   string

    DataDir       string
    WebhookSecret string

    SyncCron    string
    HTTPTimeout time.Duration
}

// Directory layout under DataDir, mirroring the pipeline stages.
func (c Config) RawDir() string      { return filepath.Join(c.DataDir, "board_project_data") }
func (c Config) CleanedDir() string  { return c.RawDir() + "_cleaned" }
func (c Config) CombinedDir() string { return filepath.Join(c.DataDir, "combined") }
func (c Config) UpsertPath() string  { return filepath.Join(c.DataDir, "all_issues.csv") }

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

func parseStrings(csv string) []string {
    if csv == "" { return nil }
    parts := strings.Split(csv, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        out = append(out, p)
    }
    return out
}

func Load() Config {
    // Optional .env in the working directory; real deployments use the environment.
    _ = godotenv.Load()

    cfg := Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        TZ:       getenv("APP_TZ", "UTC"),
        HTTPAddr: getenv("HTTP_ADDR", ":8080"),

        JiraBaseURL:  getenv("JIRA_URL", ""),
        JiraEmail:    getenv("USER_EMAIL", ""),
        JiraAPIToken: getenv("JIRA_API_TOKEN", ""),
        JiraProjects: parseStrings(getenv("JIRA_PROJECTS", "")),

        OpenAIKey:         getenv("OPENAI_API_KEY", ""),
        OpenAIVisionModel: getenv("OPENAI_VISION_MODEL", "gpt-4o"),
        OpenAITimeout:     dur("OPENAI_TIMEOUT", 60*time.Second),

        WeaviateURL:    getenv("WEAVIATE_URL", ""),
        WeaviateAPIKey: getenv("WEAVIATE_API_KEY", ""),
        WeaviateClass:  getenv("WEAVIATE_COLLECTION_NAME", "JiraIssue"),

        DataDir:       getenv("DATA_DIR", "data"),
        WebhookSecret: getenv("WEBHOOK_SECRET", ""),

        SyncCron:    getenv("CRON_SPEC", "0 2 * * *"),
        HTTPTimeout: dur("HTTP_TIMEOUT", 30*time.Second),
    }

    if loc, err := time.LoadLocation(cfg.TZ); err == nil {
        time.Local = loc
    } else {
        log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
    }
    return cfg
}
