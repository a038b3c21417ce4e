/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/adapters/jira"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/adapters/openai"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/adapters/weaviate"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/config"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/extract"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/fingerprint"
    httpx "github.com/sagar-endluri/jira-rag-pipeline/internal/http"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/jobs"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/logger"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/merge"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/normalize"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/services"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/upsert"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    log.Info().Str("env", cfg.AppEnv).Msg("starting jira-rag-pipeline")

    jiraClient := jira.NewClient(cfg, log)
    visionClient := openai.NewClient(cfg, log)

    extractor := extract.New(jiraClient, visionClient, log)
    normalizer := normalize.New(extractor, log)
    fps := fingerprint.NewStore(cfg.RawDir(), log)
    merger := merge.New(log)
    upserter := upsert.New(cfg.UpsertPath(), log)

    var index services.CorpusIndex
    if cfg.WeaviateURL != "" {
        wvClient, err := weaviate.NewClient(cfg, log)
        if err != nil { log.Fatal().Err(err).Msg("weaviate client init failed") }
        index = wvClient
    } else {
        log.Warn().Msg("WEAVIATE_URL not set, corpus indexing disabled")
    }

    svc := services.New(cfg, jiraClient, fps, normalizer, merger, upserter, index, log)

    sched, err := jobs.NewScheduler(cfg, svc, log)
    if err != nil { log.Fatal().Err(err).Msg("invalid cron spec") }
    sched.Start()

    router := httpx.NewRouter(cfg, svc, log)
    srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
    go func() {
        log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal().Err(err).Msg("http server failed")
        }
    }()

    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    <-quit
    log.Info().Msg("shutting down")

    <-sched.Stop().Done()
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := srv.Shutdown(ctx); err != nil {
        log.Error().Err(err).Msg("http shutdown error")
    }
    log.Info().Msg("bye")
}
