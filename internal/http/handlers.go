/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "errors"
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/config"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/services"
)

type handlers struct {
    cfg config.Config
    svc *services.Service
    log zerolog.Logger
}

func (h *handlers) health(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) lastRun(c *gin.Context) {
    report := h.svc.LastRun()
    if report == nil {
        c.JSON(http.StatusOK, gin.H{"status": "never_run"})
        return
    }
    c.JSON(http.StatusOK, report)
}

// triggerSync starts a sync in the background and returns immediately. The
// run detaches from the request context so a closed connection cannot abort
// it; an in-flight run is refused so two triggers never race on the stores.
func (h *handlers) triggerSync(c *gin.Context) {
    if err := h.svc.StartSync(); err != nil {
        if errors.Is(err, services.ErrSyncRunning) {
            c.JSON(http.StatusConflict, gin.H{"status": "already_running"})
            return
        }
        h.log.Error().Err(err).Msg("manual sync failed to start")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
        return
    }
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *handlers) webhook(c *gin.Context) {
    if h.cfg.WebhookSecret != "" && c.GetHeader("X-Webhook-Secret") != h.cfg.WebhookSecret {
        c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
        return
    }
    var payload map[string]any
    if err := c.ShouldBindJSON(&payload); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
        return
    }
    result, err := h.svc.UpsertEvent(payload)
    if err != nil {
        h.log.Error().Err(err).Msg("webhook upsert failed")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
        return
    }
    c.JSON(http.StatusOK, gin.H{"status": result.Action, "key": result.Row["key"]})
}
