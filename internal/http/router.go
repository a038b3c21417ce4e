/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/config"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/services"
)

func NewRouter(cfg config.Config, svc *services.Service, log zerolog.Logger) *gin.Engine {
    if cfg.AppEnv == "prod" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())

    h := &handlers{cfg: cfg, svc: svc, log: log}

    r.GET("/healthz", h.health)
    r.GET("/admin/last-run", h.lastRun)
    r.POST("/admin/sync", h.triggerSync)
    r.POST("/webhook/jira", h.webhook)
    return r
}
