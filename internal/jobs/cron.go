package jobs

import (
    "context"
    "errors"
    "time"

    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/config"
    "github.com/sagar-endluri/jira-rag-pipeline/internal/services"
)

type Scheduler struct {
    c   *cron.Cron
    svc *services.Service
    log zerolog.Logger
}

func NewScheduler(cfg config.Config, svc *services.Service, log zerolog.Logger) (*Scheduler, error) {
    loc, err := time.LoadLocation(cfg.TZ)
    if err != nil { loc = time.UTC }
    s := &Scheduler{
        c:   cron.New(cron.WithLocation(loc)),
        svc: svc,
        log: log,
    }
    if _, err := s.c.AddFunc(cfg.SyncCron, s.tick); err != nil { return nil, err }
    return s, nil
}

func (s *Scheduler) tick() {
    // the service holds the single-flight guard; an overrunning sync skips the tick
    if err := s.svc.RunSync(context.Background()); err != nil {
        if errors.Is(err, services.ErrSyncRunning) {
            s.log.Warn().Msg("previous sync still running, tick skipped")
            return
        }
        s.log.Error().Err(err).Msg("scheduled sync failed")
    }
}

func (s *Scheduler) Start() { s.c.Start() }

func (s *Scheduler) Stop() context.Context { return s.c.Stop() }
