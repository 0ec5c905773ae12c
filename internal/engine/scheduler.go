package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Resinat/Inlay/internal/scanloop"
)

// DefaultReloadSchedule reloads the registry every 30 minutes.
const DefaultReloadSchedule = "*/30 * * * *"

// SchedulerConfig configures a ReloadScheduler.
type SchedulerConfig struct {
	ReloadSchedule  string // cron expression; empty uses DefaultReloadSchedule
	ReloadTimeout   time.Duration
	WarmMinInterval time.Duration
	WarmJitter      time.Duration
}

// ReloadScheduler drives periodic registry reloads on a cron schedule and a
// jittered warm-up loop that keeps auto-load placeholders fresh.
type ReloadScheduler struct {
	engine *Engine
	cron   *cron.Cron
	cfg    SchedulerConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReloadScheduler validates the schedule and registers the reload job.
func NewReloadScheduler(e *Engine, cfg SchedulerConfig) (*ReloadScheduler, error) {
	if cfg.ReloadSchedule == "" {
		cfg.ReloadSchedule = DefaultReloadSchedule
	}
	if cfg.ReloadTimeout <= 0 {
		cfg.ReloadTimeout = time.Minute
	}
	if cfg.WarmMinInterval <= 0 {
		cfg.WarmMinInterval = scanloop.DefaultMinInterval
	}
	if cfg.WarmJitter < 0 {
		cfg.WarmJitter = 0
	}

	s := &ReloadScheduler{
		engine: e,
		cron:   cron.New(),
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
	if _, err := s.cron.AddFunc(cfg.ReloadSchedule, s.reload); err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", cfg.ReloadSchedule, err)
	}
	return s, nil
}

// Start triggers an initial background reload, then starts the cron
// scheduler and the warm-up loop.
func (s *ReloadScheduler) Start() {
	s.engine.LoadAllPlaceholders()
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		scanloop.Run(s.stopCh, s.cfg.WarmMinInterval, s.cfg.WarmJitter, s.engine.PrefetchAutoLoad)
	}()
	log.Printf("[reload] scheduler started (schedule=%q)", s.cfg.ReloadSchedule)
}

// Stop stops both loops and waits for a running reload to finish.
func (s *ReloadScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.cron.Stop().Done()
		s.wg.Wait()
	})
}

// ReloadNow reloads synchronously with the scheduler's timeout.
func (s *ReloadScheduler) ReloadNow(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReloadTimeout)
	defer cancel()
	return s.engine.Reload(ctx)
}

func (s *ReloadScheduler) reload() {
	if err := s.ReloadNow(context.Background()); err != nil {
		log.Printf("[reload] scheduled reload failed: %v", err)
	}
}
