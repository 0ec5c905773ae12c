package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Resinat/Inlay/internal/api"
	"github.com/Resinat/Inlay/internal/buildinfo"
	"github.com/Resinat/Inlay/internal/config"
	"github.com/Resinat/Inlay/internal/customer"
	"github.com/Resinat/Inlay/internal/engine"
	"github.com/Resinat/Inlay/internal/gateway"
	"github.com/Resinat/Inlay/internal/metrics"
	"github.com/Resinat/Inlay/internal/netutil"
	"github.com/Resinat/Inlay/internal/state"
)

// flushCheckTick is how often the display-state flush worker evaluates its
// threshold and interval conditions.
const flushCheckTick = 5 * time.Second

type inlayApp struct {
	envCfg      *config.EnvConfig
	store       *state.DisplayStore
	flushWorker *state.FlushWorker
	metricsMgr  *metrics.Manager
	engine      *engine.Engine
	scheduler   *engine.ReloadScheduler
	apiSrv      *api.Server
	apiLn       net.Listener
}

func run() error {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	warnWeakTokens(envCfg)

	store, dbCloser, err := state.PersistenceBootstrap(envCfg.StateDir)
	if err != nil {
		return fmt.Errorf("persistence bootstrap: %w", err)
	}
	log.Printf("Persistence bootstrap complete (%d display states)", store.Len())

	app, err := newInlayApp(envCfg, store)
	if err != nil {
		_ = dbCloser.Close()
		return err
	}

	serverErrCh := app.startServers()
	runtimeErr := waitForShutdown(serverErrCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.shutdown(ctx)

	if err := dbCloser.Close(); err != nil {
		log.Printf("Persistence close error: %v", err)
	}
	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}

func warnWeakTokens(envCfg *config.EnvConfig) {
	if config.IsWeakToken(envCfg.AdminToken) {
		log.Println("Warning: INLAY_ADMIN_TOKEN is weak; use a longer random token")
	}
	if envCfg.AdminToken == "" {
		log.Println("Warning: INLAY_ADMIN_TOKEN is empty; API authentication is disabled")
	}
}

func newInlayApp(envCfg *config.EnvConfig, store *state.DisplayStore) (*inlayApp, error) {
	app := &inlayApp{envCfg: envCfg, store: store}

	// Phase 1: Display-state flush worker.
	app.flushWorker = state.NewFlushWorker(
		store,
		envCfg.DisplayStateFlushThreshold,
		envCfg.DisplayStateFlushInterval,
		flushCheckTick,
	)

	// Phase 2: Metrics.
	app.metricsMgr = metrics.NewManager(metrics.ManagerConfig{
		LatencyBinMs:      envCfg.MetricLatencyBinWidthMS,
		LatencyOverflowMs: envCfg.MetricLatencyOverflowMS,
		RealtimeCapacity:  envCfg.MetricRealtimeCapacity,
		SampleInterval:    envCfg.MetricSampleInterval,
	})

	// Phase 3: Gateway.
	gw, err := buildGateway(envCfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	// Phase 4: Engine and reload scheduler.
	app.engine, err = engine.New(engine.Config{
		Gateway:               gw,
		Store:                 store,
		CustomerIDs:           customer.IDs{"cookie": uuid.NewString()},
		AwaitTimeout:          envCfg.AwaitTimeout,
		AwaitMode:             envCfg.ParsedAwaitMode,
		SupportedContentTypes: envCfg.ParsedContentType,
		AutoLoadPlaceholders:  envCfg.AutoLoadPlaceholders,
		NoticeDedupWindow:     envCfg.NoticeDedupWindow,
		Metrics:               app.metricsMgr,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	app.scheduler, err = engine.NewReloadScheduler(app.engine, engine.SchedulerConfig{
		ReloadSchedule:  envCfg.ReloadSchedule,
		ReloadTimeout:   envCfg.FetchTimeout * time.Duration(envCfg.FetchAttempts),
		WarmMinInterval: envCfg.WarmMinInterval,
		WarmJitter:      envCfg.WarmJitter,
	})
	if err != nil {
		app.engine.Close()
		return nil, err
	}
	log.Println("Engine and reload scheduler initialized")

	// Phase 5: API server.
	if err := app.buildNetworkServers(); err != nil {
		app.engine.Close()
		return nil, err
	}

	app.startBackgroundServices()
	return app, nil
}

func buildGateway(envCfg *config.EnvConfig) (gateway.Gateway, error) {
	switch envCfg.GatewayMode {
	case config.GatewayModeFixture:
		gw, err := gateway.LoadFixture(envCfg.GatewayFixturePath)
		if err != nil {
			return nil, err
		}
		log.Printf("Using fixture gateway from %s", envCfg.GatewayFixturePath)
		return gw, nil
	case config.GatewayModeHTTP:
		header := http.Header{}
		if envCfg.GatewayAuthValue != "" {
			header.Set(envCfg.GatewayAuthHeader, envCfg.GatewayAuthValue)
		}
		client := netutil.NewClient(envCfg.FetchTimeout, "Inlay/"+buildinfo.Version, header)
		doer := &netutil.RetryDoer{
			Next:     client,
			Attempts: envCfg.FetchAttempts,
			Backoff:  500 * time.Millisecond,
		}
		log.Printf("Using HTTP gateway at %s", envCfg.GatewayBaseURL)
		return gateway.NewHTTPGateway(doer, envCfg.GatewayBaseURL, envCfg.ProjectToken), nil
	default:
		return nil, fmt.Errorf("unsupported gateway mode %q", envCfg.GatewayMode)
	}
}

func (a *inlayApp) buildNetworkServers() error {
	systemInfo := api.SystemInfo{
		Version:   buildinfo.Version,
		GitCommit: buildinfo.GitCommit,
		BuildTime: buildinfo.BuildTime,
		StartedAt: time.Now().UTC(),
	}

	a.apiSrv = api.NewServer(api.Options{
		ListenAddress:   a.envCfg.ListenAddress,
		Port:            a.envCfg.Port,
		AdminToken:      a.envCfg.AdminToken,
		APIMaxBodyBytes: int64(a.envCfg.APIMaxBodyBytes),
		SystemInfo:      systemInfo,
		PublicConfig:    a.envCfg.Public(),
		Engine:          a.engine,
		DisplayStates:   a.store,
		Metrics:         a.metricsMgr,
		Reload:          a.scheduler.ReloadNow,
	})

	ln, err := net.Listen("tcp", formatListenAddress(a.envCfg.ListenAddress, a.envCfg.Port))
	if err != nil {
		return fmt.Errorf("inlay server listen: %w", err)
	}
	a.apiLn = ln
	return nil
}

func (a *inlayApp) startBackgroundServices() {
	a.flushWorker.Start()
	log.Println("Display state flush worker started")

	a.metricsMgr.Start()
	log.Println("Metrics manager started")

	// Start triggers the initial registry load in the background.
	a.scheduler.Start()
	log.Println("Reload scheduler started; initial load running in background")
}

func (a *inlayApp) startServers() <-chan error {
	serverErrCh := make(chan error, 1)
	reportServerErr := func(name string, err error) {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		wrapped := fmt.Errorf("%s: %w", name, err)
		select {
		case serverErrCh <- wrapped:
		default:
		}
	}

	go func() {
		log.Printf("Inlay server starting on %s", formatListenURL(a.envCfg.ListenAddress, a.envCfg.Port))
		reportServerErr("inlay server", a.apiSrv.Serve(a.apiLn))
	}()

	return serverErrCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
		return nil
	case err := <-serverErrCh:
		log.Printf("Received server runtime error (%v), shutting down...", err)
		return err
	}
}

func formatListenAddress(listenAddress string, port int) string {
	return net.JoinHostPort(listenAddress, strconv.Itoa(port))
}

func formatListenURL(listenAddress string, port int) string {
	return "http://" + formatListenAddress(listenAddress, port)
}

func (a *inlayApp) shutdown(ctx context.Context) {
	if err := a.apiSrv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Inlay server stopped")

	// Stop in order: event sources first, then the engine, then persistence.
	a.scheduler.Stop()
	log.Println("Reload scheduler stopped")

	a.engine.Close()
	log.Println("Engine closed")

	a.metricsMgr.Stop()
	log.Println("Metrics manager stopped")

	a.flushWorker.Stop() // final display-state flush before DB close
	log.Println("Server stopped")
}
