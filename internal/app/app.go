package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"toutuo/server/internal/antibot"
	servernet "toutuo/server/internal/net"
	"toutuo/server/internal/net/ws"
	"toutuo/server/internal/sim"
	"toutuo/server/internal/telemetry"
	"toutuo/server/internal/world"
	"toutuo/server/logging"
	loggingSinks "toutuo/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// Deps are the process level dependencies Run does not build itself.
type Deps struct {
	Logger telemetry.Logger
	Zap    *zap.Logger
	// JSONOutput receives the json sink; stdout when nil.
	JSONOutput io.Writer
}

// Run serves one world until ctx is cancelled.
func Run(ctx context.Context, cfg Config, deps Deps) error {
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	metrics := logging.NewMetrics()
	sinks, closeSinks, err := buildSinks(cfg.Logging, deps)
	if err != nil {
		return err
	}
	defer closeSinks()
	router, err := logging.NewRouter(logging.SystemClock{}, cfg.Logging, metrics, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	m, err := LoadMap(cfg.MapPath)
	if err != nil {
		return err
	}

	worldID := ulid.Make().String()
	var w *world.World
	tick := func() uint64 {
		if w == nil {
			return 0
		}
		return w.Tick64()
	}
	w, err = world.New(cfg.World, m, world.Deps{
		Publisher:  router,
		Metrics:    telemetry.WrapMetrics(metrics),
		Antibot:    antibot.NewPublisherObserver(router, tick),
		InstanceID: worldID,
	})
	if err != nil {
		return fmt.Errorf("failed to construct world: %w", err)
	}

	var hub *ws.Hub
	loop, err := sim.NewEngine(w,
		sim.WithDeps(sim.Deps{
			Logger:    logger,
			Metrics:   telemetry.WrapMetrics(metrics),
			Clock:     logging.SystemClock{},
			Publisher: logging.WithTrace(router, worldID),
		}),
		sim.WithLoopHooks(sim.LoopHooks{
			AfterStep: func(result sim.LoopStepResult) { hub.Broadcast(result) },
			OnQueueWarning: func(length int) {
				logger.Printf("command queue at %d", length)
			},
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to construct simulation loop: %w", err)
	}
	hub = ws.NewHub(loop, w, ws.HubConfig{
		Logger:    logger,
		Metrics:   telemetry.WrapMetrics(metrics),
		Publisher: logging.WithTrace(router, worldID),
	})

	stop := make(chan struct{})
	go loop.Run(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Logger:        logger,
		Metrics:       metrics,
		Router:        router,
		TickRate:      loop.Config().TickRate,
		WorldID:       worldID,
		Observability: cfg.Observability,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	if std, ok := logger.(interface{ StandardLogger() *log.Logger }); ok {
		srv.ErrorLog = std.StandardLogger()
	}
	logger.Printf("server listening on %s world=%s seed=%q tick=%d", srv.Addr, worldID, w.Seed(), loop.Config().TickRate)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// buildSinks constructs the enabled sinks. The returned func closes the json
// log file when one was opened.
func buildSinks(cfg logging.Config, deps Deps) ([]logging.NamedSink, func(), error) {
	var named []logging.NamedSink
	closeFn := func() {}
	for _, name := range cfg.EnabledSinks {
		switch name {
		case logging.SinkConsole:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Console)})
		case logging.SinkJSON:
			out := deps.JSONOutput
			if out == nil && cfg.JSON.FilePath != "" {
				file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return nil, closeFn, fmt.Errorf("open json log file: %w", err)
				}
				closeFn = func() { file.Close() }
				out = file
			}
			if out == nil {
				out = os.Stdout
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(out, cfg.JSON.FlushInterval)})
		case logging.SinkZap:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewZap(deps.Zap)})
		case logging.SinkMemory:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemorySink()})
		}
	}
	return named, closeFn, nil
}
