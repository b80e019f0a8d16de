package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/machinepulse/machinepulse/internal/alarm"
	"github.com/machinepulse/machinepulse/internal/api"
	"github.com/machinepulse/machinepulse/internal/chain"
	"github.com/machinepulse/machinepulse/internal/classify"
	"github.com/machinepulse/machinepulse/internal/config"
	"github.com/machinepulse/machinepulse/internal/extract"
	"github.com/machinepulse/machinepulse/internal/health"
	"github.com/machinepulse/machinepulse/internal/ingest"
	"github.com/machinepulse/machinepulse/internal/publish"
	"github.com/machinepulse/machinepulse/internal/record"
	"github.com/machinepulse/machinepulse/internal/stage"
	"github.com/machinepulse/machinepulse/internal/store"
	"github.com/machinepulse/machinepulse/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("machinepulsed starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.HTTP.Port,
		"chains", len(cfg.Chains),
		"store_ttl", cfg.Store.TTL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Result store with background TTL eviction, plus the alarm event log.
	st := store.New(cfg.Store.TTL)
	go st.Run(ctx)
	events := store.NewEventLog(cfg.Store.MaxEvents)

	// WebSocket hub pushing results and alarms to connected clients.
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Optional AMQP event publisher.
	var publisher *publish.AMQPPublisher
	if cfg.AMQP.URL() != "" {
		publisher = publish.NewAMQP(cfg.AMQP, logger)
		go func() {
			if err := publisher.Run(ctx); err != nil {
				slog.Error("amqp publisher stopped", "err", err)
			}
		}()
	}

	emit := func(ev alarm.Event) {
		events.Append(ev)
		hub.Broadcast("alarm", ev)
		if publisher != nil {
			publisher.Enqueue(ev)
		}
	}

	registry := chain.NewRegistry()
	registry.Register("extract", func() stage.Stage { return extract.New() })   //nolint:errcheck
	registry.Register("classify", func() stage.Stage { return classify.New() }) //nolint:errcheck
	registry.Register("health", func() stage.Stage { return health.New() })     //nolint:errcheck
	registry.Register("error_health", func() stage.Stage { return health.NewError() }) //nolint:errcheck
	registry.Register("alarm", func() stage.Stage { //nolint:errcheck
		s := alarm.New()
		s.SetEmitter(emit)
		return s
	})

	metrics := chain.NewMetrics(prometheus.DefaultRegisterer)
	manager := chain.NewManager(registry, metrics, logger)
	if err := buildChains(manager, cfg); err != nil {
		slog.Error("failed to build chains", "err", err)
		os.Exit(1)
	}

	// Hot reload: tear the chains down and rebuild them from the new file.
	// Per-stage state does not survive a reload.
	watcher := config.NewWatcher(*configPath, logger, func(next *config.Config) {
		for _, name := range manager.Chains() {
			manager.RemoveChain(name) //nolint:errcheck
		}
		if err := buildChains(manager, next); err != nil {
			slog.Error("chain rebuild failed", "err", err)
		}
	})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	onResult := func(chainName string, rec record.Record) {
		res, ok := rec.(*record.Result)
		if !ok {
			return
		}
		st.Put(chainName, res)
		hub.Broadcast("result", resultPayload(chainName, res))
	}

	// Ingest: MQTT routes and Prometheus endpoint polling.
	if cfg.MQTT.Broker != "" {
		src := ingest.NewMQTT(cfg.MQTT, manager, onResult, logger)
		go func() {
			if err := src.Run(ctx); err != nil {
				slog.Error("mqtt source stopped", "err", err)
			}
		}()
	}
	if len(cfg.Scrape.Targets) > 0 {
		poller := ingest.NewPoller(cfg.Scrape, manager, onResult, logger)
		go func() {
			if err := poller.Run(ctx); err != nil {
				slog.Error("scrape poller stopped", "err", err)
			}
		}()
	}

	// Combined HTTP server: REST API, WebSocket stream and metrics.
	httpMux := http.NewServeMux()
	apiHandler := api.New(manager, st, events)
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/healthz", apiHandler)
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTP.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("machinepulsed shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// buildChains creates every configured chain and applies its projections.
func buildChains(manager *chain.Manager, cfg *config.Config) error {
	for _, ch := range cfg.Chains {
		specs := make([]chain.StageSpec, len(ch.Stages))
		for i, stg := range ch.Stages {
			specs[i] = chain.StageSpec{
				Type:   stg.Type,
				Name:   stg.Name,
				Params: stage.NewParams(stg.Params),
			}
		}
		if err := manager.CreateChain(ch.Name, specs); err != nil {
			return err
		}
		for _, pr := range ch.Projections {
			if err := manager.SetTransform(ch.Name, pr.Stage, chain.Project(pr.Keys...)); err != nil {
				return err
			}
		}
	}
	return nil
}

// resultPayload flattens a result for the WebSocket stream.
func resultPayload(chainName string, res *record.Result) map[string]any {
	values := make(map[string]any, len(res.Values))
	for k, v := range res.Values {
		values[k] = v.Interface()
	}
	return map[string]any{
		"chain":  chainName,
		"device": res.DeviceID,
		"time":   res.Timestamp.UTC().Format(time.RFC3339),
		"values": values,
	}
}
