package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/sweeney/esl-callbacks/internal/callback"
	"github.com/sweeney/esl-callbacks/internal/calls"
	"github.com/sweeney/esl-callbacks/internal/config"
	"github.com/sweeney/esl-callbacks/internal/esl"
	"github.com/sweeney/esl-callbacks/internal/hangup"
	"github.com/sweeney/esl-callbacks/internal/logger"
	"github.com/sweeney/esl-callbacks/internal/metrics"
	"github.com/sweeney/esl-callbacks/internal/publisher"
	"github.com/sweeney/esl-callbacks/internal/router"
)

const reconnectDelay = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "esl-callbacks",
		Short:         "Deliver FreeSWITCH event socket events to HTTP callbacks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is normal outside development.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			log := logger.New(os.Stderr, cfg.LogLevel)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg, log); err != nil {
				log.Error("fatal", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "/etc/esl-callbacks/esl-callbacks.yaml", "Path to config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

// bridge wires the event router to the callback pipeline.
type bridge struct {
	registry *calls.Registry
	sender   *callback.Sender
	router   *router.Router
}

type bridgeDeps struct {
	transport callback.Transport
	logger    *slog.Logger
	collector *metrics.Collector
	auditor   *publisher.Auditor
}

func newBridge(cfg *config.Config, deps bridgeDeps) *bridge {
	registry := calls.New()

	senderOpts := []callback.Option{
		callback.WithLogger(deps.logger),
		callback.WithExtraChannelVars(cfg.Callbacks.ExtraChannelVars),
	}
	resolverOpts := []hangup.ResolverOption{hangup.WithLogger(deps.logger)}
	routerOpts := []router.Option{router.WithLogger(deps.logger)}
	if deps.collector != nil {
		senderOpts = append(senderOpts, callback.WithObserver(deps.collector))
		resolverOpts = append(resolverOpts, hangup.WithObserver(deps.collector))
		routerOpts = append(routerOpts, router.WithObserver(deps.collector))
	}
	if deps.auditor != nil {
		senderOpts = append(senderOpts, callback.WithObserver(deps.auditor))
	}

	sender := callback.NewSender(deps.transport, senderOpts...)
	resolver := hangup.NewResolver(hangup.Config{
		AppPrefix:        cfg.AppPrefix,
		DefaultHangupURL: cfg.Callbacks.DefaultHangupURL,
		DefaultAnswerURL: cfg.Callbacks.DefaultAnswerURL,
	}, registry, sender, resolverOpts...)

	r := router.New(routerOpts...)
	r.Handle(router.EventChannelState, registry)
	r.Handle(router.EventChannelHangupComplete, hangup.NewHandler(resolver, registry))

	return &bridge{registry: registry, sender: sender, router: r}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps := bridgeDeps{
		transport: callback.NewHTTPTransport(callback.HTTPOptions{Timeout: cfg.Callbacks.Timeout}),
		logger:    log,
		collector: metrics.NewCollector(reg),
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			log.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	if cfg.MQTT.Enabled {
		pub, err := publisher.NewMQTTPublisher(publisher.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			QoS:      1,
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer pub.Close()
		deps.auditor = publisher.NewAuditor(pub, cfg.MQTT.TopicPrefix, log)
	}

	b := newBridge(cfg, deps)
	run(ctx, cfg, b, log)

	log.Info("waiting for in-flight callbacks")
	b.sender.Wait()
	log.Info("shutdown complete")
	return nil
}

func run(ctx context.Context, cfg *config.Config, b *bridge, log *slog.Logger) {
	for {
		err := runSession(ctx, cfg, b, log)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("event socket session ended", "error", err, "retry_in", reconnectDelay)
		}
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func runSession(ctx context.Context, cfg *config.Config, b *bridge, log *slog.Logger) error {
	addr := cfg.ESL.Addr()
	log.Info("connecting to event socket", "addr", addr)

	client, err := esl.Dial(ctx, addr, cfg.ESL.Password)
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		<-ctx.Done()
		client.Close()
	}()

	if err := b.router.Subscribe(ctx, client); err != nil {
		return err
	}
	log.Info("event socket authenticated, processing events")

	for {
		evt, err := client.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return errors.New("event socket closed the connection")
			}
			return err
		}
		b.router.OnEvent(ctx, evt)
	}
}
