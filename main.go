package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/exp/slog"
	"manualpilot/scribble/discovery"
	"manualpilot/scribble/impl"
	"manualpilot/scribble/internal"
)

type Env struct {
	Port          int    `env:"PORT,default=8080"`
	InstanceID    string `env:"INSTANCE_ID"`
	ServiceDomain string `env:"SERVICE_DOMAIN"`
	RedisURL      string `env:"REDIS_URL"`
	MaxPeers      int    `env:"MAX_PEERS,default=10"`
	QueueSize     int    `env:"PEER_QUEUE_SIZE,default=256"`
	MDNSAdvertise bool   `env:"MDNS_ADVERTISE,default=false"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`
}

func doMain(ctx context.Context, env Env, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if env.InstanceID == "" {
		env.InstanceID = ksuid.New().String()
	}

	logger = logger.With(slog.String("instance", env.InstanceID))

	var rdb *redis.Client
	if env.RedisURL != "" {
		rOpts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			return err
		}

		rdb = redis.NewClient(rOpts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}

		//goland:noinspection GoUnhandledErrorResult
		defer rdb.Close()
	}

	var origins []string
	var tlsConfig *tls.Config
	if env.ServiceDomain != "" {
		origins = []string{env.ServiceDomain}

		var err error
		tlsConfig, err = impl.TLSConfig(ctx, env.ServiceDomain, rdb)
		if err != nil {
			return err
		}
	}

	cfg := internal.Config{
		InstanceID:     env.InstanceID,
		MaxPeers:       env.MaxPeers,
		QueueSize:      env.QueueSize,
		OriginPatterns: origins,
	}

	router, err := internal.Main(ctx, logger, cfg, rdb)
	if err != nil {
		return err
	}

	if env.MDNSAdvertise {
		mdnsServer, err := discovery.Advertise(env.InstanceID, env.Port)
		if err != nil {
			return err
		}

		//goland:noinspection GoUnhandledErrorResult
		defer mdnsServer.Shutdown()
	}

	server := &http.Server{
		Addr:      fmt.Sprintf(":%v", env.Port),
		Handler:   router,
		TLSConfig: tlsConfig,
	}

	ec := make(chan error, 1)
	go func() {
		logger.Info("starting...", slog.String("address", server.Addr), slog.Int("max-peers", env.MaxPeers))

		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			ec <- err
		}
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sc:
		logger.Warn("shutdown signal", slog.String("signal", sig.String()))
	case err := <-ec:
		return fmt.Errorf("http server: %w", err)
	}

	// hijacked websocket connections are not tracked by Shutdown; cancelling
	// ctx closes the hub, which drops every peer.
	cancel()

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()

	return server.Shutdown(sctx)
}

func level(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func main() {
	ctx := context.Background()

	dotenvErr := godotenv.Load()

	env := Env{}
	if err := envconfig.Process(ctx, &env); err != nil {
		fmt.Fprintln(os.Stderr, "invalid environment:", err)
		os.Exit(1)
	}

	handler := slog.HandlerOptions{AddSource: true, Level: level(env.LogLevel)}
	logger := slog.New(handler.NewTextHandler(os.Stdout))

	if dotenvErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	if err := doMain(ctx, env, logger); err != nil {
		logger.Error("failed to start", err)
		os.Exit(1)
	}
}
