package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
)

type Config struct {
	InstanceID     string
	MaxPeers       int
	QueueSize      int
	OriginPatterns []string
}

// Main wires the hub and returns its router. The hub lives until ctx is
// done. rdb may be nil, which disables presence and cluster relay.
func Main(
	ctx context.Context,
	logger *slog.Logger,
	cfg Config,
	rdb *redis.Client,
) (chi.Router, error) {
	if cfg.InstanceID == "" {
		return nil, errors.New("instance id is required")
	}

	hub := NewHub(logger, cfg.MaxPeers, cfg.QueueSize)
	presence := NewPresence(rdb, cfg.InstanceID)
	cluster := NewCluster(rdb, cfg.InstanceID)

	go cluster.Subscribe(ctx, logger, hub)
	go func() {
		<-ctx.Done()
		hub.Close()
	}()

	router := chi.NewRouter()
	router.Use(mid(cfg.InstanceID))
	router.Get("/health", health())
	router.Get("/stats", stats(hub, cfg.InstanceID))
	router.Get("/", JoinRoute(hub, logger, presence, cluster, cfg.OriginPatterns))

	return router, nil
}

func health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

type Stats struct {
	Instance string `json:"instance"`
	Peers    int    `json:"peers"`
}

func stats(hub *Hub, instanceID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(Stats{Instance: instanceID, Peers: hub.Len()})
	}
}

func mid(instanceID string) func(http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", "scribble")
			w.Header().Set("Instance-ID", instanceID)
			handler.ServeHTTP(w, r)
		})
	}
}
