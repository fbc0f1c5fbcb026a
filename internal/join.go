package internal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	"nhooyr.io/websocket"
)

const (
	maxMessageSize = 1024
	pingPeriod     = 45 * time.Second
)

// JoinRoute upgrades the request to a WebSocket and runs the peer until
// either side goes away: a reader that relays every inbound message, a
// keepalive, and a writer that drains the peer's outbound queue.
func JoinRoute(
	hub *Hub,
	logger *slog.Logger,
	presence *Presence,
	cluster *Cluster,
	originPatterns []string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub.Full() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		id, err := hub.NewPeerID()
		if err != nil {
			logger.Error("failed to issue peer id", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		log := logger.With(slog.String("peer", id))

		opts := &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Warn("failed to accept", slog.String("error", err.Error()))
			return
		}

		peer, err := hub.Connect(id)
		if err != nil {
			log.Warn("rejected", slog.String("error", err.Error()))
			_ = conn.Close(websocket.StatusTryAgainLater, "hub is full")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn.SetReadLimit(maxMessageSize)

		if err := presence.Join(ctx, id, time.Now()); err != nil {
			log.Error("failed to record presence", err)
		}

		defer func() {
			hub.Disconnect(id)
			if err := presence.Leave(context.Background(), id); err != nil {
				log.Error("failed to cleanup", err)
			}
		}()

		go func() {
			defer cancel()
			for {
				_, b, err := conn.Read(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
						log.Debug("read failed", slog.String("error", err.Error()))
					}
					return
				}

				hub.Relay(id, b)

				if err := cluster.Publish(ctx, id, b); err != nil {
					log.Error("failed to publish stroke", err)
				}

				if err := presence.Received(ctx, id); err != nil {
					log.Error("failed to update received messages stats", err)
				}
			}
		}()

		go func() {
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := conn.Ping(ctx); err != nil {
						log.Debug("failed to ping", slog.String("error", err.Error()))
						_ = conn.Close(websocket.StatusGoingAway, "ping timeout")
						cancel()
						return
					}

					if err := presence.Refresh(ctx, id); err != nil {
						log.Error("failed to extend presence", err)
					}
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				log.Info("left")
				return
			case <-peer.Gone():
				log.Info("dropped")
				_ = conn.Close(websocket.StatusGoingAway, "dropped by hub")
				return
			case b := <-peer.Outbound():
				if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
					log.Debug("failed to write message", slog.String("error", err.Error()))
					return
				}

				if err := presence.Sent(ctx, id); err != nil {
					log.Error("failed to update sent messages stats", err)
				}
			}
		}
	}
}
