package internal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceTTL     = 90 * time.Second
	presenceRefresh = 60 * time.Second
)

// Presence keeps a short-lived Redis hash per connected peer so operators
// can see which instance holds a peer and how much it has drawn. A nil
// client turns every call into a no-op.
type Presence struct {
	rdb        *redis.Client
	instanceID string
}

func NewPresence(rdb *redis.Client, instanceID string) *Presence {
	return &Presence{rdb: rdb, instanceID: instanceID}
}

func presenceKey(id string) string {
	return fmt.Sprintf("scribble:peer:%v", id)
}

func (p *Presence) Join(ctx context.Context, id string, now time.Time) error {
	if p.rdb == nil {
		return nil
	}

	data := map[string]string{
		"inst": p.instanceID,
		"join": strconv.Itoa(int(now.Unix())),
		"recv": "0",
		"sent": "0",
	}

	key := presenceKey(id)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, data)
		pipe.Expire(ctx, key, presenceTTL)
		return nil
	})
	return err
}

func (p *Presence) Refresh(ctx context.Context, id string) error {
	if p.rdb == nil {
		return nil
	}

	return p.rdb.Expire(ctx, presenceKey(id), presenceRefresh).Err()
}

func (p *Presence) Received(ctx context.Context, id string) error {
	if p.rdb == nil {
		return nil
	}

	return p.rdb.HIncrBy(ctx, presenceKey(id), "recv", 1).Err()
}

func (p *Presence) Sent(ctx context.Context, id string) error {
	if p.rdb == nil {
		return nil
	}

	return p.rdb.HIncrBy(ctx, presenceKey(id), "sent", 1).Err()
}

func (p *Presence) Leave(ctx context.Context, id string) error {
	if p.rdb == nil {
		return nil
	}

	return p.rdb.Del(ctx, presenceKey(id)).Err()
}
