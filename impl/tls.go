package impl

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/caddyserver/certmagic"
	"github.com/libdns/porkbun"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
)

const keyPrefix = "scribble:tls:"

// storage keeps certmagic's certificates and locks in Redis so every hub
// instance behind the same domain shares one certificate.
type storage struct {
	rdb    *redis.Client
	locker *redislock.Client
	locks  sync.Map
}

var _ certmagic.Storage = (*storage)(nil)

func newStorage(rdb *redis.Client) *storage {
	return &storage{
		rdb:    rdb,
		locker: redislock.New(rdb),
	}
}

func (s *storage) Lock(ctx context.Context, name string) error {
	opts := &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(1 * time.Second),
	}

	lock, err := s.locker.Obtain(ctx, fmt.Sprintf("%vlock:%v", keyPrefix, name), 1*time.Minute, opts)
	if err != nil {
		return fmt.Errorf("lock %v: %w", name, err)
	}

	s.locks.Store(name, lock)
	return nil
}

func (s *storage) Unlock(ctx context.Context, name string) error {
	lock, ok := s.locks.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("no lock for %v", name)
	}

	return lock.(*redislock.Lock).Release(ctx)
}

func (s *storage) Store(ctx context.Context, key string, value []byte) error {
	hashmap := map[string]any{
		"modified": time.Now().Unix(),
		"data":     base64.RawURLEncoding.EncodeToString(value),
		"size":     len(value),
	}

	return s.rdb.HSet(ctx, keyPrefix+key, hashmap).Err()
}

func (s *storage) Load(ctx context.Context, key string) ([]byte, error) {
	res, err := s.rdb.HGet(ctx, keyPrefix+key, "data").Result()
	if errors.Is(err, redis.Nil) {
		return nil, fs.ErrNotExist
	} else if err != nil {
		return nil, err
	}

	return base64.RawURLEncoding.DecodeString(res)
}

func (s *storage) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}

func (s *storage) Exists(ctx context.Context, key string) bool {
	res, err := s.rdb.Exists(ctx, keyPrefix+key).Result()
	return err == nil && res > 0
}

func (s *storage) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	pattern := keyPrefix + prefix
	if recursive {
		pattern += "*"
	}

	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}

	for i, key := range keys {
		keys[i] = strings.TrimPrefix(key, keyPrefix)
	}

	return keys, nil
}

func (s *storage) Stat(ctx context.Context, key string) (certmagic.KeyInfo, error) {
	info := certmagic.KeyInfo{}

	res, err := s.rdb.HMGet(ctx, keyPrefix+key, "modified", "size").Result()
	if err != nil {
		return info, err
	}

	if len(res) != 2 || res[0] == nil || res[1] == nil {
		return info, fs.ErrNotExist
	}

	modified, err := strconv.ParseInt(fmt.Sprint(res[0]), 10, 64)
	if err != nil {
		return info, err
	}

	size, err := strconv.ParseInt(fmt.Sprint(res[1]), 10, 64)
	if err != nil {
		return info, err
	}

	info.Key = key
	info.Modified = time.Unix(modified, 0)
	info.Size = size
	info.IsTerminal = true

	return info, nil
}

type EnvTLS struct {
	PorkbunAPIKey    string `env:"PORKBUN_API_KEY,required"`
	PorkbunAPISecret string `env:"PORKBUN_API_SECRET,required"`
}

// TLSConfig obtains a certificate for domain through a Porkbun DNS-01
// challenge and keeps it in Redis.
func TLSConfig(ctx context.Context, domain string, rdb *redis.Client) (*tls.Config, error) {
	if rdb == nil {
		return nil, errors.New("tls requires redis for certificate storage")
	}

	env := EnvTLS{}
	if err := envconfig.Process(ctx, &env); err != nil {
		return nil, err
	}

	certmagic.DefaultACME.DNS01Solver = &certmagic.DNS01Solver{
		DNSProvider: &porkbun.Provider{
			APIKey:       env.PorkbunAPIKey,
			APISecretKey: env.PorkbunAPISecret,
		},
	}

	certmagic.Default.Storage = newStorage(rdb)

	return certmagic.TLS([]string{domain})
}
