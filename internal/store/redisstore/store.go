// Package redisstore holds the Redis-backed report cache and turn lock.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/relations"
)

const (
	reportVersionKey = "kinfolk:reports:version"
	reportKeyFmt     = "kinfolk:reports:v%d:%s"
	turnKeyFmt       = "kinfolk:turn:%s"

	defaultReportTTL = 10 * time.Minute
	defaultTurnTTL   = 5 * time.Minute
)

// unlock only deletes the key while it still carries our token, so an
// expired lock taken over by another process is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Store struct {
	rdb       redis.UniversalClient
	reportTTL time.Duration
	turnTTL   time.Duration
	log       zerolog.Logger
}

type Option func(*Store)

func WithReportTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.reportTTL = d
		}
	}
}

func WithTurnTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.turnTTL = d
		}
	}
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func New(rdb redis.UniversalClient, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		rdb:       rdb,
		reportTTL: defaultReportTTL,
		turnTTL:   defaultTurnTTL,
		log:       log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) reportKey(ctx context.Context, homeID string) (string, error) {
	v, err := s.rdb.Get(ctx, reportVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis get %s: %w", reportVersionKey, err)
	}
	if homeID == "" {
		homeID = "_"
	}
	return fmt.Sprintf(reportKeyFmt, v, homeID), nil
}

// GetReport returns ok=false on a miss.
func (s *Store) GetReport(ctx context.Context, homeID string) (*relations.Report, bool, error) {
	key, err := s.reportKey(ctx, homeID)
	if err != nil {
		return nil, false, err
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var r relations.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		// stale layout from an older build; treat as a miss
		s.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable report")
		_ = s.rdb.Del(ctx, key).Err()
		return nil, false, nil
	}
	return &r, true, nil
}

func (s *Store) SetReport(ctx context.Context, homeID string, r relations.Report) error {
	key, err := s.reportKey(ctx, homeID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.rdb.Set(ctx, key, data, s.reportTTL).Err()
}

// InvalidateReports bumps the version so every cached report key goes cold;
// old keys age out through their TTL.
func (s *Store) InvalidateReports(ctx context.Context) error {
	v, err := s.rdb.Incr(ctx, reportVersionKey).Result()
	if err != nil {
		return fmt.Errorf("redis incr %s: %w", reportVersionKey, err)
	}
	s.log.Debug().Str("version", strconv.FormatInt(v, 10)).Msg("report cache invalidated")
	return nil
}

// TryLock takes the per-session turn lock with SET NX. The lock expires after
// the turn TTL even if the holder dies.
func (s *Store) TryLock(ctx context.Context, sessionID string) (func(), bool, error) {
	key := fmt.Sprintf(turnKeyFmt, sessionID)
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, key, token, s.turnTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// the caller's ctx may already be cancelled when the turn ends
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(uctx, s.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("turn unlock failed")
		}
	}, true, nil
}
