// Package kvstore implements the remote key-value control/status client
// of spec.md §6: a thin wrapper over Redis exposing the HGET/HMSET/RPUSH/
// EXPIRE operations the writer needs (correlator-to-antenna map,
// integration times, current-file/is-taking-data status, raw-file
// manifest). Every call is bounded by the configured call timeout and is
// issued whether or not the last health check succeeded; callers handle
// the returned error.
package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures the remote key-value client's connection.
type Config struct {
	Addr        string
	DialTimeout time.Duration
	CallTimeout time.Duration
}

// Client wraps a Redis connection with a background health check and
// capped-backoff reconnect. Operations wait at most CallTimeout on a down
// store and then return an error; the health state recorded by HealthLoop
// is not consulted before a call.
type Client struct {
	client *redis.Client
	log    *zap.SugaredLogger

	callTimeout time.Duration
	healthy     atomic.Bool
}

// New dials addr and starts the background health-check loop. It returns
// immediately even if the initial connection fails; HealthLoop keeps
// retrying.
func New(cfg Config, log *zap.SugaredLogger) *Client {
	rc := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		DialTimeout: cfg.DialTimeout,
	})

	c := &Client{
		client:      rc,
		log:         log,
		callTimeout: cfg.CallTimeout,
	}
	return c
}

// IsHealthy pings the store now and reports whether the ping succeeded,
// matching the rate-limiter gateway's Ping-based health probe.
func (m *Client) IsHealthy(ctx context.Context) bool {
	return m.client.Ping(ctx).Err() == nil
}

// HealthLoop runs until ctx is canceled, periodically pinging the store
// and reconnecting with exponential backoff (capped at maxRetries) after a
// failure streak, so a restarted Redis is picked back up automatically.
func (m *Client) HealthLoop(ctx context.Context, interval time.Duration, maxRetries int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bo := backoff.ExponentialBackOff{
		InitialInterval:     backoff.DefaultInitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         time.Minute,
	}
	bo.Reset()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		healthy := m.IsHealthy(ctx)
		m.healthy.Store(healthy)

		if healthy {
			attempts = 0
			bo.Reset()
			continue
		}

		if attempts >= maxRetries {
			m.log.Warnw("kvstore: giving up reconnecting after repeated failures", "attempts", attempts)
			continue
		}
		attempts++

		select {
		case <-ctx.Done():
			return
		case <-time.After(bo.NextBackOff()):
		}
	}
}

func (m *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, m.callTimeout)
}

// CorrToHeraMap fetches the correlator-index-to-HERA-antenna mapping,
// stored as a Redis hash field per correlator index.
func (m *Client) CorrToHeraMap(ctx context.Context) ([]int32, error) {
	cctx, cancel := m.ctx(ctx)
	defer cancel()

	raw, err := m.client.HGetAll(cctx, "corr:map").Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore: HGETALL corr:map: %w", err)
	}

	out := make([]int32, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx >= len(out) {
			continue
		}
		ant, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[idx] = int32(ant)
	}
	return out, nil
}

// IntegrationTimes returns a single-element slice holding one integration
// time for all baselines: the corr:status integration_time field, or
// 2*accLen seconds when that field is absent or unparsable. It does not
// fetch per-baseline values.
func (m *Client) IntegrationTimes(ctx context.Context, accLen int) ([]float64, error) {
	cctx, cancel := m.ctx(ctx)
	defer cancel()

	v, err := m.client.HGet(cctx, "corr:status", "integration_time").Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("kvstore: HGET corr:status integration_time: %w", err)
	}

	integrationTime := float64(2 * accLen)
	if v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			integrationTime = parsed
		}
	}

	its := make([]float64, 1)
	its[0] = integrationTime
	return its, nil
}

// PublishCurrentFile records the name of the file currently being written
// (original_source's `HMSET corr:current_file filename ... time ...`).
func (m *Client) PublishCurrentFile(ctx context.Context, filename string) error {
	cctx, cancel := m.ctx(ctx)
	defer cancel()
	return m.client.HSet(cctx, "corr:current_file", "filename", filename, "time", time.Now().Unix()).Err()
}

// PublishIsTakingData sets the is-taking-data flag with a 60s TTL, so a
// crashed pipeline is observed as "not taking data" once the key expires.
func (m *Client) PublishIsTakingData(ctx context.Context, taking bool) error {
	cctx, cancel := m.ctx(ctx)
	defer cancel()

	if err := m.client.HSet(cctx, "corr:is_taking_data", "state", taking, "time", time.Now().Unix()).Err(); err != nil {
		return err
	}
	return m.client.Expire(cctx, "corr:is_taking_data", 60*time.Second).Err()
}

// PublishFinishedFile appends a completed raw file's path to the manifest
// list and notifies the downstream RTP consumer of new data, mirroring
// `RPUSH corr:files:raw ...` / `HMSET rtp:has_new_data state True`.
func (m *Client) PublishFinishedFile(ctx context.Context, path string) error {
	cctx, cancel := m.ctx(ctx)
	defer cancel()

	if err := m.client.RPush(cctx, "corr:files:raw", path).Err(); err != nil {
		return fmt.Errorf("kvstore: RPUSH corr:files:raw: %w", err)
	}
	return m.client.HSet(cctx, "rtp:has_new_data", "state", true).Err()
}

// Close releases the underlying connection pool.
func (m *Client) Close() error {
	return m.client.Close()
}
