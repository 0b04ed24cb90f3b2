package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/outbound"
	"go.uber.org/zap"
)

// Status classifies the outcome of a cache read.
type Status string

const (
	// StatusFresh means the entry was served from cache inside the fresh window.
	StatusFresh Status = "fresh"
	// StatusStale means a stale entry was served and a background refresh kicked off.
	StatusStale Status = "stale"
	// StatusMiss means the value had to be fetched synchronously.
	StatusMiss Status = "miss"
	// StatusRefresh is reported when a background revalidation completes.
	StatusRefresh Status = "refresh"
)

// refreshSuffix marks a key as having an in-flight background refresh.
const refreshSuffix = ":refreshing"

// Envelope wraps a cached payload with its write timestamp so readers can
// judge freshness without a second round trip.
type Envelope struct {
	Payload    json.RawMessage `json:"payload"`
	StoredAtMS int64           `json:"stored_at_ms"`
}

// FillFunc fetches the value from upstream when the cache cannot serve it.
type FillFunc func(ctx context.Context) ([]byte, error)

// SWR serves cached payloads stale-while-revalidate style. Entries younger
// than the fresh window are returned as-is. Older entries are still served,
// but one background refresh is started, guarded by a SetNX marker so
// concurrent stale readers do not stampede the upstream. Entries are stored
// with the hard TTL, so anything past the hard window is simply gone and
// becomes a synchronous miss.
type SWR struct {
	kv       outbound.KVStore
	cfg      config.CacheConfig
	logger   *zap.Logger
	now      func() time.Time
	observer func(key string, status Status)
	wg       sync.WaitGroup
}

// NewSWR creates the stale-while-revalidate layer on top of kv.
func NewSWR(kv outbound.KVStore, cfg config.CacheConfig, logger *zap.Logger) *SWR {
	return &SWR{
		kv:     kv,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetObserver registers a callback invoked once per read outcome and once
// per completed background refresh. Used to feed metrics counters.
func (s *SWR) SetObserver(fn func(key string, status Status)) {
	s.observer = fn
}

// GetOrFill returns the cached payload for key, filling it from upstream
// when needed. The returned status tells the caller how the value was
// obtained. A fill error is only returned on a true miss; stale data
// shields the caller from upstream failures.
func (s *SWR) GetOrFill(ctx context.Context, key string, fill FillFunc) ([]byte, Status, error) {
	raw, err := s.kv.Get(ctx, key)
	if err == nil {
		var env Envelope
		if jsonErr := json.Unmarshal(raw, &env); jsonErr == nil && env.StoredAtMS > 0 {
			age := s.now().Sub(time.UnixMilli(env.StoredAtMS))
			if age <= s.cfg.FreshTTL {
				s.observe(key, StatusFresh)
				return env.Payload, StatusFresh, nil
			}
			s.scheduleRefresh(ctx, key, fill)
			s.observe(key, StatusStale)
			return env.Payload, StatusStale, nil
		}
		s.logger.Warn("Discarding corrupt cache envelope", zap.String("key", key))
	} else if !errors.Is(err, outbound.ErrKeyNotFound) {
		// KV trouble: skip the cache and go straight upstream.
		s.logger.Warn("Cache read failed, falling through to upstream",
			zap.String("key", key), zap.Error(err))
	}

	payload, err := fill(ctx)
	if err != nil {
		return nil, StatusMiss, err
	}
	s.store(ctx, key, payload)
	s.observe(key, StatusMiss)
	return payload, StatusMiss, nil
}

// Store writes a payload without going through a read, for callers that
// fetched upstream on their own terms.
func (s *SWR) Store(ctx context.Context, key string, payload []byte) {
	s.store(ctx, key, payload)
}

// Drain blocks until all in-flight background refreshes have finished.
// Called on shutdown so refreshed payloads are not lost mid-write.
func (s *SWR) Drain() {
	s.wg.Wait()
}

func (s *SWR) scheduleRefresh(ctx context.Context, key string, fill FillFunc) {
	marker := key + refreshSuffix
	won, err := s.kv.SetNX(ctx, marker, []byte("1"), s.cfg.RefreshMarkerTTL)
	if err != nil {
		s.logger.Debug("Refresh marker write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if !won {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The refresh outlives the request on purpose; the marker TTL is
		// its time budget.
		rctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshMarkerTTL)
		defer cancel()

		payload, err := fill(rctx)
		if err != nil {
			// Leave the marker to expire so a failing upstream is not hammered.
			s.logger.Warn("Background cache refresh failed",
				zap.String("key", key), zap.Error(err))
			return
		}

		s.store(rctx, key, payload)
		if delErr := s.kv.Delete(rctx, marker); delErr != nil {
			s.logger.Debug("Refresh marker delete failed", zap.String("key", key), zap.Error(delErr))
		}
		s.observe(key, StatusRefresh)
	}()
}

func (s *SWR) store(ctx context.Context, key string, payload []byte) {
	env := Envelope{Payload: payload, StoredAtMS: s.now().UnixMilli()}
	buf, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("Cache envelope marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, key, buf, s.cfg.HardTTL); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *SWR) observe(key string, status Status) {
	if s.observer != nil {
		s.observer(key, status)
	}
}
