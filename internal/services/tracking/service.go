package tracking

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/LogiTrack/internal/cache"
	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TimelineSource loads an order and its ledger from one consistent read.
type TimelineSource interface {
	Timeline(ctx context.Context, code string) (*models.Order, []*models.TrackingEvent, error)
}

// Snapshot is the public view of one order: its current state and the ledger, newest first.
type Snapshot struct {
	Order  *models.Order           `json:"order"`
	Events []*models.TrackingEvent `json:"events"`
}

// Service serves tracking snapshots through a generation-keyed cache.
// Invalidate moves the order to a new generation, so a snapshot loaded before
// the invalidation can only land under a key nobody reads any more.
type Service struct {
	src    TimelineSource
	cache  cache.BytesCache
	ttl    time.Duration
	log    *slog.Logger
	newGen func() string
}

// New builds the lookup service. A nil cache or a zero ttl disables caching.
func New(src TimelineSource, c cache.BytesCache, ttl time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{src: src, cache: c, ttl: ttl, log: log, newGen: uuid.NewString}
}

func (s *Service) cacheEnabled() bool {
	return s != nil && s.cache != nil && s.ttl > 0
}

func (s *Service) Track(ctx context.Context, code string) (*Snapshot, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, models.ErrNotFound
	}

	// Кэш "лучшее усилие": ошибка Redis или битый JSON означают промах, а не отказ.
	gen, cached := "", false
	if s.cacheEnabled() {
		gen, cached = s.generation(ctx, code)
	}
	if cached {
		b, ok, err := s.cache.Get(ctx, cache.TrackKey(code, gen))
		if err != nil {
			s.log.Warn("track cache get failed", "tracking_code", code, "error", err.Error())
		}
		if err == nil && ok {
			var snap Snapshot
			if json.Unmarshal(b, &snap) == nil && snap.Order != nil {
				return &snap, nil
			}
		}
	}

	o, evs, err := s.src.Timeline(ctx, code)
	if err != nil {
		err = models.StorageError("load order timeline", err)
		if !errors.Is(err, models.ErrNotFound) {
			s.log.Error("load order timeline", "tracking_code", code, "error", err.Error())
		}
		return nil, err
	}

	snap := &Snapshot{Order: o, Events: evs}
	if cached {
		if b, err := json.Marshal(snap); err == nil {
			if err := s.cache.Set(ctx, cache.TrackKey(code, gen), b, s.ttl); err != nil {
				s.log.Warn("track cache set failed", "tracking_code", code, "error", err.Error())
			}
		}
	}
	return snap, nil
}

// Invalidate starts a new snapshot generation for code and drops the current one.
func (s *Service) Invalidate(ctx context.Context, code string) {
	if !s.cacheEnabled() || code == "" {
		return
	}
	old, ok := s.generation(ctx, code)

	// ключ поколения живёт дольше любого снимка, иначе после его истечения
	// можно снова прочитать снимок старого поколения
	err := s.cache.Set(ctx, cache.GenerationKey(code), []byte(s.newGen()), 2*s.ttl)
	if err != nil {
		s.log.Warn("track cache generation bump failed", "tracking_code", code, "error", err.Error())
	}
	if ok {
		if err := s.cache.Delete(ctx, cache.TrackKey(code, old)); err != nil {
			s.log.Warn("track cache invalidate failed", "tracking_code", code, "error", err.Error())
		}
	}
}

// generation reports the current generation of code; ok is false when the cache
// cannot tell, in which case it must not be read or filled.
func (s *Service) generation(ctx context.Context, code string) (string, bool) {
	b, _, err := s.cache.Get(ctx, cache.GenerationKey(code))
	if err != nil {
		s.log.Warn("track cache generation get failed", "tracking_code", code, "error", err.Error())
		return "", false
	}
	return string(b), true
}
