package canonical

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/ports/outbound"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements the canonical repository on GORM with an in-memory index
// in front. Every read is served from memory; the database is the durable
// copy that survives restarts. Writes happen at import time only.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger

	mu   sync.RWMutex
	rows map[string]nutrition.Row
	keys []string
}

var _ outbound.CanonicalRepository = (*Store)(nil)

// NewStore creates the store and warms the index from the database.
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	s := &Store{
		db:     db,
		logger: logger.Named("canonical-store"),
		rows:   make(map[string]nutrition.Row),
	}
	if err := s.warm(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// warm loads every persisted row into the index.
func (s *Store) warm(ctx context.Context) error {
	var models []RowModel
	if err := s.db.WithContext(ctx).Find(&models).Error; err != nil {
		return fmt.Errorf("failed to load canonical rows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range models {
		key := models[i].Key
		s.rows[key] = ModelToRow(&models[i])
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)

	s.logger.Info("Canonical index warmed", zap.Int("rows", len(s.rows)))
	return nil
}

// FindByKey returns the row under the exact normalized key, or nil.
func (s *Store) FindByKey(ctx context.Context, key string) (*nutrition.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row, ok := s.rows[key]; ok {
		return &row, nil
	}
	return nil, nil
}

// FindNearest scans the index for the key with the smallest edit distance
// within maxDistance. Ties break toward the lexicographically smaller key so
// repeated lookups stay deterministic.
func (s *Store) FindNearest(ctx context.Context, key string, maxDistance int) (*nutrition.Row, string, error) {
	if maxDistance < 0 {
		return nil, "", nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if row, ok := s.rows[key]; ok {
		return &row, key, nil
	}

	best := maxDistance + 1
	bestKey := ""
	for _, candidate := range s.keys {
		if d := catalog.Levenshtein(key, candidate, maxDistance); d < best {
			best = d
			bestKey = candidate
		}
	}
	if bestKey == "" {
		return nil, "", nil
	}

	row := s.rows[bestKey]
	return &row, bestKey, nil
}

// Insert stores a row under key. The first writer wins: an existing row for
// the same key is left untouched and Insert reports false.
func (s *Store) Insert(ctx context.Context, key string, row nutrition.Row) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[key]; exists {
		return false, nil
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(RowToModel(key, row))
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert canonical row %q: %w", key, result.Error)
	}
	if result.RowsAffected == 0 {
		// Another process imported it first; index their copy.
		var model RowModel
		if err := s.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
			return false, fmt.Errorf("failed to read conflicting row %q: %w", key, err)
		}
		s.indexLocked(key, ModelToRow(&model))
		return false, nil
	}

	row.Source = nutrition.SourceCanonical
	s.indexLocked(key, row)
	return true, nil
}

func (s *Store) indexLocked(key string, row nutrition.Row) {
	s.rows[key] = row
	i := sort.SearchStrings(s.keys, key)
	s.keys = append(s.keys, "")
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = key
}

// Count returns the number of indexed rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}
