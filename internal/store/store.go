// Package store is the persistence layer: the duplicate oracle, the atomic
// batch recorder, and the merged history views.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kyralabs/proxymint/internal/models"
	"github.com/kyralabs/proxymint/internal/proxyfmt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// existingChunkSize caps the IN-list size of one existence query.
const existingChunkSize = 500

// recordInsertBatchSize caps rows per INSERT when committing a batch.
const recordInsertBatchSize = 200

// ErrAccessDenied reports a batch fetch by a key that does not own it.
var ErrAccessDenied = errors.New("store: access denied")

// ErrNotFound reports a missing batch.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateString reports a unique-index violation on proxy_string. The
// service layer treats it as a late collision and re-draws.
var ErrDuplicateString = errors.New("store: duplicate proxy string")

// Store implements the oracle and recorder contracts over gorm.
type Store struct {
	db *gorm.DB
}

// New constructs a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindExisting returns the subset of candidates already present in the
// store. Large candidate sets are chunked; the result is exact at call
// time but reserves nothing.
func (s *Store) FindExisting(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(candidates); start += existingChunkSize {
		end := start + existingChunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		var rows []string
		if err := s.db.WithContext(ctx).Model(&models.ProxyRecord{}).
			Where("proxy_string IN ?", candidates[start:end]).
			Pluck("proxy_string", &rows).Error; err != nil {
			return nil, fmt.Errorf("store: find existing: %w", err)
		}
		for _, row := range rows {
			existing[row] = struct{}{}
		}
	}
	return existing, nil
}

// CommitBatch persists one batch row and all its records in a single
// transaction. Either everything lands or nothing does, so the batch total
// always agrees with the persisted row count.
func (s *Store) CommitBatch(ctx context.Context, apiKeyID uint64, records []proxyfmt.Record) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("store: commit batch: empty record set")
	}

	batchID := uuid.NewString()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch := models.Batch{
			ID:             batchID,
			APIKeyID:       apiKeyID,
			TotalGenerated: len(records),
		}
		if errCreate := tx.Create(&batch).Error; errCreate != nil {
			return errCreate
		}

		rows := make([]models.ProxyRecord, 0, len(records))
		for _, rec := range records {
			rows = append(rows, models.ProxyRecord{
				BatchID:     batchID,
				APIKeyID:    apiKeyID,
				ProxyString: rec.ProxyString,
				Host:        rec.Host,
				Port:        rec.Port,
				UserID:      rec.UserID,
				CountryCode: rec.CountryCode,
				SessionID:   rec.SessionID,
			})
		}
		return tx.CreateInBatches(&rows, recordInsertBatchSize).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %v", ErrDuplicateString, err)
		}
		return "", fmt.Errorf("store: commit batch: %w", err)
	}
	return batchID, nil
}

// FetchBatch returns the records of a batch in creation order. Only the
// owning key may read a batch.
func (s *Store) FetchBatch(ctx context.Context, batchID string, apiKeyID uint64) ([]models.ProxyRecord, error) {
	var batch models.Batch
	err := s.db.WithContext(ctx).Where("id = ?", batchID).First(&batch).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
	default:
		return nil, fmt.Errorf("store: fetch batch: %w", err)
	}
	if batch.APIKeyID != apiKeyID {
		return nil, fmt.Errorf("%w: batch %s", ErrAccessDenied, batchID)
	}

	var rows []models.ProxyRecord
	if errFind := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: fetch batch records: %w", errFind)
	}
	return rows, nil
}

// HistoryEntry is one row of the merged history view. BatchID is set only
// for generate entries.
type HistoryEntry struct {
	BatchID        string         `json:"batch_id,omitempty"`
	ActionType     string         `json:"action_type"`
	TotalGenerated int            `json:"total_generated"`
	Detail         datatypes.JSON `json:"detail,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`

	// sortKey breaks timestamp ties deterministically across both sources:
	// the batch id for generate entries, the zero-padded event id otherwise.
	sortKey string
}

// FetchHistory merges the key's batches (as synthetic generate events) with
// its logged copy/download events, newest first.
func (s *Store) FetchHistory(ctx context.Context, apiKeyID uint64, limit, offset int) ([]HistoryEntry, error) {
	if limit < 1 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	// Each source is over-fetched so the merged window is complete.
	fetch := limit + offset

	var batches []models.Batch
	if err := s.db.WithContext(ctx).
		Where("api_key_id = ?", apiKeyID).
		Order("created_at DESC, id DESC").
		Limit(fetch).
		Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("store: fetch history batches: %w", err)
	}

	var events []models.HistoryEvent
	if err := s.db.WithContext(ctx).
		Where("api_key_id = ?", apiKeyID).
		Order("created_at DESC, id DESC").
		Limit(fetch).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("store: fetch history events: %w", err)
	}

	merged := make([]HistoryEntry, 0, len(batches)+len(events))
	for _, b := range batches {
		merged = append(merged, HistoryEntry{
			BatchID:        b.ID,
			ActionType:     models.ActionGenerate,
			TotalGenerated: b.TotalGenerated,
			CreatedAt:      b.CreatedAt,
			sortKey:        b.ID,
		})
	}
	for _, e := range events {
		merged = append(merged, HistoryEntry{
			ActionType:     e.ActionType,
			TotalGenerated: e.TotalGenerated,
			Detail:         e.Detail,
			CreatedAt:      e.CreatedAt,
			sortKey:        fmt.Sprintf("%020d", e.ID),
		})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].sortKey > merged[j].sortKey
	})

	if offset >= len(merged) {
		return []HistoryEntry{}, nil
	}
	merged = merged[offset:]
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// LogAction appends a copy/download event for the key.
func (s *Store) LogAction(ctx context.Context, apiKeyID uint64, action string, total int, detail datatypes.JSON) error {
	if action != models.ActionCopy && action != models.ActionDownload {
		return fmt.Errorf("store: log action: unsupported action %q", action)
	}
	event := models.HistoryEvent{
		APIKeyID:       apiKeyID,
		ActionType:     action,
		TotalGenerated: total,
		Detail:         detail,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("store: log action: %w", err)
	}
	return nil
}

// Stats aggregates a key's history by action type.
type Stats struct {
	GenerateCount  int64 `json:"generate_count"`
	CopyCount      int64 `json:"copy_count"`
	DownloadCount  int64 `json:"download_count"`
	TotalGenerated int64 `json:"total_generated"`
}

// HistoryStats returns per-action counts and the cumulative generated total
// for the key.
func (s *Store) HistoryStats(ctx context.Context, apiKeyID uint64) (Stats, error) {
	var stats Stats
	if err := s.db.WithContext(ctx).Model(&models.Batch{}).
		Where("api_key_id = ?", apiKeyID).
		Count(&stats.GenerateCount).Error; err != nil {
		return Stats{}, fmt.Errorf("store: history stats: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Batch{}).
		Where("api_key_id = ?", apiKeyID).
		Select("COALESCE(SUM(total_generated), 0)").
		Scan(&stats.TotalGenerated).Error; err != nil {
		return Stats{}, fmt.Errorf("store: history stats: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.HistoryEvent{}).
		Where("api_key_id = ? AND action_type = ?", apiKeyID, models.ActionCopy).
		Count(&stats.CopyCount).Error; err != nil {
		return Stats{}, fmt.Errorf("store: history stats: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.HistoryEvent{}).
		Where("api_key_id = ? AND action_type = ?", apiKeyID, models.ActionDownload).
		Count(&stats.DownloadCount).Error; err != nil {
		return Stats{}, fmt.Errorf("store: history stats: %w", err)
	}
	return stats, nil
}

// isUniqueViolation reports whether err is a unique-index violation on
// either supported dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") && strings.Contains(msg, "proxy_string")
}
