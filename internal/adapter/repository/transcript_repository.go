package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/conversationhub/transcription-engine/internal/domain/entities"
)

// TranscriptSinkRepository is the durable sink for finalized transcript
// entries; the engine writes each entry once and reads the rows back per
// meeting. The unique index on entry_id backs the exactly-once write
// guarantee: a second save of the same entry fails instead of duplicating
// the row.
type TranscriptSinkRepository struct {
	db *gorm.DB
}

// NewTranscriptSinkRepository creates a new sink repository
func NewTranscriptSinkRepository(db *gorm.DB) *TranscriptSinkRepository {
	return &TranscriptSinkRepository{db: db}
}

// Save inserts one finalized entry. Returns entities.ErrEntryAlreadySaved
// when the entry id was persisted before.
func (r *TranscriptSinkRepository) Save(ctx context.Context, record *entities.TranscriptRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return entities.ErrEntryAlreadySaved
		}
		return fmt.Errorf("failed to save transcript entry: %w", err)
	}
	return nil
}

// FindByMeetingID returns the persisted entries for a meeting ordered by
// spoken time.
func (r *TranscriptSinkRepository) FindByMeetingID(ctx context.Context, meetingID uuid.UUID) ([]entities.TranscriptRecord, error) {
	var records []entities.TranscriptRecord
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("spoken_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript entries: %w", err)
	}
	return records, nil
}

// CountByProvenance returns how many entries each storage category holds for
// a meeting. Used by the session stats endpoint.
func (r *TranscriptSinkRepository) CountByProvenance(ctx context.Context, meetingID uuid.UUID) (map[string]int64, error) {
	type row struct {
		Provenance string
		Total      int64
	}
	var rows []row

	err := r.db.WithContext(ctx).
		Model(&entities.TranscriptRecord{}).
		Select("provenance, count(*) as total").
		Where("meeting_id = ?", meetingID).
		Group("provenance").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count transcript entries: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Provenance] = r.Total
	}
	return counts, nil
}
