package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// slotInsertChunk bounds the rows per multi-row insert so a statement stays well
// below the postgres parameter limit (12 columns per row).
const slotInsertChunk = 500

const timetableSlotColumns = `id, run_id, class_id, week, day_of_week, period, subject_id, teacher_id, kind, special_type, double_half, created_at`

// TimetableSlotRepository stores the replicated cells of timetable runs.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository builds repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch writes slots in multi-row chunks.
func (r *TimetableSlotRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		if slots[i].CreatedAt.IsZero() {
			slots[i].CreatedAt = now
		}
	}

	const query = `
INSERT INTO timetable_slots (id, run_id, class_id, week, day_of_week, period, subject_id, teacher_id, kind, special_type, double_half, created_at)
VALUES (:id, :run_id, :class_id, :week, :day_of_week, :period, :subject_id, :teacher_id, :kind, :special_type, :double_half, :created_at)`

	for start := 0; start < len(slots); start += slotInsertChunk {
		end := start + slotInsertChunk
		if end > len(slots) {
			end = len(slots)
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slots[start:end]); err != nil {
			return fmt.Errorf("insert timetable slots: %w", err)
		}
	}
	return nil
}

// ListByRun returns slots of a run ordered by class, week, day and period.
func (r *TimetableSlotRepository) ListByRun(ctx context.Context, runID string, filter models.TimetableSlotFilter) ([]models.TimetableSlot, error) {
	conditions := []string{"run_id = ?"}
	args := []interface{}{runID}
	if filter.ClassID != "" {
		conditions = append(conditions, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.Week > 0 {
		conditions = append(conditions, "week = ?")
		args = append(args, filter.Week)
	}
	query := r.db.Rebind("SELECT " + timetableSlotColumns + " FROM timetable_slots WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY class_id ASC, week ASC, day_of_week ASC, period ASC")

	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}

// ListCommitments returns the distinct week-1 teacher bookings of published runs in
// the term, excluding runs of the given grade. Empty filler cells only name a nominal
// owner and are not bookings.
func (r *TimetableSlotRepository) ListCommitments(ctx context.Context, termID, excludeGrade string) ([]models.TeacherCommitment, error) {
	const query = `
SELECT DISTINCT s.teacher_id, s.day_of_week, s.period
FROM timetable_slots s
JOIN timetable_runs r ON r.id = s.run_id
WHERE r.term_id = $1 AND r.grade <> $2 AND r.status = $3 AND s.week = 1 AND s.teacher_id IS NOT NULL AND s.kind <> 'empty'
ORDER BY s.teacher_id ASC, s.day_of_week ASC, s.period ASC`
	var commitments []models.TeacherCommitment
	if err := r.db.SelectContext(ctx, &commitments, query, termID, excludeGrade, models.TimetableStatusPublished); err != nil {
		return nil, fmt.Errorf("list teacher commitments: %w", err)
	}
	return commitments, nil
}

// DeleteByRun removes every slot of a run.
func (r *TimetableSlotRepository) DeleteByRun(ctx context.Context, exec sqlx.ExtContext, runID string) error {
	const query = `DELETE FROM timetable_slots WHERE run_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("delete timetable slots: %w", err)
	}
	return nil
}
