package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const timetableRunColumns = `id, term_id, grade, version, status, proposal_id, total_weeks, meta, created_by, published_at, created_at, updated_at`

// TimetableRunFilter narrows run listings.
type TimetableRunFilter struct {
	TermID   string
	Grade    string
	Status   models.TimetableStatus
	Page     int
	PageSize int
}

// TimetableRunRepository persists versioned timetable runs.
type TimetableRunRepository struct {
	db *sqlx.DB
}

// NewTimetableRunRepository constructs the repository.
func NewTimetableRunRepository(db *sqlx.DB) *TimetableRunRepository {
	return &TimetableRunRepository{db: db}
}

func (r *TimetableRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a run assigning the next version for the term-grade pair.
func (r *TimetableRunRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if run == nil {
		return fmt.Errorf("timetable run payload is nil")
	}
	if run.TermID == "" || run.Grade == "" {
		return fmt.Errorf("term_id and grade are required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.TimetableStatusDraft
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_runs WHERE term_id = $1 AND grade = $2`
	if err := sqlx.GetContext(ctx, target, &run.Version, nextVersionQuery, run.TermID, run.Grade); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetable_runs (id, term_id, grade, version, status, proposal_id, total_weeks, meta, created_by, published_at, created_at, updated_at)
VALUES (:id, :term_id, :grade, :version, :status, :proposal_id, :total_weeks, :meta, :created_by, :published_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}
	return nil
}

// List returns runs matching the filter, newest version first, with the total count.
func (r *TimetableRunRepository) List(ctx context.Context, filter TimetableRunFilter) ([]models.TimetableRun, int, error) {
	conditions := []string{"term_id = ?"}
	args := []interface{}{filter.TermID}
	if filter.Grade != "" {
		conditions = append(conditions, "grade = ?")
		args = append(args, filter.Grade)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM timetable_runs" + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable runs: %w", err)
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	listQuery := r.db.Rebind("SELECT " + timetableRunColumns + " FROM timetable_runs" + where +
		" ORDER BY grade ASC, version DESC LIMIT ? OFFSET ?")
	listArgs := append(append([]interface{}{}, args...), size, (page-1)*size)

	var runs []models.TimetableRun
	if err := r.db.SelectContext(ctx, &runs, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list timetable runs: %w", err)
	}
	return runs, total, nil
}

// FindByID loads a run by its identifier.
func (r *TimetableRunRepository) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	query := `SELECT ` + timetableRunColumns + ` FROM timetable_runs WHERE id = $1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateStatus updates the status (and optionally meta) of a run. Publishing stamps published_at.
func (r *TimetableRunRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	var publishedAt *time.Time
	if status == models.TimetableStatusPublished {
		publishedAt = &now
	}

	var (
		query string
		args  []interface{}
	)
	if len(meta) > 0 {
		query = `UPDATE timetable_runs SET status = $1, meta = $2, published_at = COALESCE($3, published_at), updated_at = $4 WHERE id = $5`
		args = []interface{}{status, meta, publishedAt, now, id}
	} else {
		query = `UPDATE timetable_runs SET status = $1, published_at = COALESCE($2, published_at), updated_at = $3 WHERE id = $4`
		args = []interface{}{status, publishedAt, now, id}
	}
	result, err := target.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update timetable run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ArchivePublished archives every other published run of the term-grade pair and
// returns how many were archived.
func (r *TimetableRunRepository) ArchivePublished(ctx context.Context, exec sqlx.ExtContext, termID, grade, exceptID string) (int64, error) {
	const query = `UPDATE timetable_runs SET status = $1, updated_at = $2 WHERE term_id = $3 AND grade = $4 AND status = $5 AND id <> $6`
	result, err := r.exec(exec).ExecContext(ctx, query,
		models.TimetableStatusArchived, time.Now().UTC(), termID, grade, models.TimetableStatusPublished, exceptID)
	if err != nil {
		return 0, fmt.Errorf("archive published timetable runs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive rows affected: %w", err)
	}
	return affected, nil
}

// Delete removes a stored run.
func (r *TimetableRunRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM timetable_runs WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
