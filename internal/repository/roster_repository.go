package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// RosterRepository reads the curriculum, staff and classes a timetable run is built from.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ListCurriculum returns the weekly curriculum of a grade ordered by subject name.
func (r *RosterRepository) ListCurriculum(ctx context.Context, grade string) ([]models.CurriculumSubject, error) {
	const query = `SELECT cs.subject_id, s.code, s.name, cs.grade, cs.weekly_periods, cs.is_priority, cs.category
FROM curriculum_subjects cs
JOIN subjects s ON s.id = cs.subject_id
WHERE cs.grade = $1
ORDER BY s.name ASC, cs.subject_id ASC`
	var subjects []models.CurriculumSubject
	if err := r.db.SelectContext(ctx, &subjects, query, grade); err != nil {
		return nil, fmt.Errorf("list curriculum: %w", err)
	}
	return subjects, nil
}

// ListClasses returns the classes of a grade ordered by name.
func (r *RosterRepository) ListClasses(ctx context.Context, grade string) ([]models.RosterClass, error) {
	const query = `SELECT id, name, grade, homeroom_teacher_id FROM classes WHERE grade = $1 ORDER BY name ASC, id ASC`
	var classes []models.RosterClass
	if err := r.db.SelectContext(ctx, &classes, query, grade); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// ListQualifications returns teacher-subject links for the given subjects.
func (r *RosterRepository) ListQualifications(ctx context.Context, subjectIDs []string) ([]models.TeacherSubject, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT teacher_id, subject_id FROM teacher_subjects WHERE subject_id IN (?) ORDER BY teacher_id ASC, subject_id ASC`, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("build qualification query: %w", err)
	}
	var links []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &links, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list qualifications: %w", err)
	}
	return links, nil
}

// ListTeachers returns the active teachers among ids ordered by id.
func (r *RosterRepository) ListTeachers(ctx context.Context, ids []string) ([]models.RosterTeacher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, full_name FROM teachers WHERE active = TRUE AND id IN (?) ORDER BY id ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build teacher query: %w", err)
	}
	var teachers []models.RosterTeacher
	if err := r.db.SelectContext(ctx, &teachers, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}
