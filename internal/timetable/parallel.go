package timetable

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// GenerateGrades schedules independent grades concurrently. Each grade gets its own
// RunContext; grades must not share teachers. Results keep the input order.
func (c *Coordinator) GenerateGrades(ctx context.Context, grades []GradeInput, concurrency int) ([]*GradeResult, error) {
	if err := ensureDisjointTeachers(grades); err != nil {
		return nil, err
	}
	results := make([]*GradeResult, len(grades))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i := range grades {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := c.Generate(grades[i])
			if err != nil {
				return fmt.Errorf("grade %s: %w", grades[i].Grade, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func ensureDisjointTeachers(grades []GradeInput) error {
	owner := make(map[string]string)
	for _, grade := range grades {
		for _, teacher := range grade.Teachers {
			if other, ok := owner[teacher.ID]; ok && other != grade.Grade {
				return fmt.Errorf("%w: teacher %s appears in grades %s and %s", ErrInvalidInput, teacher.ID, other, grade.Grade)
			}
			owner[teacher.ID] = grade.Grade
		}
	}
	return nil
}
