package lesson

import (
	"context"

	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/driver"
)

type LessonRepository struct {
	Conn driver.ITransactionalDB `dep:""`
}

var _ domain.LessonRepository = &LessonRepository{}

func NewLessonRepository(Conn driver.ITransactionalDB) *LessonRepository {
	return &LessonRepository{
		Conn: Conn,
	}
}

func (repo *LessonRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT COUNT(*)
FROM lesson
WHERE course_id = $1
	`, courseID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func (repo *LessonRepository) ExistsInCourse(ctx context.Context, courseID, lessonID string) (bool, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT 1
FROM lesson
WHERE course_id = $1 AND id = $2
	`, courseID, lessonID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), nil
}
