package domain

import "context"

type LessonModel struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Index    int    `json:"index"`
	Title    string `json:"title"`
}

type LessonRepository interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
	ExistsInCourse(ctx context.Context, courseID, lessonID string) (bool, error)
}
