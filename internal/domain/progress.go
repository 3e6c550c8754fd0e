package domain

import (
	"context"
	"time"
)

// DayKeyLayout calendar day key for per-day buckets, server local time
const DayKeyLayout = "2006-01-02"

// ProgressAggregate per (user, course) study time record
type ProgressAggregate struct {
	UserID           string           `json:"userId"`
	CourseID         string           `json:"courseId"`
	LastHeartbeatAt  *time.Time       `json:"-"`
	LastLessonID     string           `json:"-"`
	PerLessonSeconds map[string]int64 `json:"perLessonSeconds"`
	PerDaySeconds    map[string]int64 `json:"perDaySeconds"`
}

// HeartbeatClaim outcome of advancing the aggregate's heartbeat pointer.
//
// Claimed is false when a concurrent writer advanced the pointer first, in
// which case the caller must not credit any time.
type HeartbeatClaim struct {
	PrevHeartbeatAt *time.Time
	PrevLessonID    string
	Claimed         bool
}

type HeartbeatResult struct {
	AddedSeconds       int64 `json:"addedSeconds"`
	TotalLessonSeconds int64 `json:"totalLessonSeconds"`
}

type CourseProgress struct {
	CourseID         string           `json:"courseId"`
	CompletedLessons int              `json:"completedLessons"`
	TotalLessons     int              `json:"totalLessons"`
	Percent          float32          `json:"percent"`
	CompletedIDs     []string         `json:"completedLessonIds"`
	PerLessonSeconds map[string]int64 `json:"perLessonSeconds"`
}

type DayBucket struct {
	Day     string `json:"day"`
	Seconds int64  `json:"seconds"`
}

type UsageRow struct {
	UserID                string           `json:"userId"`
	Username              string           `json:"username"`
	Email                 string           `json:"email"`
	Role                  string           `json:"role"`
	CourseID              string           `json:"courseId"`
	TotalSecondsAllLessons int64           `json:"totalSecondsAllLessons"`
	ByLesson              map[string]int64 `json:"byLesson"`
	ByDay                 []*DayBucket     `json:"byDay"`
}

// UsageFilter admin report filters, zero values mean "not applied".
// From and To are day keys in DayKeyLayout, inclusive on both ends.
type UsageFilter struct {
	From     string
	To       string
	CourseID string
	UserID   string
}

type UsageReport struct {
	Report []*UsageRow `json:"report"`
}

type ProgressRepository interface {
	// ClaimHeartbeat advances the (lastHeartbeatAt, lastLessonID) pointer to
	// (now, lessonID), creating the aggregate if absent. The advance is
	// conditional on the previously observed lastHeartbeatAt so racing
	// writers cannot both credit the same interval.
	ClaimHeartbeat(ctx context.Context, userID, courseID, lessonID string, now time.Time) (*HeartbeatClaim, error)
	// CreditSeconds adds seconds to the per-lesson and per-day buckets with
	// database-level relative increments and returns the new lesson total.
	CreditSeconds(ctx context.Context, userID, courseID, lessonID, day string, seconds int64) (int64, error)
	LessonTotal(ctx context.Context, userID, courseID, lessonID string) (int64, error)
	GetAggregate(ctx context.Context, userID, courseID string) (*ProgressAggregate, error)
	ListAggregates(ctx context.Context, filter *UsageFilter) ([]*ProgressAggregate, error)
	CompleteLesson(ctx context.Context, userID, courseID, lessonID string) error
	CompletedLessons(ctx context.Context, userID, courseID string) ([]string, error)
}

type ProgressUseCase interface {
	TrackHeartbeat(ctx context.Context, user *UserModel, courseID, lessonID string) (*HeartbeatResult, error)
	GetCourseProgress(ctx context.Context, user *UserModel, courseID string) (*CourseProgress, error)
	CompleteLesson(ctx context.Context, user *UserModel, courseID, lessonID string) error
}

type UsageUseCase interface {
	GetUsageReport(ctx context.Context, filter *UsageFilter) (*UsageReport, error)
}
