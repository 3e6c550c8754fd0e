package progress

import (
	"context"
	"time"

	"github.com/phinguyen111/studytime/internal/domain"
	"go.elastic.co/apm"
)

// DefaultMaxStep ceiling applied to a single heartbeat delta. A stale or
// delayed heartbeat can never credit more than this, whatever the wall-clock
// gap was.
const DefaultMaxStep = 30 * time.Second

// ProgressUseCaseImpl ...
type ProgressUseCaseImpl struct {
	ProgressRepository domain.ProgressRepository
	LessonRepository   domain.LessonRepository
	MaxStep            time.Duration

	now func() time.Time
}

var _ domain.ProgressUseCase = &ProgressUseCaseImpl{}

// NewProgressUseCase ...
func NewProgressUseCase(
	ProgressRepository domain.ProgressRepository,
	LessonRepository domain.LessonRepository,
	MaxStep time.Duration,
) *ProgressUseCaseImpl {
	if MaxStep <= 0 {
		MaxStep = DefaultMaxStep
	}
	return &ProgressUseCaseImpl{
		ProgressRepository: ProgressRepository,
		LessonRepository:   LessonRepository,
		MaxStep:            MaxStep,
		now:                time.Now,
	}
}

// TrackHeartbeat credit study time for one heartbeat.
//
// The first heartbeat on an aggregate, or the first after a lesson switch,
// primes the clock and banks no time. Negative deltas are floored, oversized
// ones clamped to MaxStep. The pointer advance happens unconditionally.
func (pu *ProgressUseCaseImpl) TrackHeartbeat(ctx context.Context, user *domain.UserModel, courseID, lessonID string) (*domain.HeartbeatResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.TrackHeartbeat", "service")
	defer apmSpan.End()

	now := pu.now()
	claim, err := pu.ProgressRepository.ClaimHeartbeat(ctx, user.ID, courseID, lessonID, now)
	if err != nil {
		return nil, err
	}

	added := pu.creditableSeconds(claim, lessonID, now)
	if added > 0 {
		day := now.Format(domain.DayKeyLayout)
		total, err := pu.ProgressRepository.CreditSeconds(ctx, user.ID, courseID, lessonID, day, added)
		if err != nil {
			return nil, err
		}
		return &domain.HeartbeatResult{AddedSeconds: added, TotalLessonSeconds: total}, nil
	}

	total, err := pu.ProgressRepository.LessonTotal(ctx, user.ID, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	return &domain.HeartbeatResult{AddedSeconds: 0, TotalLessonSeconds: total}, nil
}

func (pu *ProgressUseCaseImpl) creditableSeconds(claim *domain.HeartbeatClaim, lessonID string, now time.Time) int64 {
	if !claim.Claimed {
		// lost the race against a concurrent heartbeat
		return 0
	}
	if claim.PrevHeartbeatAt == nil || claim.PrevLessonID != lessonID {
		// first heartbeat ever, or lesson changed since the last one
		return 0
	}
	delta := now.Sub(*claim.PrevHeartbeatAt)
	if delta < 0 {
		delta = 0
	}
	if delta > pu.MaxStep {
		delta = pu.MaxStep
	}
	return int64(delta / time.Second)
}

// GetCourseProgress assemble the caller's own progress view for a course
func (pu *ProgressUseCaseImpl) GetCourseProgress(ctx context.Context, user *domain.UserModel, courseID string) (*domain.CourseProgress, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetCourseProgress", "service")
	defer apmSpan.End()

	total, err := pu.LessonRepository.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	completed, err := pu.ProgressRepository.CompletedLessons(ctx, user.ID, courseID)
	if err != nil {
		return nil, err
	}
	agg, err := pu.ProgressRepository.GetAggregate(ctx, user.ID, courseID)
	if err != nil {
		return nil, err
	}

	result := &domain.CourseProgress{
		CourseID:         courseID,
		CompletedLessons: len(completed),
		TotalLessons:     total,
		CompletedIDs:     completed,
		PerLessonSeconds: map[string]int64{},
	}
	if agg != nil {
		result.PerLessonSeconds = agg.PerLessonSeconds
	}
	if total > 0 {
		result.Percent = float32(len(completed)) / float32(total) * 100
	}
	return result, nil
}

// CompleteLesson mark a lesson completed, idempotent. The lesson must belong
// to the course.
func (pu *ProgressUseCaseImpl) CompleteLesson(ctx context.Context, user *domain.UserModel, courseID, lessonID string) error {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.CompleteLesson", "service")
	defer apmSpan.End()

	ok, err := pu.LessonRepository.ExistsInCourse(ctx, courseID, lessonID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrLessonNotInCourse
	}
	return pu.ProgressRepository.CompleteLesson(ctx, user.ID, courseID, lessonID)
}
