package progress

import (
	"context"
	"testing"
	"time"

	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aggState struct {
	lastAt        time.Time
	lastLesson    string
	lessonSeconds map[string]int64
	daySeconds    map[string]int64
	completed     []string
}

type fakeProgressRepo struct {
	aggs      map[string]*aggState
	loseClaim bool // simulate losing the pointer race
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{aggs: map[string]*aggState{}}
}

func aggKey(userID, courseID string) string {
	return userID + "|" + courseID
}

func (f *fakeProgressRepo) ClaimHeartbeat(ctx context.Context, userID, courseID, lessonID string, now time.Time) (*domain.HeartbeatClaim, error) {
	if f.loseClaim {
		return &domain.HeartbeatClaim{Claimed: false}, nil
	}
	key := aggKey(userID, courseID)
	state, ok := f.aggs[key]
	if !ok {
		f.aggs[key] = &aggState{
			lastAt:        now,
			lastLesson:    lessonID,
			lessonSeconds: map[string]int64{},
			daySeconds:    map[string]int64{},
		}
		return &domain.HeartbeatClaim{Claimed: true}, nil
	}
	prevAt := state.lastAt
	prevLesson := state.lastLesson
	state.lastAt = now
	state.lastLesson = lessonID
	return &domain.HeartbeatClaim{
		PrevHeartbeatAt: &prevAt,
		PrevLessonID:    prevLesson,
		Claimed:         true,
	}, nil
}

func (f *fakeProgressRepo) CreditSeconds(ctx context.Context, userID, courseID, lessonID, day string, seconds int64) (int64, error) {
	state := f.aggs[aggKey(userID, courseID)]
	state.lessonSeconds[lessonID] += seconds
	state.daySeconds[day] += seconds
	return state.lessonSeconds[lessonID], nil
}

func (f *fakeProgressRepo) LessonTotal(ctx context.Context, userID, courseID, lessonID string) (int64, error) {
	if state, ok := f.aggs[aggKey(userID, courseID)]; ok {
		return state.lessonSeconds[lessonID], nil
	}
	return 0, nil
}

func (f *fakeProgressRepo) GetAggregate(ctx context.Context, userID, courseID string) (*domain.ProgressAggregate, error) {
	state, ok := f.aggs[aggKey(userID, courseID)]
	if !ok {
		return nil, nil
	}
	at := state.lastAt
	return &domain.ProgressAggregate{
		UserID:           userID,
		CourseID:         courseID,
		LastHeartbeatAt:  &at,
		LastLessonID:     state.lastLesson,
		PerLessonSeconds: state.lessonSeconds,
		PerDaySeconds:    state.daySeconds,
	}, nil
}

func (f *fakeProgressRepo) ListAggregates(ctx context.Context, filter *domain.UsageFilter) ([]*domain.ProgressAggregate, error) {
	var result []*domain.ProgressAggregate
	for key, state := range f.aggs {
		var userID, courseID string
		for i := 0; i < len(key); i++ {
			if key[i] == '|' {
				userID, courseID = key[:i], key[i+1:]
				break
			}
		}
		if filter.UserID != "" && filter.UserID != userID {
			continue
		}
		if filter.CourseID != "" && filter.CourseID != courseID {
			continue
		}
		at := state.lastAt
		result = append(result, &domain.ProgressAggregate{
			UserID:           userID,
			CourseID:         courseID,
			LastHeartbeatAt:  &at,
			LastLessonID:     state.lastLesson,
			PerLessonSeconds: state.lessonSeconds,
			PerDaySeconds:    state.daySeconds,
		})
	}
	return result, nil
}

func (f *fakeProgressRepo) CompleteLesson(ctx context.Context, userID, courseID, lessonID string) error {
	key := aggKey(userID, courseID)
	state, ok := f.aggs[key]
	if !ok {
		state = &aggState{lessonSeconds: map[string]int64{}, daySeconds: map[string]int64{}}
		f.aggs[key] = state
	}
	for _, id := range state.completed {
		if id == lessonID {
			return nil
		}
	}
	state.completed = append(state.completed, lessonID)
	return nil
}

func (f *fakeProgressRepo) CompletedLessons(ctx context.Context, userID, courseID string) ([]string, error) {
	if state, ok := f.aggs[aggKey(userID, courseID)]; ok {
		return append([]string{}, state.completed...), nil
	}
	return []string{}, nil
}

type fakeLessonRepo struct {
	lessons map[string][]string // courseID -> lesson IDs
}

func (f *fakeLessonRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return len(f.lessons[courseID]), nil
}

func (f *fakeLessonRepo) ExistsInCourse(ctx context.Context, courseID, lessonID string) (bool, error) {
	for _, id := range f.lessons[courseID] {
		if id == lessonID {
			return true, nil
		}
	}
	return false, nil
}

type fixedClock struct {
	at time.Time
}

func (fc *fixedClock) now() time.Time {
	return fc.at
}

func (fc *fixedClock) advance(d time.Duration) {
	fc.at = fc.at.Add(d)
}

func newTestUseCase(repo *fakeProgressRepo, lessons *fakeLessonRepo) (*ProgressUseCaseImpl, *fixedClock) {
	clock := &fixedClock{at: time.Date(2024, 6, 10, 9, 0, 0, 0, time.Local)}
	uc := NewProgressUseCase(repo, lessons, 30*time.Second)
	uc.now = clock.now
	return uc, clock
}

var testUser = &domain.UserModel{ID: "u-1", Username: "alice"}

func TestTrackHeartbeatFirstBeatPrimesClock(t *testing.T) {
	uc, _ := newTestUseCase(newFakeProgressRepo(), &fakeLessonRepo{})

	result, err := uc.TrackHeartbeat(context.Background(), testUser, "html", "html-01")
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.AddedSeconds)
	assert.EqualValues(t, 0, result.TotalLessonSeconds)
}

func TestTrackHeartbeatAccumulates(t *testing.T) {
	uc, clock := newTestUseCase(newFakeProgressRepo(), &fakeLessonRepo{})
	ctx := context.Background()

	_, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	for i, want := range []int64{10, 20, 30} {
		clock.advance(10 * time.Second)
		result, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
		require.NoError(t, err, "beat %d", i)
		assert.EqualValues(t, 10, result.AddedSeconds)
		assert.EqualValues(t, want, result.TotalLessonSeconds)
	}
}

func TestTrackHeartbeatClampsOversizedDelta(t *testing.T) {
	uc, clock := newTestUseCase(newFakeProgressRepo(), &fakeLessonRepo{})
	ctx := context.Background()

	_, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	clock.advance(5 * time.Minute)
	result, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)
	assert.EqualValues(t, 30, result.AddedSeconds)
}

func TestTrackHeartbeatFloorsNegativeDelta(t *testing.T) {
	uc, clock := newTestUseCase(newFakeProgressRepo(), &fakeLessonRepo{})
	ctx := context.Background()

	_, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	clock.advance(-5 * time.Second)
	result, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.AddedSeconds)
}

func TestTrackHeartbeatZeroElapsedAddsNothing(t *testing.T) {
	uc, _ := newTestUseCase(newFakeProgressRepo(), &fakeLessonRepo{})
	ctx := context.Background()

	_, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	result, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.AddedSeconds)
}

func TestTrackHeartbeatLessonSwitchResetsClock(t *testing.T) {
	repo := newFakeProgressRepo()
	uc, clock := newTestUseCase(repo, &fakeLessonRepo{})
	ctx := context.Background()

	_, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	clock.advance(16 * time.Second)
	result, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)
	assert.EqualValues(t, 16, result.AddedSeconds)
	assert.EqualValues(t, 16, result.TotalLessonSeconds)

	// switching lessons primes the clock again, whatever the gap
	clock.advance(16 * time.Second)
	result, err = uc.TrackHeartbeat(ctx, testUser, "html", "html-02")
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.AddedSeconds)
	assert.EqualValues(t, 0, result.TotalLessonSeconds)
}

func TestTrackHeartbeatSplitsDayBuckets(t *testing.T) {
	repo := newFakeProgressRepo()
	uc, clock := newTestUseCase(repo, &fakeLessonRepo{})
	ctx := context.Background()

	_, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	clock.advance(10 * time.Second)
	_, err = uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	// the overnight gap is clamped to 30s and lands in the arrival day
	clock.advance(24 * time.Hour)
	_, err = uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)
	clock.advance(10 * time.Second)
	_, err = uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	state := repo.aggs[aggKey("u-1", "html")]
	assert.Len(t, state.daySeconds, 2)
	assert.EqualValues(t, 10, state.daySeconds["2024-06-10"])
	assert.EqualValues(t, 40, state.daySeconds["2024-06-11"])
}

func TestTrackHeartbeatLostRaceCreditsNothing(t *testing.T) {
	repo := newFakeProgressRepo()
	uc, clock := newTestUseCase(repo, &fakeLessonRepo{})
	ctx := context.Background()

	_, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)

	clock.advance(10 * time.Second)
	repo.loseClaim = true
	result, err := uc.TrackHeartbeat(ctx, testUser, "html", "html-01")
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.AddedSeconds)
}

func TestGetCourseProgress(t *testing.T) {
	repo := newFakeProgressRepo()
	lessons := &fakeLessonRepo{lessons: map[string][]string{
		"html": {"html-01", "html-02", "html-03", "html-04"},
	}}
	uc, _ := newTestUseCase(repo, lessons)
	ctx := context.Background()

	require.NoError(t, uc.CompleteLesson(ctx, testUser, "html", "html-01"))
	require.NoError(t, uc.CompleteLesson(ctx, testUser, "html", "html-02"))
	// completing twice is a no-op
	require.NoError(t, uc.CompleteLesson(ctx, testUser, "html", "html-02"))

	progress, err := uc.GetCourseProgress(ctx, testUser, "html")
	require.NoError(t, err)
	assert.Equal(t, 2, progress.CompletedLessons)
	assert.Equal(t, 4, progress.TotalLessons)
	assert.EqualValues(t, 50, progress.Percent)
	assert.Equal(t, []string{"html-01", "html-02"}, progress.CompletedIDs)
}

func TestCompleteLessonRejectsForeignLesson(t *testing.T) {
	lessons := &fakeLessonRepo{lessons: map[string][]string{
		"html": {"html-01"},
	}}
	uc, _ := newTestUseCase(newFakeProgressRepo(), lessons)

	err := uc.CompleteLesson(context.Background(), testUser, "html", "css-01")
	assert.Equal(t, domain.ErrLessonNotInCourse, err)
}
