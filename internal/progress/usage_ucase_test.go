package progress

import (
	"context"
	"testing"
	"time"

	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	users map[string]*domain.UserModel
}

func (f *fakeUserRepo) FindByCredential(ctx context.Context, post *domain.UserModel) (*domain.UserModel, error) {
	return nil, nil
}

func (f *fakeUserRepo) FindByIDs(ctx context.Context, ids []string) ([]*domain.UserModel, error) {
	var result []*domain.UserModel
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) UpdateUser(ctx context.Context, post *domain.UserModel) error { return nil }
func (f *fakeUserRepo) SaveUser(ctx context.Context, post *domain.UserModel) error   { return nil }

func seedUsage(t *testing.T) (*fakeProgressRepo, *fakeUserRepo) {
	t.Helper()
	repo := newFakeProgressRepo()
	uc, clock := newTestUseCase(repo, &fakeLessonRepo{})
	ctx := context.Background()

	alice := &domain.UserModel{ID: "u-1", Username: "alice", Email: "alice@example.com", Role: domain.RoleUser}
	bob := &domain.UserModel{ID: "u-2", Username: "bob", Email: "bob@example.com", Role: domain.RoleUser}

	// alice: 20s on html-01 plus 10s on html-02, all on 2024-06-10
	_, err := uc.TrackHeartbeat(ctx, alice, "html", "html-01")
	require.NoError(t, err)
	clock.advance(10 * time.Second)
	_, err = uc.TrackHeartbeat(ctx, alice, "html", "html-01")
	require.NoError(t, err)
	clock.advance(10 * time.Second)
	_, err = uc.TrackHeartbeat(ctx, alice, "html", "html-01")
	require.NoError(t, err)
	_, err = uc.TrackHeartbeat(ctx, alice, "html", "html-02")
	require.NoError(t, err)
	clock.advance(10 * time.Second)
	_, err = uc.TrackHeartbeat(ctx, alice, "html", "html-02")
	require.NoError(t, err)

	// bob: 15s on css-01
	_, err = uc.TrackHeartbeat(ctx, bob, "css", "css-01")
	require.NoError(t, err)
	clock.advance(15 * time.Second)
	_, err = uc.TrackHeartbeat(ctx, bob, "css", "css-01")
	require.NoError(t, err)

	users := &fakeUserRepo{users: map[string]*domain.UserModel{
		"u-1": alice,
		"u-2": bob,
	}}
	return repo, users
}

func findRow(report *domain.UsageReport, userID, courseID string) *domain.UsageRow {
	for _, row := range report.Report {
		if row.UserID == userID && row.CourseID == courseID {
			return row
		}
	}
	return nil
}

func TestGetUsageReport(t *testing.T) {
	repo, users := seedUsage(t)
	uc := NewUsageUseCase(repo, users)

	report, err := uc.GetUsageReport(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Report, 2)

	row := findRow(report, "u-1", "html")
	require.NotNil(t, row)
	assert.EqualValues(t, 30, row.TotalSecondsAllLessons)
	assert.EqualValues(t, 20, row.ByLesson["html-01"])
	assert.EqualValues(t, 10, row.ByLesson["html-02"])
	assert.Equal(t, "alice", row.Username)
	assert.Equal(t, "alice@example.com", row.Email)
	assert.Equal(t, domain.RoleUser, row.Role)
	require.Len(t, row.ByDay, 1)
	assert.Equal(t, "2024-06-10", row.ByDay[0].Day)
	assert.EqualValues(t, 30, row.ByDay[0].Seconds)
}

func TestGetUsageReportDateFilterNarrowsDaysOnly(t *testing.T) {
	repo, users := seedUsage(t)
	uc := NewUsageUseCase(repo, users)

	// range that excludes every recorded day
	report, err := uc.GetUsageReport(context.Background(), &domain.UsageFilter{
		From: "2023-01-01",
		To:   "2023-12-31",
	})
	require.NoError(t, err)
	require.Len(t, report.Report, 2)
	for _, row := range report.Report {
		assert.Empty(t, row.ByDay)
		assert.NotZero(t, row.TotalSecondsAllLessons)
	}
}

func TestGetUsageReportCourseFilter(t *testing.T) {
	repo, users := seedUsage(t)
	uc := NewUsageUseCase(repo, users)

	report, err := uc.GetUsageReport(context.Background(), &domain.UsageFilter{CourseID: "css"})
	require.NoError(t, err)
	require.Len(t, report.Report, 1)
	assert.Equal(t, "u-2", report.Report[0].UserID)
	assert.EqualValues(t, 15, report.Report[0].TotalSecondsAllLessons)
}

func TestGetUsageReportUnknownUserYieldsEmptyReport(t *testing.T) {
	repo, users := seedUsage(t)
	uc := NewUsageUseCase(repo, users)

	report, err := uc.GetUsageReport(context.Background(), &domain.UsageFilter{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, report.Report)
}
