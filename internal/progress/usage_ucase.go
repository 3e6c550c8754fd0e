package progress

import (
	"context"
	"sort"

	"github.com/phinguyen111/studytime/internal/domain"
	"go.elastic.co/apm"
)

// UsageUseCaseImpl ...
type UsageUseCaseImpl struct {
	ProgressRepository domain.ProgressRepository
	UserRepository     domain.UserRepository
}

var _ domain.UsageUseCase = &UsageUseCaseImpl{}

// NewUsageUseCase ...
func NewUsageUseCase(
	ProgressRepository domain.ProgressRepository,
	UserRepository domain.UserRepository,
) *UsageUseCaseImpl {
	return &UsageUseCaseImpl{
		ProgressRepository: ProgressRepository,
		UserRepository:     UserRepository,
	}
}

// GetUsageReport flat per-(user, course) usage rows for the admin view.
//
// The date range narrows the per-day breakdown only; lesson totals always
// cover the whole aggregate. An unknown userId filter yields an empty report.
func (uu *UsageUseCaseImpl) GetUsageReport(ctx context.Context, filter *domain.UsageFilter) (*domain.UsageReport, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UsageUseCaseImpl.GetUsageReport", "service")
	defer apmSpan.End()

	if filter == nil {
		filter = &domain.UsageFilter{}
	}
	aggregates, err := uu.ProgressRepository.ListAggregates(ctx, filter)
	if err != nil {
		return nil, err
	}
	users, err := uu.lookupUsers(ctx, aggregates)
	if err != nil {
		return nil, err
	}

	report := make([]*domain.UsageRow, 0, len(aggregates))
	for _, agg := range aggregates {
		row := &domain.UsageRow{
			UserID:   agg.UserID,
			CourseID: agg.CourseID,
			ByLesson: agg.PerLessonSeconds,
			ByDay:    filterDays(agg.PerDaySeconds, filter.From, filter.To),
		}
		for _, seconds := range agg.PerLessonSeconds {
			row.TotalSecondsAllLessons += seconds
		}
		if u, ok := users[agg.UserID]; ok {
			row.Username = u.Username
			row.Email = u.Email
			row.Role = u.Role
		}
		report = append(report, row)
	}
	return &domain.UsageReport{Report: report}, nil
}

func (uu *UsageUseCaseImpl) lookupUsers(ctx context.Context, aggregates []*domain.ProgressAggregate) (map[string]*domain.UserModel, error) {
	seen := map[string]bool{}
	var ids []string
	for _, agg := range aggregates {
		if !seen[agg.UserID] {
			seen[agg.UserID] = true
			ids = append(ids, agg.UserID)
		}
	}
	byID := map[string]*domain.UserModel{}
	if len(ids) == 0 {
		return byID, nil
	}
	users, err := uu.UserRepository.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// filterDays keep day buckets inside [from, to] inclusive, sorted by day.
// Day keys compare lexicographically in DayKeyLayout.
func filterDays(perDay map[string]int64, from, to string) []*domain.DayBucket {
	buckets := make([]*domain.DayBucket, 0, len(perDay))
	for day, seconds := range perDay {
		if from != "" && day < from {
			continue
		}
		if to != "" && day > to {
			continue
		}
		buckets = append(buckets, &domain.DayBucket{Day: day, Seconds: seconds})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Day < buckets[j].Day
	})
	return buckets
}
