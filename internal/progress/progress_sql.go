package progress

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/driver"
)

type ProgressRepository struct {
	Conn driver.ITransactionalDB `dep:""`
}

var _ domain.ProgressRepository = &ProgressRepository{}

func NewProgressRepository(Conn driver.ITransactionalDB) *ProgressRepository {
	return &ProgressRepository{
		Conn: Conn,
	}
}

// ClaimHeartbeat advance the heartbeat pointer inside a transaction.
//
// The pointer update is conditioned on the previously read lastHeartbeatAt,
// so of two racing heartbeats only one observes Claimed=true. The loser
// simply credits nothing; the next tick recovers.
func (repo *ProgressRepository) ClaimHeartbeat(ctx context.Context, userID, courseID, lessonID string, now time.Time) (*domain.HeartbeatClaim, error) {
	conn := repo.Conn
	tx, err := conn.BeginTx(ctx, &driver.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, err
	}

	claim, err := claimInTx(ctx, tx, userID, courseID, lessonID, now)
	if err != nil {
		tx.Rollback(ctx)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claim, nil
}

func claimInTx(ctx context.Context, tx driver.ITransactionalDB, userID, courseID, lessonID string, now time.Time) (*domain.HeartbeatClaim, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT last_heartbeat_at, last_lesson_id
FROM progress_aggregate
WHERE user_id = $1 AND course_id = $2
	`, userID, courseID)
	if err != nil {
		return nil, err
	}

	var (
		found      bool
		prevAt     time.Time
		prevLesson string
	)
	if rows.Next() {
		found = true
		if err := rows.Scan(&prevAt, &prevLesson); err != nil {
			rows.Close()
			return nil, err
		}
	}
	rows.Close()

	if !found {
		_, err := tx.ExecContext(ctx, `
INSERT INTO progress_aggregate(user_id, course_id, last_heartbeat_at, last_lesson_id)
VALUES($1, $2, $3, $4)
		`, userID, courseID, now, lessonID)
		if isDuplicateKey(err) {
			// another request created the aggregate in between
			return &domain.HeartbeatClaim{Claimed: false}, nil
		}
		if err != nil {
			return nil, err
		}
		return &domain.HeartbeatClaim{Claimed: true}, nil
	}

	res, err := tx.ExecContext(ctx, `
UPDATE progress_aggregate
SET last_heartbeat_at = $1, last_lesson_id = $2
WHERE user_id = $3 AND course_id = $4 AND last_heartbeat_at = $5
	`, now, lessonID, userID, courseID, prevAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return &domain.HeartbeatClaim{Claimed: false}, nil
	}
	return &domain.HeartbeatClaim{
		PrevHeartbeatAt: &prevAt,
		PrevLessonID:    prevLesson,
		Claimed:         true,
	}, nil
}

// CreditSeconds relative increments on both buckets, one transaction
func (repo *ProgressRepository) CreditSeconds(ctx context.Context, userID, courseID, lessonID, day string, seconds int64) (int64, error) {
	conn := repo.Conn
	tx, err := conn.BeginTx(ctx, &driver.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return 0, err
	}

	if err := incrementBucket(ctx, tx,
		`UPDATE progress_lesson_seconds SET seconds = seconds + $1 WHERE user_id = $2 AND course_id = $3 AND lesson_id = $4`,
		`INSERT INTO progress_lesson_seconds(seconds, user_id, course_id, lesson_id) VALUES($1, $2, $3, $4)`,
		seconds, userID, courseID, lessonID); err != nil {
		tx.Rollback(ctx)
		return 0, err
	}
	if err := incrementBucket(ctx, tx,
		`UPDATE progress_day_seconds SET seconds = seconds + $1 WHERE user_id = $2 AND course_id = $3 AND day = $4`,
		`INSERT INTO progress_day_seconds(seconds, user_id, course_id, day) VALUES($1, $2, $3, $4)`,
		seconds, userID, courseID, day); err != nil {
		tx.Rollback(ctx)
		return 0, err
	}

	total, err := lessonTotalQuery(ctx, tx, userID, courseID, lessonID)
	if err != nil {
		tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// incrementBucket update-else-insert, portable across mysql and postgres.
// A duplicate key on insert means a concurrent insert won, retry as update.
func incrementBucket(ctx context.Context, tx driver.ITransactionalDB, update, insert string, seconds int64, keys ...interface{}) error {
	args := append([]interface{}{seconds}, keys...)
	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx, insert, args...)
	if isDuplicateKey(err) {
		_, err = tx.ExecContext(ctx, update, args...)
	}
	return err
}

func (repo *ProgressRepository) LessonTotal(ctx context.Context, userID, courseID, lessonID string) (int64, error) {
	return lessonTotalQuery(ctx, repo.Conn, userID, courseID, lessonID)
}

func lessonTotalQuery(ctx context.Context, conn driver.ITransactionalDB, userID, courseID, lessonID string) (int64, error) {
	rows, err := conn.QueryContext(ctx, `
SELECT seconds
FROM progress_lesson_seconds
WHERE user_id = $1 AND course_id = $2 AND lesson_id = $3
	`, userID, courseID, lessonID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total int64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func (repo *ProgressRepository) GetAggregate(ctx context.Context, userID, courseID string) (*domain.ProgressAggregate, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT last_heartbeat_at, last_lesson_id
FROM progress_aggregate
WHERE user_id = $1 AND course_id = $2
	`, userID, courseID)
	if err != nil {
		return nil, err
	}

	agg := &domain.ProgressAggregate{
		UserID:           userID,
		CourseID:         courseID,
		PerLessonSeconds: map[string]int64{},
		PerDaySeconds:    map[string]int64{},
	}
	var found bool
	if rows.Next() {
		found = true
		var at time.Time
		if err := rows.Scan(&at, &agg.LastLessonID); err != nil {
			rows.Close()
			return nil, err
		}
		agg.LastHeartbeatAt = &at
	}
	rows.Close()
	if !found {
		return nil, nil
	}

	if err := repo.loadBuckets(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

func (repo *ProgressRepository) loadBuckets(ctx context.Context, agg *domain.ProgressAggregate) error {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT lesson_id, seconds
FROM progress_lesson_seconds
WHERE user_id = $1 AND course_id = $2
	`, agg.UserID, agg.CourseID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			lessonID string
			seconds  int64
		)
		if err := rows.Scan(&lessonID, &seconds); err != nil {
			rows.Close()
			return err
		}
		agg.PerLessonSeconds[lessonID] = seconds
	}
	rows.Close()

	rows, err = conn.QueryContext(ctx, `
SELECT day, seconds
FROM progress_day_seconds
WHERE user_id = $1 AND course_id = $2
	`, agg.UserID, agg.CourseID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			day     string
			seconds int64
		)
		if err := rows.Scan(&day, &seconds); err != nil {
			return err
		}
		agg.PerDaySeconds[day] = seconds
	}
	return nil
}

func (repo *ProgressRepository) ListAggregates(ctx context.Context, filter *domain.UsageFilter) ([]*domain.ProgressAggregate, error) {
	conn := repo.Conn
	query := `
SELECT user_id, course_id, last_heartbeat_at, last_lesson_id
FROM progress_aggregate
WHERE 1 = 1
	`
	var args []interface{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += ` AND user_id = $` + placeholder(len(args))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		query += ` AND course_id = $` + placeholder(len(args))
	}
	query += ` ORDER BY user_id, course_id`

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var result []*domain.ProgressAggregate
	for rows.Next() {
		agg := &domain.ProgressAggregate{
			PerLessonSeconds: map[string]int64{},
			PerDaySeconds:    map[string]int64{},
		}
		var at time.Time
		if err := rows.Scan(&agg.UserID, &agg.CourseID, &at, &agg.LastLessonID); err != nil {
			rows.Close()
			return nil, err
		}
		agg.LastHeartbeatAt = &at
		result = append(result, agg)
	}
	rows.Close()

	for _, agg := range result {
		if err := repo.loadBuckets(ctx, agg); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (repo *ProgressRepository) CompleteLesson(ctx context.Context, userID, courseID, lessonID string) error {
	conn := repo.Conn
	_, err := conn.ExecContext(ctx, `
INSERT INTO lesson_completion(user_id, course_id, lesson_id, completed_at)
VALUES($1, $2, $3, $4)
	`, userID, courseID, lessonID, time.Now())
	if isDuplicateKey(err) {
		// already completed
		return nil
	}
	return err
}

func (repo *ProgressRepository) CompletedLessons(ctx context.Context, userID, courseID string) ([]string, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT lesson_id
FROM lesson_completion
WHERE user_id = $1 AND course_id = $2
ORDER BY completed_at ASC
	`, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var lessonID string
		if err := rows.Scan(&lessonID); err != nil {
			return nil, err
		}
		result = append(result, lessonID)
	}
	return result, nil
}

func placeholder(n int) string {
	return strconv.Itoa(n)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
