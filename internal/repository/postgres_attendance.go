package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartfarm-backend/internal/domain"

	"github.com/lib/pq"
)

// PostgresAttendanceRepository 考勤 Repository 实现
type PostgresAttendanceRepository struct {
	db *sql.DB
}

// NewPostgresAttendanceRepository 创建考勤 Repository
func NewPostgresAttendanceRepository(db *sql.DB) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{db: db}
}

var _ AttendanceRepository = (*PostgresAttendanceRepository)(nil)

const attendanceColumns = `
	attendance_id::text,
	user_id::text,
	farm_id::text,
	check_in_time,
	check_out_time,
	check_in_location,
	check_out_location,
	notes,
	total_hours,
	status,
	created_at,
	updated_at
`

func scanAttendance(row rowScanner) (*domain.Attendance, error) {
	var rec domain.Attendance
	err := row.Scan(
		&rec.AttendanceID,
		&rec.UserID,
		&rec.FarmID,
		&rec.CheckInTime,
		&rec.CheckOutTime,
		&rec.CheckInLocation,
		&rec.CheckOutLocation,
		&rec.Notes,
		&rec.TotalHours,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetAttendance 获取考勤记录
func (r *PostgresAttendanceRepository) GetAttendance(ctx context.Context, attendanceID string) (*domain.Attendance, error) {
	if attendanceID == "" {
		return nil, domain.ErrNotFound
	}
	rec, err := scanAttendance(r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records WHERE attendance_id = $1`,
		attendanceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// GetOpenByUser 当前未签退的记录
func (r *PostgresAttendanceRepository) GetOpenByUser(ctx context.Context, userID string) (*domain.Attendance, error) {
	rec, err := scanAttendance(r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records
		 WHERE user_id = $1 AND check_out_time IS NULL
		 ORDER BY check_in_time DESC LIMIT 1`,
		userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// GetTodayByUser 某用户当天的记录
func (r *PostgresAttendanceRepository) GetTodayByUser(ctx context.Context, userID string, day time.Time) (*domain.Attendance, error) {
	rec, err := scanAttendance(r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records
		 WHERE user_id = $1 AND check_in_time::date = $2::date
		 ORDER BY check_in_time DESC LIMIT 1`,
		userID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// ListAttendance 按过滤器列出考勤
func (r *PostgresAttendanceRepository) ListAttendance(ctx context.Context, filters AttendanceFilters) ([]*domain.Attendance, error) {
	where := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filters.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, filters.UserID)
		argIdx++
	}
	if len(filters.FarmIDs) > 0 {
		where = append(where, fmt.Sprintf("farm_id = ANY($%d::uuid[])", argIdx))
		args = append(args, pq.Array(filters.FarmIDs))
		argIdx++
	}
	if filters.From != nil {
		where = append(where, fmt.Sprintf("check_in_time >= $%d", argIdx))
		args = append(args, *filters.From)
		argIdx++
	}
	if filters.To != nil {
		where = append(where, fmt.Sprintf("check_in_time < $%d", argIdx))
		args = append(args, *filters.To)
		argIdx++
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY check_in_time DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*domain.Attendance{}
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CreateAttendance 写入签到记录
func (r *PostgresAttendanceRepository) CreateAttendance(ctx context.Context, rec *domain.Attendance) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("attendance record is required")
	}
	if rec.UserID == "" || rec.FarmID == "" {
		return "", fmt.Errorf("user_id and farm_id are required")
	}

	var attendanceID string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (
			user_id, farm_id, check_in_time, check_in_location, notes, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING attendance_id::text
	`,
		rec.UserID,
		rec.FarmID,
		rec.CheckInTime,
		toAnyString(rec.CheckInLocation),
		toAnyString(rec.Notes),
		rec.Status,
	).Scan(&attendanceID)
	if err != nil {
		return "", fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return attendanceID, nil
}

// CheckOut 回写签退信息
func (r *PostgresAttendanceRepository) CheckOut(ctx context.Context, attendanceID string, rec *domain.Attendance) error {
	if attendanceID == "" {
		return fmt.Errorf("attendance_id is required")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET check_out_time = $2,
		    check_out_location = $3,
		    total_hours = $4,
		    status = $5,
		    updated_at = NOW()
		WHERE attendance_id = $1
	`,
		attendanceID,
		toAnyTime(rec.CheckOutTime),
		toAnyString(rec.CheckOutLocation),
		toAnyFloat(rec.TotalHours),
		rec.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to check out: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountPresentDays 区间内出勤天数
func (r *PostgresAttendanceRepository) CountPresentDays(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT check_in_time::date) FROM attendance_records
		 WHERE user_id = $1 AND check_in_time >= $2 AND check_in_time < $3`,
		userID, from, to,
	).Scan(&count)
	return count, err
}
