package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AlemayehuDabi/Addis-Parking/internal/domain"
	"github.com/AlemayehuDabi/Addis-Parking/internal/repository"

	"github.com/lib/pq"
	"gopkg.in/guregu/null.v4"
)

type pgReservationRepository struct {
	db *sql.DB
}

func NewPgReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &pgReservationRepository{db: db}
}

const reservationColumns = `id, user_id, spot_id, parking_lot_id, start_time, end_time, status, license_plate, total_fee, actual_entry_time, actual_exit_time, created_at, updated_at`

func (r *pgReservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	query := `INSERT INTO reservations (id, user_id, spot_id, parking_lot_id, start_time, end_time, status, license_plate, total_fee, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		res.ID, res.UserID, res.SpotID, res.ParkingLotID,
		res.StartTime, res.EndTime, res.Status, res.LicensePlate, res.TotalFee,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" {
				return nil, fmt.Errorf("%w: reservation id '%s'", repository.ErrDuplicateEntry, res.ID)
			}
		}
		return nil, fmt.Errorf("ReservationRepository.Create: %w", err)
	}
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}

func (r *pgReservationRepository) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservationRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindByID: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) FindOverlapping(ctx context.Context, spotID int, start, end time.Time) ([]domain.Reservation, error) {
	// Kiểm tra giao khoảng nửa mở chuẩn: existing.start < end AND existing.end > start.
	// Khoảng kề nhau (end == start) không tính là giao.
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE spot_id = $1 AND status IN ('pending', 'active')
	             AND start_time < $2 AND end_time > $3
	           ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, query, spotID, end, start)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.FindOverlapping: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows, "FindOverlapping")
}

func (r *pgReservationRepository) FindCurrentBySpot(ctx context.Context, spotID int, at time.Time, grace time.Duration) (*domain.Reservation, error) {
	// Cửa sổ đối chiếu phần cứng: [start_time - grace, end_time).
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE spot_id = $1 AND status IN ('pending', 'active')
	             AND start_time <= $2 AND end_time > $3
	           ORDER BY start_time
	           LIMIT 1`
	res, err := scanReservationRow(r.db.QueryRowContext(ctx, query, spotID, at.Add(grace), at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindCurrentBySpot: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) UpdateStatus(ctx context.Context, id string, status domain.ReservationStatus, entryTime, exitTime null.Time) error {
	query := `UPDATE reservations
	           SET status = $1,
	               actual_entry_time = COALESCE($2, actual_entry_time),
	               actual_exit_time = COALESCE($3, actual_exit_time),
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, status, entryTime, exitTime, id)
	if err != nil {
		return fmt.Errorf("ReservationRepository.UpdateStatus: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ReservationRepository.UpdateStatus (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgReservationRepository) Find(ctx context.Context, filter domain.ReservationFilterDTO) ([]domain.Reservation, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	offset := (filter.Page - 1) * filter.Limit

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	args := []any{}
	if filter.Status != nil && *filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, *filter.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.Find: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows, "Find")
}

func (r *pgReservationRepository) FindLive(ctx context.Context, at time.Time) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = 'active' AND start_time <= $1 AND end_time > $1
	           ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.FindLive: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows, "FindLive")
}

func (r *pgReservationRepository) ExpireOverduePending(ctx context.Context, at time.Time, grace time.Duration) (int64, error) {
	// pending mà không có xe vào trước start_time + grace thì hết hạn.
	query := `UPDATE reservations
	           SET status = 'expired', updated_at = CURRENT_TIMESTAMP
	           WHERE status = 'pending' AND start_time <= $1`
	result, err := r.db.ExecContext(ctx, query, at.Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("ReservationRepository.ExpireOverduePending: %w", err)
	}
	return result.RowsAffected()
}

func (r *pgReservationRepository) CompleteOverdueActive(ctx context.Context, at time.Time) (int64, error) {
	query := `UPDATE reservations
	           SET status = 'completed', updated_at = CURRENT_TIMESTAMP
	           WHERE status = 'active' AND end_time <= $1`
	result, err := r.db.ExecContext(ctx, query, at)
	if err != nil {
		return 0, fmt.Errorf("ReservationRepository.CompleteOverdueActive: %w", err)
	}
	return result.RowsAffected()
}

func collectReservations(rows *sql.Rows, op string) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	for rows.Next() {
		res, err := scanReservationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("ReservationRepository.%s (scanning row): %w", op, err)
		}
		reservations = append(reservations, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s (rows error): %w", op, err)
	}
	return reservations, nil
}

func scanReservationRow(row rowScanner) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	err := row.Scan(
		&res.ID, &res.UserID, &res.SpotID, &res.ParkingLotID,
		&res.StartTime, &res.EndTime, &res.Status, &res.LicensePlate,
		&res.TotalFee, &res.ActualEntryTime, &res.ActualExitTime,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.StartTime = res.StartTime.In(time.UTC)
	res.EndTime = res.EndTime.In(time.UTC)
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}
