package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AlemayehuDabi/Addis-Parking/internal/domain"
	"github.com/AlemayehuDabi/Addis-Parking/internal/repository"
)

type pgSpotRepository struct {
	db *sql.DB
}

func NewPgSpotRepository(db *sql.DB) repository.SpotRepository {
	return &pgSpotRepository{db: db}
}

const spotColumns = `id, sensor_id, spot_number, status, is_hardware_detected, last_heartbeat, created_at, updated_at`

func (r *pgSpotRepository) GetOrCreateBySensorID(ctx context.Context, sensorID int) (*domain.Spot, error) {
	// Upsert nguyên tử theo UNIQUE (sensor_id). DO UPDATE với giá trị cũ là cố ý:
	// nó làm RETURNING trả về bản ghi cả khi đã tồn tại, và spot_number chỉ được
	// gán ở nhánh INSERT nên không bao giờ đổi sau lần thấy đầu tiên.
	query := `INSERT INTO spots (sensor_id, spot_number, status, is_hardware_detected, created_at, updated_at)
	           VALUES ($1, 'S-' || $1::text, $2, FALSE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           ON CONFLICT (sensor_id) DO UPDATE SET sensor_id = EXCLUDED.sensor_id
	           RETURNING ` + spotColumns
	row := r.db.QueryRowContext(ctx, query, sensorID, domain.SpotAvailable)
	spot, err := scanSpotRow(row)
	if err != nil {
		return nil, fmt.Errorf("SpotRepository.GetOrCreateBySensorID: %w", err)
	}
	return spot, nil
}

func (r *pgSpotRepository) FindByID(ctx context.Context, id int) (*domain.Spot, error) {
	query := `SELECT ` + spotColumns + ` FROM spots WHERE id = $1`
	spot, err := scanSpotRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.FindByID: %w", err)
	}
	return spot, nil
}

func (r *pgSpotRepository) FindBySensorID(ctx context.Context, sensorID int) (*domain.Spot, error) {
	query := `SELECT ` + spotColumns + ` FROM spots WHERE sensor_id = $1`
	spot, err := scanSpotRow(r.db.QueryRowContext(ctx, query, sensorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.FindBySensorID: %w", err)
	}
	return spot, nil
}

func (r *pgSpotRepository) FindAll(ctx context.Context) ([]domain.Spot, error) {
	query := `SELECT ` + spotColumns + ` FROM spots ORDER BY sensor_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var spots []domain.Spot
	for rows.Next() {
		spot, err := scanSpotRow(rows)
		if err != nil {
			return nil, fmt.Errorf("SpotRepository.FindAll (scanning row): %w", err)
		}
		spots = append(spots, *spot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll (rows error): %w", err)
	}
	return spots, nil
}

func (r *pgSpotRepository) UpdateFromSensor(ctx context.Context, id int, status domain.SpotStatus, isDetected bool, heartbeat time.Time) (*domain.Spot, error) {
	// Guard ngay trong SQL: reading phần cứng chỉ được đổi status khi status hiện tại
	// cũng là loại do phần cứng suy ra. reserved/maintenance giữ nguyên, nhưng
	// is_hardware_detected và last_heartbeat vẫn được ghi.
	query := `UPDATE spots
	           SET status = CASE WHEN status IN ('available', 'occupied') THEN $1 ELSE status END,
	               is_hardware_detected = $2,
	               last_heartbeat = $3,
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = $4
	           RETURNING ` + spotColumns
	spot, err := scanSpotRow(r.db.QueryRowContext(ctx, query, status, isDetected, heartbeat, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.UpdateFromSensor: %w", err)
	}
	return spot, nil
}

func (r *pgSpotRepository) UpdateStatus(ctx context.Context, id int, status domain.SpotStatus) error {
	query := `UPDATE spots SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("SpotRepository.UpdateStatus: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SpotRepository.UpdateStatus (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpotRow(row rowScanner) (*domain.Spot, error) {
	spot := &domain.Spot{}
	var lastHeartbeat sql.NullTime
	err := row.Scan(
		&spot.ID, &spot.SensorID, &spot.SpotNumber, &spot.Status,
		&spot.IsHardwareDetected, &lastHeartbeat, &spot.CreatedAt, &spot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastHeartbeat.Valid {
		t := lastHeartbeat.Time.In(time.UTC)
		spot.LastHeartbeat = &t
	}
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}
