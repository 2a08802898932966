package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AlemayehuDabi/Addis-Parking/internal/domain"

	"gopkg.in/guregu/null.v4"
)

var ErrNotFound = errors.New("không tìm thấy bản ghi")
var ErrDuplicateEntry = errors.New("bản ghi đã tồn tại")
var ErrReservationConflict = errors.New("chỗ đỗ đã được đặt trong khung giờ này")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

// SpotRepository sở hữu độc quyền bản ghi Spot. Mọi ghi trạng thái từ phần cứng
// đi qua UpdateFromSensor; ghi đè reserved/maintenance chỉ qua UpdateStatus.
type SpotRepository interface {
	// GetOrCreateBySensorID là upsert nguyên tử theo unique key sensor_id:
	// hai event đầu tiên của cùng một sensor chạy đua cũng chỉ tạo đúng một bản ghi,
	// spot_number chỉ được gán lúc insert.
	GetOrCreateBySensorID(ctx context.Context, sensorID int) (*domain.Spot, error)
	FindByID(ctx context.Context, id int) (*domain.Spot, error)
	FindBySensorID(ctx context.Context, sensorID int) (*domain.Spot, error)
	FindAll(ctx context.Context) ([]domain.Spot, error)
	// UpdateFromSensor ghi reading đã debounce: status chỉ được áp nếu status hiện tại
	// cũng do phần cứng suy ra; is_hardware_detected và last_heartbeat luôn được cập nhật.
	UpdateFromSensor(ctx context.Context, id int, status domain.SpotStatus, isDetected bool, heartbeat time.Time) (*domain.Spot, error)
	// UpdateStatus là đường ghi đè tường minh (admin / nghiệp vụ reservation).
	UpdateStatus(ctx context.Context, id int, status domain.SpotStatus) error
}

// ReservationRepository sở hữu độc quyền bản ghi Reservation.
type ReservationRepository interface {
	Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error)
	FindByID(ctx context.Context, id string) (*domain.Reservation, error)
	// FindOverlapping trả về các reservation pending/active của spot có
	// [start_time, end_time) giao với [start, end) — kiểm tra nửa mở chuẩn.
	FindOverlapping(ctx context.Context, spotID int, start, end time.Time) ([]domain.Reservation, error)
	// FindCurrentBySpot tìm reservation pending/active của spot mà cửa sổ
	// [start_time - grace, end_time) chứa thời điểm at (dùng để đối chiếu tín hiệu phần cứng).
	FindCurrentBySpot(ctx context.Context, spotID int, at time.Time, grace time.Duration) (*domain.Reservation, error)
	UpdateStatus(ctx context.Context, id string, status domain.ReservationStatus, entryTime, exitTime null.Time) error
	Find(ctx context.Context, filter domain.ReservationFilterDTO) ([]domain.Reservation, error)
	// FindLive trả về các reservation active có start_time <= at < end_time.
	FindLive(ctx context.Context, at time.Time) ([]domain.Reservation, error)
	// ExpireOverduePending chuyển pending quá start_time + grace sang expired, trả về số bản ghi.
	ExpireOverduePending(ctx context.Context, at time.Time, grace time.Duration) (int64, error)
	// CompleteOverdueActive chuyển active quá end_time sang completed, trả về số bản ghi.
	CompleteOverdueActive(ctx context.Context, at time.Time) (int64, error)
}
