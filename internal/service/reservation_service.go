package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/AlemayehuDabi/Addis-Parking/internal/domain"
	"github.com/AlemayehuDabi/Addis-Parking/internal/repository"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

var ErrInvalidInterval = errors.New("startTime phải nhỏ hơn endTime")
var ErrInvalidTransition = errors.New("reservation đã ở trạng thái cuối, không thể chuyển tiếp")

// ReservationService là trọng tài cho mọi yêu cầu đặt chỗ và là nơi duy nhất
// thực hiện chuyển trạng thái lifecycle của reservation.
type ReservationService struct {
	reservationRepo repository.ReservationRepository
	spotRepo        repository.SpotRepository
	grace           time.Duration
	now             func() time.Time

	// Khóa theo từng spot: check-then-act (kiểm tra giao khoảng rồi mới tạo)
	// phải nguyên tử theo spot_id để hai request chạy đua không cùng lọt qua
	// bước kiểm tra. Các spot khác nhau không chặn nhau.
	mu        sync.Mutex
	spotLocks map[int]*sync.Mutex
}

func NewReservationService(
	reservationRepo repository.ReservationRepository,
	spotRepo repository.SpotRepository,
	grace time.Duration,
	now func() time.Time,
) *ReservationService {
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservationRepo: reservationRepo,
		spotRepo:        spotRepo,
		grace:           grace,
		now:             now,
		spotLocks:       make(map[int]*sync.Mutex),
	}
}

func (s *ReservationService) lockForSpot(spotID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.spotLocks[spotID]
	if !ok {
		lock = &sync.Mutex{}
		s.spotLocks[spotID] = lock
	}
	return lock
}

func (s *ReservationService) CreateReservation(ctx context.Context, dto domain.CreateReservationDTO) (*domain.Reservation, error) {
	if !dto.StartTime.Before(dto.EndTime) {
		return nil, ErrInvalidInterval
	}

	lock := s.lockForSpot(dto.SpotID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	existing, err := s.reservationRepo.FindOverlapping(ctx, dto.SpotID, dto.StartTime, dto.EndTime)
	if err != nil {
		return nil, fmt.Errorf("lỗi khi kiểm tra reservation giao khoảng: %w", err)
	}
	for _, res := range existing {
		// Bản ghi pending quá hạn ân hạn hoặc active đã qua end_time là terminal
		// về mặt quan sát dù sweep chưa kịp persist — không chặn booking mới.
		if s.effectiveStatus(&res, now).Terminal() {
			continue
		}
		return nil, fmt.Errorf("%w: trùng với reservation %s (%s - %s)",
			repository.ErrReservationConflict, res.ID,
			res.StartTime.Format(time.RFC3339), res.EndTime.Format(time.RFC3339))
	}

	res := &domain.Reservation{
		ID:           uuid.NewString(),
		UserID:       dto.UserID,
		SpotID:       dto.SpotID,
		ParkingLotID: dto.ParkingLotID,
		StartTime:    dto.StartTime.UTC(),
		EndTime:      dto.EndTime.UTC(),
		Status:       domain.ReservationPending,
		LicensePlate: dto.LicensePlate,
		TotalFee:     null.FloatFromPtr(dto.TotalFee),
	}
	return s.reservationRepo.Create(ctx, res)
}

func (s *ReservationService) CancelReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	res, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.effectiveStatus(res, s.now()).Terminal() {
		return nil, fmt.Errorf("%w: reservation %s đang ở trạng thái '%s'", ErrInvalidTransition, id, res.Status)
	}
	if err := s.reservationRepo.UpdateStatus(ctx, id, domain.ReservationCancelled, null.Time{}, null.Time{}); err != nil {
		return nil, err
	}
	res.Status = domain.ReservationCancelled
	return res, nil
}

func (s *ReservationService) GetReservationByID(ctx context.Context, id string) (*domain.Reservation, error) {
	res, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Status = s.effectiveStatus(res, s.now())
	return res, nil
}

func (s *ReservationService) FindReservations(ctx context.Context, filter domain.ReservationFilterDTO) ([]domain.Reservation, error) {
	reservations, err := s.reservationRepo.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range reservations {
		reservations[i].Status = s.effectiveStatus(&reservations[i], now)
	}
	return reservations, nil
}

func (s *ReservationService) FindLiveReservations(ctx context.Context) ([]domain.Reservation, error) {
	return s.reservationRepo.FindLive(ctx, s.now())
}

// ConfirmEntry đối chiếu tín hiệu "có xe" của phần cứng với reservation đang
// chờ của spot: pending trong cửa sổ [start - grace, end) được xác nhận vào
// và chuyển sang active. Không có reservation phù hợp -> ErrNotFound để
// caller ghi nhận bất thường.
func (s *ReservationService) ConfirmEntry(ctx context.Context, spotID int, at time.Time) (*domain.Reservation, error) {
	res, err := s.reservationRepo.FindCurrentBySpot(ctx, spotID, at, s.grace)
	if err != nil {
		return nil, err
	}
	if s.effectiveStatus(res, at) == domain.ReservationExpired {
		// pending quá start + grace đã là expired về mặt quan sát dù sweep chưa
		// persist; trạng thái cuối không có đường quay lại, tín hiệu phần cứng
		// không hồi sinh nó.
		return nil, repository.ErrNotFound
	}
	if res.Status != domain.ReservationPending {
		// Đã active rồi (ví dụ sensor flip lại sau khi xe đỗ yên) — không làm gì.
		return res, nil
	}
	if err := s.reservationRepo.UpdateStatus(ctx, res.ID, domain.ReservationActive, null.TimeFrom(at.UTC()), null.Time{}); err != nil {
		return nil, err
	}
	res.Status = domain.ReservationActive
	res.ActualEntryTime = null.TimeFrom(at.UTC())
	return res, nil
}

// ConfirmExit đối chiếu tín hiệu "xe rời đi": reservation active của spot
// được kết thúc và spot được trả về available nếu đang bị giữ ở reserved.
func (s *ReservationService) ConfirmExit(ctx context.Context, spotID int, at time.Time) (*domain.Reservation, error) {
	res, err := s.reservationRepo.FindCurrentBySpot(ctx, spotID, at, s.grace)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.ReservationActive {
		return res, nil
	}
	if err := s.reservationRepo.UpdateStatus(ctx, res.ID, domain.ReservationCompleted, null.Time{}, null.TimeFrom(at.UTC())); err != nil {
		return nil, err
	}
	res.Status = domain.ReservationCompleted
	res.ActualExitTime = null.TimeFrom(at.UTC())

	s.releaseSpot(ctx, spotID)
	return res, nil
}

// releaseSpot trả spot từ reserved về available sau khi reservation kết thúc.
// maintenance không bị đụng tới.
func (s *ReservationService) releaseSpot(ctx context.Context, spotID int) {
	spot, err := s.spotRepo.FindByID(ctx, spotID)
	if err != nil {
		log.Printf("ReservationService: không đọc được spot %d để trả trạng thái: %v", spotID, err)
		return
	}
	if spot.Status != domain.SpotReserved {
		return
	}
	if err := s.spotRepo.UpdateStatus(ctx, spotID, domain.SpotAvailable); err != nil {
		log.Printf("ReservationService: không trả được spot %d về available: %v", spotID, err)
	}
}

// RunExpirySweep quét định kỳ các chuyển trạng thái theo thời gian:
// pending -> expired (không vào xe trước start + grace) và
// active -> completed (qua end_time). Các đường đọc đã tự suy ra trạng thái
// đúng (lazy), sweep chỉ persist cho bền.
func (s *ReservationService) RunExpirySweep(ctx context.Context) {
	now := s.now()
	expired, err := s.reservationRepo.ExpireOverduePending(ctx, now, s.grace)
	if err != nil {
		log.Printf("ReservationService: lỗi sweep expired: %v", err)
	} else if expired > 0 {
		log.Printf("ReservationService: đã chuyển %d reservation pending quá hạn sang expired", expired)
	}

	completed, err := s.reservationRepo.CompleteOverdueActive(ctx, now)
	if err != nil {
		log.Printf("ReservationService: lỗi sweep completed: %v", err)
	} else if completed > 0 {
		log.Printf("ReservationService: đã chuyển %d reservation active quá end_time sang completed", completed)
	}
}

// effectiveStatus suy ra trạng thái quan sát được tại thời điểm at, kể cả khi
// sweep chưa kịp persist chuyển trạng thái theo thời gian.
func (s *ReservationService) effectiveStatus(res *domain.Reservation, at time.Time) domain.ReservationStatus {
	switch res.Status {
	case domain.ReservationPending:
		if !at.Before(res.StartTime.Add(s.grace)) {
			return domain.ReservationExpired
		}
	case domain.ReservationActive:
		if !at.Before(res.EndTime) {
			return domain.ReservationCompleted
		}
	}
	return res.Status
}
