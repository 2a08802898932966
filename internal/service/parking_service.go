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
)

// UIBroadcaster là fan-out sang mọi client đang kết nối. Giao tiếp best-effort,
// không được phép chặn ingestion.
type UIBroadcaster interface {
	BroadcastUIUpdate(sensorID int, isParked bool)
}

// ParkingService nối biên ingestion với reconciler, SpotStore, đối chiếu
// reservation và broadcaster: một event cảm biến đi qua đây từ frame thô đến
// thông báo ui_update.
type ParkingService struct {
	spotRepo           repository.SpotRepository
	reconciler         *DebounceReconciler
	reservationService *ReservationService
	broadcaster        UIBroadcaster
	now                func() time.Time

	// Serialize xử lý theo từng sensor: hai kênh ingestion (websocket + SQS)
	// có thể cùng đưa event của một sensor vào; sensor khác nhau vẫn song song.
	mu          sync.Mutex
	sensorLocks map[int]*sync.Mutex
}

func NewParkingService(
	spotRepo repository.SpotRepository,
	reconciler *DebounceReconciler,
	reservationService *ReservationService,
	broadcaster UIBroadcaster,
	now func() time.Time,
) *ParkingService {
	if now == nil {
		now = time.Now
	}
	return &ParkingService{
		spotRepo:           spotRepo,
		reconciler:         reconciler,
		reservationService: reservationService,
		broadcaster:        broadcaster,
		now:                now,
		sensorLocks:        make(map[int]*sync.Mutex),
	}
}

func (s *ParkingService) lockForSensor(sensorID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.sensorLocks[sensorID]
	if !ok {
		lock = &sync.Mutex{}
		s.sensorLocks[sensorID] = lock
	}
	return lock
}

// ProcessSensorEvent xử lý một event đã chuẩn hóa:
// debounce -> upsert spot -> ghi trạng thái -> đối chiếu reservation -> broadcast.
// Trả về error chỉ khi ghi bền thất bại (caller kênh SQS dựa vào đó để redeliver);
// event bị debounce là no-op bình thường.
func (s *ParkingService) ProcessSensorEvent(ctx context.Context, ev domain.SensorStatusEvent) error {
	lock := s.lockForSensor(ev.SensorID)
	lock.Lock()
	defer lock.Unlock()

	if !s.reconciler.Evaluate(ev.SensorID, ev.IsParked) {
		return nil
	}

	// Lần đầu thấy sensorId này thì tạo spot với spot_number dẫn xuất;
	// upsert nguyên tử nên hai event đầu tiên chạy đua cũng không tạo bản ghi đôi.
	spot, err := s.spotRepo.GetOrCreateBySensorID(ctx, ev.SensorID)
	if err != nil {
		return fmt.Errorf("lỗi get-or-create spot cho sensor %d: %w", ev.SensorID, err)
	}

	status := domain.SpotAvailable
	if ev.IsParked {
		status = domain.SpotOccupied
	}

	now := s.now()
	updated, err := s.spotRepo.UpdateFromSensor(ctx, spot.ID, status, ev.IsParked, now)
	if err != nil {
		// Không Commit: reading chưa được tính là accepted, reading khác tiếp
		// theo của sensor này vẫn được đánh giá lại từ trạng thái cũ.
		return fmt.Errorf("lỗi ghi trạng thái spot %d: %w", spot.ID, err)
	}
	s.reconciler.Commit(ev.SensorID, ev.IsParked)

	s.correlateReservation(ctx, updated, ev.IsParked, now)

	log.Printf("ParkingService: sensor %d -> %s (spot %s)", ev.SensorID, status, updated.SpotNumber)
	s.broadcaster.BroadcastUIUpdate(ev.SensorID, ev.IsParked)
	return nil
}

// correlateReservation áp chính sách cho spot đang reserved/maintenance:
// tín hiệu "có xe" khớp với reservation của chính spot đó là xác nhận vào bãi;
// tín hiệu không khớp reservation nào là bất thường, chỉ log — phần cứng
// không bao giờ tự hạ cấp trạng thái reserved/maintenance.
func (s *ParkingService) correlateReservation(ctx context.Context, spot *domain.Spot, isParked bool, at time.Time) {
	if spot.Status == domain.SpotMaintenance {
		if isParked {
			log.Printf("ParkingService: CẢNH BÁO: phát hiện xe ở spot %s đang maintenance", spot.SpotNumber)
		}
		return
	}

	if isParked {
		res, err := s.reservationService.ConfirmEntry(ctx, spot.ID, at)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				if spot.Status == domain.SpotReserved {
					log.Printf("ParkingService: CẢNH BÁO: xe đỗ vào spot %s đang reserved nhưng không khớp reservation nào", spot.SpotNumber)
				}
				return
			}
			log.Printf("ParkingService: lỗi xác nhận entry cho spot %d: %v", spot.ID, err)
			return
		}
		if res.ActualEntryTime.Valid {
			log.Printf("ParkingService: reservation %s chuyển sang active (xe vào spot %s)", res.ID, spot.SpotNumber)
		}
		return
	}

	res, err := s.reservationService.ConfirmExit(ctx, spot.ID, at)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("ParkingService: lỗi xác nhận exit cho spot %d: %v", spot.ID, err)
		}
		return
	}
	if res.Status == domain.ReservationCompleted {
		log.Printf("ParkingService: reservation %s hoàn tất (xe rời spot %s)", res.ID, spot.SpotNumber)
	}
}

// HandleRawSensorPayload là entrypoint chung cho cả hai kênh ingestion:
// chuẩn hóa payload (phẳng hoặc bọc trong data) rồi đưa vào pipeline.
// Frame hỏng bị drop với warning, không bao giờ nổi error lên vòng đọc.
func (s *ParkingService) HandleRawSensorPayload(ctx context.Context, payload []byte) error {
	ev, err := domain.ParseSensorEvent(payload)
	if err != nil {
		log.Printf("ParkingService: CẢNH BÁO: drop frame cảm biến không hợp lệ: %v. Payload: %s", err, payload)
		return nil
	}
	return s.ProcessSensorEvent(ctx, ev)
}

// GetAllSpots là snapshot pull cho client mới kết nối (không có replay backlog).
func (s *ParkingService) GetAllSpots(ctx context.Context) ([]domain.Spot, error) {
	return s.spotRepo.FindAll(ctx)
}

func (s *ParkingService) GetSpotBySensorID(ctx context.Context, sensorID int) (*domain.Spot, error) {
	return s.spotRepo.FindBySensorID(ctx, sensorID)
}

// OverrideSpotStatus là đường promotion/demotion tường minh cho
// reserved/maintenance (admin hoặc tầng UI booking gọi qua REST).
func (s *ParkingService) OverrideSpotStatus(ctx context.Context, sensorID int, status domain.SpotStatus) (*domain.Spot, error) {
	spot, err := s.spotRepo.FindBySensorID(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	if err := s.spotRepo.UpdateStatus(ctx, spot.ID, status); err != nil {
		return nil, err
	}
	spot.Status = status
	return spot, nil
}
