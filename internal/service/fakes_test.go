package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/AlemayehuDabi/Addis-Parking/internal/domain"
	"github.com/AlemayehuDabi/Addis-Parking/internal/repository"

	"gopkg.in/guregu/null.v4"
)

// In-memory fakes mô phỏng đúng ngữ nghĩa SQL của tầng postgresql để test
// service không cần database.

type fakeSpotRepo struct {
	mu          sync.Mutex
	spots       map[int]*domain.Spot // key: sensorID
	nextID      int
	createCount int
	failWrites  bool
}

func newFakeSpotRepo() *fakeSpotRepo {
	return &fakeSpotRepo{spots: make(map[int]*domain.Spot), nextID: 1}
}

var errFakeWrite = errors.New("fake: ghi thất bại")

func (r *fakeSpotRepo) GetOrCreateBySensorID(_ context.Context, sensorID int) (*domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if spot, ok := r.spots[sensorID]; ok {
		cp := *spot
		return &cp, nil
	}
	spot := &domain.Spot{
		ID:         r.nextID,
		SensorID:   sensorID,
		SpotNumber: "S-" + strconv.Itoa(sensorID),
		Status:     domain.SpotAvailable,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	r.nextID++
	r.createCount++
	r.spots[sensorID] = spot
	cp := *spot
	return &cp, nil
}

func (r *fakeSpotRepo) FindByID(_ context.Context, id int) (*domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spot := range r.spots {
		if spot.ID == id {
			cp := *spot
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSpotRepo) FindBySensorID(_ context.Context, sensorID int) (*domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if spot, ok := r.spots[sensorID]; ok {
		cp := *spot
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSpotRepo) FindAll(_ context.Context) ([]domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Spot
	for _, spot := range r.spots {
		out = append(out, *spot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func (r *fakeSpotRepo) UpdateFromSensor(_ context.Context, id int, status domain.SpotStatus, isDetected bool, heartbeat time.Time) (*domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return nil, errFakeWrite
	}
	for _, spot := range r.spots {
		if spot.ID == id {
			if spot.Status.HardwareDerived() {
				spot.Status = status
			}
			spot.IsHardwareDetected = isDetected
			hb := heartbeat
			spot.LastHeartbeat = &hb
			spot.UpdatedAt = heartbeat
			cp := *spot
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSpotRepo) UpdateStatus(_ context.Context, id int, status domain.SpotStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spot := range r.spots {
		if spot.ID == id {
			spot.Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*domain.Reservation
	// Độ trễ nhân tạo giữa đọc và ghi để làm lộ TOCTOU race nếu service
	// không serialize theo spot.
	findDelay time.Duration
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[string]*domain.Reservation)}
}

func (r *fakeReservationRepo) Create(_ context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reservations[res.ID]; ok {
		return nil, repository.ErrDuplicateEntry
	}
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	cp := *res
	r.reservations[res.ID] = &cp
	return res, nil
}

func (r *fakeReservationRepo) FindByID(_ context.Context, id string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.reservations[id]; ok {
		cp := *res
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeReservationRepo) FindOverlapping(_ context.Context, spotID int, start, end time.Time) ([]domain.Reservation, error) {
	r.mu.Lock()
	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.SpotID != spotID {
			continue
		}
		if res.Status != domain.ReservationPending && res.Status != domain.ReservationActive {
			continue
		}
		if res.StartTime.Before(end) && res.EndTime.After(start) {
			out = append(out, *res)
		}
	}
	r.mu.Unlock()
	if r.findDelay > 0 {
		time.Sleep(r.findDelay)
	}
	return out, nil
}

func (r *fakeReservationRepo) FindCurrentBySpot(_ context.Context, spotID int, at time.Time, grace time.Duration) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.Reservation
	for _, res := range r.reservations {
		if res.SpotID != spotID {
			continue
		}
		if res.Status != domain.ReservationPending && res.Status != domain.ReservationActive {
			continue
		}
		if !res.StartTime.After(at.Add(grace)) && res.EndTime.After(at) {
			if best == nil || res.StartTime.Before(best.StartTime) {
				best = res
			}
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *fakeReservationRepo) UpdateStatus(_ context.Context, id string, status domain.ReservationStatus, entryTime, exitTime null.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	res.Status = status
	if entryTime.Valid {
		res.ActualEntryTime = entryTime
	}
	if exitTime.Valid {
		res.ActualExitTime = exitTime
	}
	res.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeReservationRepo) Find(_ context.Context, filter domain.ReservationFilterDTO) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Reservation
	for _, res := range r.reservations {
		if filter.Status != nil && *filter.Status != "" && string(res.Status) != *filter.Status {
			continue
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeReservationRepo) FindLive(_ context.Context, at time.Time) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.Status == domain.ReservationActive && !res.StartTime.After(at) && res.EndTime.After(at) {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) ExpireOverduePending(_ context.Context, at time.Time, grace time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, res := range r.reservations {
		if res.Status == domain.ReservationPending && !res.StartTime.After(at.Add(-grace)) {
			res.Status = domain.ReservationExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeReservationRepo) CompleteOverdueActive(_ context.Context, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, res := range r.reservations {
		if res.Status == domain.ReservationActive && !res.EndTime.After(at) {
			res.Status = domain.ReservationCompleted
			n++
		}
	}
	return n, nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []domain.SensorStatusEvent
}

func (b *fakeBroadcaster) BroadcastUIUpdate(sensorID int, isParked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, domain.SensorStatusEvent{SensorID: sensorID, IsParked: isParked})
}

func (b *fakeBroadcaster) Events() []domain.SensorStatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.SensorStatusEvent, len(b.events))
	copy(out, b.events)
	return out
}
