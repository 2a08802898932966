package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// Terminal: cancelled/expired/completed là trạng thái cuối, không có đường quay lại.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled || s == ReservationExpired
}

type Reservation struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	SpotID       int    `json:"spot_id"`
	ParkingLotID string `json:"parking_lot_id"` // Denormalized để query nhanh theo bãi
	// Khoảng thời gian nửa mở [StartTime, EndTime)
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	Status          ReservationStatus `json:"status"`
	LicensePlate    string            `json:"license_plate"`
	TotalFee        null.Float        `json:"total_fee"`
	ActualEntryTime null.Time         `json:"actual_entry_time"`
	ActualExitTime  null.Time         `json:"actual_exit_time"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type CreateReservationDTO struct {
	UserID       string    `json:"userId"`
	SpotID       int       `json:"spotId" binding:"required"`
	ParkingLotID string    `json:"parkingLotId" binding:"required"`
	StartTime    time.Time `json:"startTime" binding:"required"`
	EndTime      time.Time `json:"endTime" binding:"required"`
	TotalFee     *float64  `json:"totalFee"`
	LicensePlate string    `json:"licensePlate" binding:"required"`
}

type ReservationFilterDTO struct {
	Status *string `form:"status"`
	Page   int     `form:"page,default=1"`
	Limit  int     `form:"limit,default=20"`
}
