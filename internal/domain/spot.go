package domain

import "time"

type SpotStatus string

const (
	SpotAvailable   SpotStatus = "available"
	SpotOccupied    SpotStatus = "occupied"
	SpotReserved    SpotStatus = "reserved"
	SpotMaintenance SpotStatus = "maintenance"
)

// HardwareDerived cho biết status này có được suy ra trực tiếp từ cảm biến hay không.
// reserved/maintenance là trạng thái do nghiệp vụ đặt, phần cứng không được tự ý ghi đè.
func (s SpotStatus) HardwareDerived() bool {
	return s == SpotAvailable || s == SpotOccupied
}

type Spot struct {
	ID       int `json:"id"`
	SensorID int `json:"sensor_id"`
	// SpotNumber được gán một lần duy nhất khi sensor xuất hiện lần đầu, ví dụ "S-7"
	SpotNumber          string     `json:"spot_number"`
	Status              SpotStatus `json:"status"`
	IsHardwareDetected  bool       `json:"is_hardware_detected"`
	LastHeartbeat       *time.Time `json:"last_heartbeat,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type UpdateSpotStatusDTO struct {
	Status string `json:"status" binding:"required,oneof=available occupied reserved maintenance"`
}
