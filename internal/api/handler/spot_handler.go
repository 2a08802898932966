package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AlemayehuDabi/Addis-Parking/internal/domain"
	"github.com/AlemayehuDabi/Addis-Parking/internal/repository"
	"github.com/AlemayehuDabi/Addis-Parking/internal/service"

	"github.com/gin-gonic/gin"
)

type SpotHandler struct {
	parkingService *service.ParkingService
}

func NewSpotHandler(ps *service.ParkingService) *SpotHandler {
	return &SpotHandler{parkingService: ps}
}

// GET /spots — snapshot đầy đủ, client websocket mới kết nối resync qua đây.
func (h *SpotHandler) GetAllSpots(c *gin.Context) {
	spots, err := h.parkingService.GetAllSpots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy danh sách chỗ đỗ"})
		return
	}
	if spots == nil {
		spots = []domain.Spot{}
	}
	c.JSON(http.StatusOK, spots)
}

// GET /spots/:sensor_id
func (h *SpotHandler) GetSpotBySensorID(c *gin.Context) {
	sensorID, err := strconv.Atoi(c.Param("sensor_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sensor ID không hợp lệ"})
		return
	}

	spot, err := h.parkingService.GetSpotBySensorID(c.Request.Context(), sensorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy chỗ đỗ"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy thông tin chỗ đỗ"})
		return
	}
	c.JSON(http.StatusOK, spot)
}

// PUT /spots/:sensor_id/status — đường ghi đè tường minh cho reserved/maintenance.
func (h *SpotHandler) OverrideSpotStatus(c *gin.Context) {
	sensorID, err := strconv.Atoi(c.Param("sensor_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sensor ID không hợp lệ"})
		return
	}

	var dto domain.UpdateSpotStatusDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spot, err := h.parkingService.OverrideSpotStatus(c.Request.Context(), sensorID, domain.SpotStatus(dto.Status))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy chỗ đỗ để cập nhật"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật trạng thái chỗ đỗ", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, spot)
}
