package handler

import (
	"errors"
	"net/http"

	"github.com/AlemayehuDabi/Addis-Parking/internal/api/middleware"
	"github.com/AlemayehuDabi/Addis-Parking/internal/domain"
	"github.com/AlemayehuDabi/Addis-Parking/internal/repository"
	"github.com/AlemayehuDabi/Addis-Parking/internal/service"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	reservationService *service.ReservationService
}

func NewReservationHandler(rs *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: rs}
}

// POST /reservation
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var dto domain.CreateReservationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// userId lấy từ token; body chỉ được phép tự khai khi không có token (dev/test)
	if userID, exists := c.Get(middleware.UserIDKey); exists {
		dto.UserID = userID.(string)
	}
	if dto.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu userId"})
		return
	}

	res, err := h.reservationService.CreateReservation(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrReservationConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Chỗ đỗ đã được đặt trong khung giờ này", "details": err.Error()})
			return
		}
		if errors.Is(err, service.ErrInvalidInterval) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo reservation", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, res)
}

// DELETE /reservations/:id
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	id := c.Param("id")

	res, err := h.reservationService.CancelReservation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy reservation"})
			return
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể hủy reservation", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /reservations?status=&page=&limit=
func (h *ReservationHandler) FindReservations(c *gin.Context) {
	var filter domain.ReservationFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reservations, err := h.reservationService.FindReservations(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy danh sách reservation"})
		return
	}
	if reservations == nil {
		reservations = []domain.Reservation{}
	}
	c.JSON(http.StatusOK, reservations)
}

// GET /reservations/live
func (h *ReservationHandler) FindLiveReservations(c *gin.Context) {
	reservations, err := h.reservationService.FindLiveReservations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy reservation đang hiệu lực"})
		return
	}
	if reservations == nil {
		reservations = []domain.Reservation{}
	}
	c.JSON(http.StatusOK, reservations)
}
