package api

import (
	"github.com/AlemayehuDabi/Addis-Parking/internal/api/handler"
	"github.com/AlemayehuDabi/Addis-Parking/internal/api/middleware"
	"github.com/AlemayehuDabi/Addis-Parking/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRouter(
	as *service.AuthService,
	ps *service.ParkingService,
	rs *service.ReservationService,
	authMw *middleware.AuthMiddleware,
	wsManager *handler.WebSocketManager,
) *gin.Engine {
	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// WebSocket endpoint dùng chung cho ESP32 (gửi update_status) và frontend
	// (nhận ui_update); không auth cho kết nối real-time.
	wsHandler := handler.NewWebSocketHandler(wsManager, ps)
	r.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(as)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		spotH := handler.NewSpotHandler(ps)
		spotRoutes := v1.Group("/spots")
		{
			spotRoutes.GET("", spotH.GetAllSpots)
			spotRoutes.GET("/:sensor_id", spotH.GetSpotBySensorID)
			spotRoutes.PUT("/:sensor_id/status", authMw.AuthorizeRole("admin"), spotH.OverrideSpotStatus)
		}

		resH := handler.NewReservationHandler(rs)
		v1.POST("/reservation", resH.CreateReservation)
		resRoutes := v1.Group("/reservations")
		{
			resRoutes.GET("", resH.FindReservations)
			resRoutes.GET("/live", resH.FindLiveReservations)
			resRoutes.DELETE("/:id", resH.CancelReservation)
		}
	}
	return r
}
