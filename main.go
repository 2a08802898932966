package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/AlemayehuDabi/Addis-Parking/internal/api"
	"github.com/AlemayehuDabi/Addis-Parking/internal/api/handler"
	"github.com/AlemayehuDabi/Addis-Parking/internal/api/middleware"
	"github.com/AlemayehuDabi/Addis-Parking/internal/config"
	"github.com/AlemayehuDabi/Addis-Parking/internal/iot"
	"github.com/AlemayehuDabi/Addis-Parking/internal/repository/postgresql"
	"github.com/AlemayehuDabi/Addis-Parking/internal/service"

	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	log.Println("Cấu hình đã được tải.")

	// 2. Setup Database Connection
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatalf("Không thể kết nối database: %v", err)
	}
	defer db.Close()
	log.Println("Đã kết nối database thành công!")

	// 3. Initialize Repositories
	userRepo := postgresql.NewPgUserRepository(db)
	spotRepo := postgresql.NewPgSpotRepository(db)
	reservationRepo := postgresql.NewPgReservationRepository(db)

	// 4. Init WebSocket manager (broadcaster)
	webSocketManager := handler.NewWebSocketManager()
	go webSocketManager.Start()
	log.Println("WebSocket Manager đã được khởi động.")

	// 5. Initialize Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpirationHours)
	reconciler := service.NewDebounceReconciler(cfg.DebounceWindow, nil)
	reservationService := service.NewReservationService(reservationRepo, spotRepo, cfg.ReservationGrace, nil)
	parkingService := service.NewParkingService(spotRepo, reconciler, reservationService, webSocketManager, nil)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	// 6. Khởi tạo và chạy SQS Consumer (kênh ingestion thứ hai, tùy chọn)
	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())

	if cfg.SQSEventQueueURL == "" {
		log.Println("SQS_EVENT_QUEUE_URL chưa được cấu hình. SQS Consumer sẽ không chạy.")
	} else {
		awsSDKCfg, err := awsgo_config.LoadDefaultConfig(consumerCtx, awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("Không thể tải AWS SDK config: %v", err)
		}
		sqsClient := sqs.NewFromConfig(awsSDKCfg)
		sqsConsumer := iot.NewSQSConsumer(sqsClient, cfg, parkingService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sqsConsumer.Start(consumerCtx)
			log.Println("SQS Consumer đã dừng.")
		}()
	}

	// 7. Background job: quét chuyển trạng thái theo thời gian của reservation
	go startExpirySweepJob(consumerCtx, reservationService, cfg.ExpirySweepInterval)

	// 8. Setup HTTP Router
	router := api.SetupRouter(authService, parkingService, reservationService, authMiddleware, webSocketManager)

	// 9. Start HTTP Server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server đang chạy trên port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Lỗi ListenAndServe(): %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Đang tắt server...")

	cancelConsumer()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Lỗi khi shutdown server: %v", err)
	}

	wg.Wait()
	log.Println("Server đã tắt.")
}

func startExpirySweepJob(ctx context.Context, rs *service.ReservationService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunExpirySweep(ctx)
		}
	}
}
