package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	// Cửa sổ debounce cho cảm biến siêu âm (gió, che khuất một phần... gây nhiễu)
	DebounceWindow time.Duration
	// Thời gian ân hạn trước khi reservation chưa check-in bị chuyển sang expired
	ReservationGrace    time.Duration
	ExpirySweepInterval time.Duration

	AWSRegion        string
	SQSEventQueueURL string // Tùy chọn: kênh ingestion thứ hai qua AWS IoT Rule -> SQS

	JWTSecret          string
	JWTExpirationHours time.Duration
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Cảnh báo: Không thể tải file .env: %v", err)
	}

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	debounceMs, _ := strconv.Atoi(getEnv("DEBOUNCE_WINDOW_MS", "2000"))
	graceMinutes, _ := strconv.Atoi(getEnv("RESERVATION_GRACE_MINUTES", "15"))
	sweepSeconds, _ := strconv.Atoi(getEnv("EXPIRY_SWEEP_INTERVAL_SECONDS", "60"))
	jwtExpHours, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "parking"),
		DBPassword: getEnv("DB_PASSWORD", "parking"),
		DBName:     getEnv("DB_NAME", "addis_parking"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		DebounceWindow:      time.Duration(debounceMs) * time.Millisecond,
		ReservationGrace:    time.Duration(graceMinutes) * time.Minute,
		ExpirySweepInterval: time.Duration(sweepSeconds) * time.Second,

		AWSRegion:        getEnv("AWS_REGION", "eu-central-1"),
		SQSEventQueueURL: getEnv("SQS_EVENT_QUEUE_URL", ""),

		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production-!@#$"),
		JWTExpirationHours: time.Duration(jwtExpHours) * time.Hour,
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Biến môi trường '%s' không được đặt, sử dụng giá trị mặc định: '%s'", key, fallback)
	return fallback
}
