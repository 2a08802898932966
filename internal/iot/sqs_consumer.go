package iot

import (
	"context"
	"log"
	"time"

	"github.com/AlemayehuDabi/Addis-Parking/internal/config"
	"github.com/AlemayehuDabi/Addis-Parking/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSConsumer là kênh ingestion thứ hai: các bãi dùng MQTT, AWS IoT Rule đẩy
// frame cảm biến vào SQS thay vì giữ websocket. Frame đi vào đúng pipeline
// chuẩn hóa/debounce như kênh websocket.
type SQSConsumer struct {
	sqsClient      *sqs.Client
	queueURL       string
	parkingService *service.ParkingService
}

func NewSQSConsumer(client *sqs.Client, cfg *config.Config, parkingService *service.ParkingService) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:      client,
		queueURL:       cfg.SQSEventQueueURL,
		parkingService: parkingService,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	log.Printf("SQS Consumer: bắt đầu lắng nghe queue: %s", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("SQS Consumer: context cancelled, dừng lại.")
			return
		default:
			receiveInput := &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(c.queueURL),
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
				VisibilityTimeout:   60,
			}

			result, err := c.sqsClient.ReceiveMessage(ctx, receiveInput)
			if err != nil {
				log.Printf("SQS Consumer: lỗi khi nhận message: %v", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					log.Println("SQS Consumer: context cancelled trong lúc chờ retry.")
					return
				}
				continue
			}

			for _, message := range result.Messages {
				if message.Body == nil {
					log.Println("SQS Consumer: nhận message với body rỗng, đang xóa...")
					c.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				// Frame hỏng được HandleRawSensorPayload drop tại chỗ (trả nil);
				// chỉ lỗi ghi bền mới giữ message lại cho lần redeliver sau.
				processingErr := c.parkingService.HandleRawSensorPayload(ctx, []byte(*message.Body))
				if processingErr == nil {
					c.deleteMessage(ctx, message.ReceiptHandle)
				} else {
					log.Printf("SQS Consumer: lỗi khi xử lý message: %v. Message sẽ được xử lý lại sau visibility timeout.", processingErr)
				}
			}
		}
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Println("SQS Consumer: receipt handle rỗng, không thể xóa message.")
		return
	}
	_, delErr := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if delErr != nil {
		log.Printf("SQS Consumer: lỗi khi xóa message: %v", delErr)
	}
}
