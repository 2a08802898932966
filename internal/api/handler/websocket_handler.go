package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/AlemayehuDabi/Addis-Parking/internal/domain"
	"github.com/AlemayehuDabi/Addis-Parking/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Cho phép kết nối từ mọi nguồn (ESP32 và frontend)
	},
}

// WebSocketManager giữ tập các kết nối đang mở và fan-out thông báo ui_update.
// Giao tiếp best-effort, at-most-once: client chậm/đóng bị loại ngay trong
// vòng ghi, client kết nối sau một thay đổi tự kéo snapshot qua REST.
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	mutex      sync.RWMutex
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
	}
}

func (wsm *WebSocketManager) Start() {
	for {
		select {
		case client := <-wsm.register:
			wsm.mutex.Lock()
			wsm.clients[client] = true
			wsm.mutex.Unlock()
			log.Printf("WebSocket Manager: client kết nối. Tổng: %d", wsm.ClientCount())

		case client := <-wsm.unregister:
			wsm.mutex.Lock()
			if _, ok := wsm.clients[client]; ok {
				delete(wsm.clients, client)
				client.Close()
			}
			wsm.mutex.Unlock()
			log.Printf("WebSocket Manager: client ngắt kết nối. Tổng: %d", wsm.ClientCount())

		case message := <-wsm.broadcast:
			wsm.mutex.Lock()
			for client := range wsm.clients {
				err := client.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					// Client chết/chậm: loại khỏi tập, không làm hỏng fan-out còn lại.
					log.Printf("WebSocket Manager: lỗi ghi cho client, loại bỏ: %v", err)
					client.Close()
					delete(wsm.clients, client)
				}
			}
			wsm.mutex.Unlock()
		}
	}
}

func (wsm *WebSocketManager) ClientCount() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

// BroadcastUIUpdate đẩy {"event":"ui_update","data":{...}} cho mọi client.
// Gửi qua channel non-blocking: hàng đợi đầy thì drop, ingestion không bao giờ
// bị chặn sau broadcast.
func (wsm *WebSocketManager) BroadcastUIUpdate(sensorID int, isParked bool) {
	message, err := json.Marshal(domain.NewUIUpdateMessage(sensorID, isParked))
	if err != nil {
		log.Printf("WebSocket Manager: lỗi marshal ui_update: %v", err)
		return
	}

	select {
	case wsm.broadcast <- message:
	default:
		log.Println("WebSocket Manager: hàng đợi broadcast đầy, drop message")
	}
}

// WebSocketHandler phục vụ endpoint /ws dùng chung: phần cứng gửi frame
// update_status vào, frontend nhận ui_update ra — cùng một kết nối dài.
type WebSocketHandler struct {
	wsManager      *WebSocketManager
	parkingService *service.ParkingService
}

func NewWebSocketHandler(wsManager *WebSocketManager, parkingService *service.ParkingService) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager, parkingService: parkingService}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket Handler: upgrade thất bại: %v", err)
		return
	}

	h.wsManager.register <- conn

	go h.readLoop(conn)
}

// readLoop đọc frame phần cứng cho tới khi kết nối đóng. Lỗi của một kết nối
// được chứa tại đây, không ảnh hưởng vòng broadcast hay các sensor khác.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn) {
	defer func() {
		h.wsManager.unregister <- conn
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket Handler: lỗi đọc: %v", err)
			}
			return
		}

		var probe struct {
			Event string `json:"event"`
		}
		if json.Unmarshal(payload, &probe) == nil && probe.Event == domain.EventConnectionTest {
			log.Printf("WebSocket Handler: nhận connection_test từ thiết bị: %s", payload)
			continue
		}

		if err := h.parkingService.HandleRawSensorPayload(context.Background(), payload); err != nil {
			// Ghi bền thất bại: log và đọc tiếp, reading sau sẽ được đánh giá lại.
			log.Printf("WebSocket Handler: lỗi xử lý event cảm biến: %v", err)
		}
	}
}
