package domain

import (
	"encoding/json"
	"errors"
)

// SensorStatusEvent là dạng chuẩn hóa của một frame phần cứng sau khi qua
// biên ingestion. Mọi thứ phía sau (reconciler, store, broadcaster) chỉ
// nhìn thấy kiểu này.
type SensorStatusEvent struct {
	SensorID int  `json:"sensorId"`
	IsParked bool `json:"isParked"`
}

var ErrMalformedSensorEvent = errors.New("frame cảm biến thiếu sensorId hoặc isParked")

// rawSensorFrame parse bước đầu: ESP32 gửi lúc thì phẳng {sensorId, isParked},
// lúc thì bọc trong {event, data: {...}} tùy firmware.
type rawSensorFrame struct {
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data"`
	SensorID *int            `json:"sensorId"`
	IsParked *bool           `json:"isParked"`
}

type rawSensorData struct {
	SensorID *int  `json:"sensorId"`
	IsParked *bool `json:"isParked"`
}

// EventConnectionTest là frame thử kết nối của ESP32, log rồi bỏ qua.
const EventConnectionTest = "connection_test"

// ParseSensorEvent chuẩn hóa payload phần cứng về SensorStatusEvent.
// Trả về ErrMalformedSensorEvent nếu thiếu trường; caller log warning và drop,
// frame hỏng không bao giờ đi sâu hơn biên ingestion.
func ParseSensorEvent(payload []byte) (SensorStatusEvent, error) {
	var frame rawSensorFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return SensorStatusEvent{}, err
	}

	sensorID, isParked := frame.SensorID, frame.IsParked
	if len(frame.Data) > 0 {
		var data rawSensorData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return SensorStatusEvent{}, err
		}
		if data.SensorID != nil {
			sensorID = data.SensorID
		}
		if data.IsParked != nil {
			isParked = data.IsParked
		}
	}

	if sensorID == nil || isParked == nil {
		return SensorStatusEvent{}, ErrMalformedSensorEvent
	}
	return SensorStatusEvent{SensorID: *sensorID, IsParked: *isParked}, nil
}

// UIUpdateMessage là frame broadcast cho mọi client đang kết nối.
type UIUpdateMessage struct {
	Event string            `json:"event"`
	Data  SensorStatusEvent `json:"data"`
}

func NewUIUpdateMessage(sensorID int, isParked bool) UIUpdateMessage {
	return UIUpdateMessage{
		Event: "ui_update",
		Data:  SensorStatusEvent{SensorID: sensorID, IsParked: isParked},
	}
}
