package service

import (
	"sync"
	"time"
)

// DebounceReconciler quyết định một reading phần cứng có phải là thay đổi
// trạng thái thật hay chỉ là nhiễu cảm biến (gió làm khoảng cách siêu âm
// dao động quanh ngưỡng). Trạng thái chỉ nằm trong RAM, rebuild lạnh khi
// process khởi động lại: event đầu tiên của mỗi sensor luôn được chấp nhận.
//
// Hai pha tách biệt: Evaluate chỉ ra quyết định, Commit mới ghi nhận giá trị
// đã chấp nhận. Caller gọi Commit sau khi ghi bền thành công — nếu ghi DB
// thất bại thì reading không được đánh dấu accepted và reading khác tiếp theo
// vẫn có cơ hội được xử lý lại.
type DebounceReconciler struct {
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	states map[int]sensorState
}

type sensorState struct {
	lastAcceptedValue bool
	lastChangeTime    time.Time
}

func NewDebounceReconciler(window time.Duration, now func() time.Time) *DebounceReconciler {
	if now == nil {
		now = time.Now
	}
	return &DebounceReconciler{
		window: window,
		now:    now,
		states: make(map[int]sensorState),
	}
}

// Evaluate trả về true nếu reading đáng được ghi bền và broadcast.
//
// Reading bị debounce (flip trong cửa sổ) bị drop mà KHÔNG đụng vào trạng thái
// nội bộ: cooldown không bị reset, nên một chuyển trạng thái thật sự được chấp
// nhận ngay khi có reading đến sau lúc cooldown hết hạn.
func (r *DebounceReconciler) Evaluate(sensorID int, isParked bool) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	st, seen := r.states[sensorID]
	if !seen {
		// Cache lạnh (sensor mới hoặc vừa restart): luôn chấp nhận.
		return true
	}
	if isParked == st.lastAcceptedValue {
		return false
	}
	if now.Sub(st.lastChangeTime) < r.window {
		return false
	}
	return true
}

// Commit ghi nhận reading đã được persist thành công.
func (r *DebounceReconciler) Commit(sensorID int, isParked bool) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[sensorID] = sensorState{lastAcceptedValue: isParked, lastChangeTime: now}
}
