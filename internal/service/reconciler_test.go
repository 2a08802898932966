package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock cho phép test điều khiển thời gian debounce từng milli giây.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

const testWindow = 2000 * time.Millisecond

func TestReconcilerFirstReadingAlwaysAccepted(t *testing.T) {
	clock := newFakeClock()
	r := NewDebounceReconciler(testWindow, clock.Now)

	// Cache lạnh: cả reading "false" đầu tiên cũng được chấp nhận.
	require.True(t, r.Evaluate(1, false))
	r.Commit(1, false)

	require.True(t, r.Evaluate(2, true))
}

func TestReconcilerSameValueIsNoop(t *testing.T) {
	clock := newFakeClock()
	r := NewDebounceReconciler(testWindow, clock.Now)

	require.True(t, r.Evaluate(1, true))
	r.Commit(1, true)

	clock.Advance(5 * time.Second)
	require.False(t, r.Evaluate(1, true))
}

func TestReconcilerDropsFlipWithinWindow(t *testing.T) {
	clock := newFakeClock()
	r := NewDebounceReconciler(testWindow, clock.Now)

	require.True(t, r.Evaluate(1, true))
	r.Commit(1, true)

	clock.Advance(500 * time.Millisecond)
	require.False(t, r.Evaluate(1, false))

	clock.Advance(500 * time.Millisecond)
	require.False(t, r.Evaluate(1, false))
}

// true -> false -> true trong vòng 2000ms: các flip trung gian bị drop,
// giá trị cuối cùng chốt lại bằng reading thô cuối cùng sau khi cooldown hết.
func TestReconcilerIntermediateFlipsDropped(t *testing.T) {
	clock := newFakeClock()
	r := NewDebounceReconciler(testWindow, clock.Now)

	require.True(t, r.Evaluate(1, true))
	r.Commit(1, true)

	clock.Advance(400 * time.Millisecond)
	require.False(t, r.Evaluate(1, false))

	clock.Advance(400 * time.Millisecond)
	require.False(t, r.Evaluate(1, true)) // trùng giá trị đã chấp nhận -> no-op

	clock.Advance(400 * time.Millisecond)
	require.False(t, r.Evaluate(1, false)) // vẫn trong cooldown

	// Cooldown hết: reading khác giá trị tiếp theo được chấp nhận ngay.
	clock.Advance(testWindow)
	require.True(t, r.Evaluate(1, false))
	r.Commit(1, false)
}

// Reading bị debounce không reset cooldown: một chuyển trạng thái thật được
// chấp nhận ngay khi có reading đến sau thời điểm lastChange + window, chứ
// không phải sau lần flip thô cuối cùng.
func TestReconcilerDroppedReadingDoesNotResetCooldown(t *testing.T) {
	clock := newFakeClock()
	r := NewDebounceReconciler(testWindow, clock.Now)

	require.True(t, r.Evaluate(1, false))
	r.Commit(1, false)

	// Spam flip mỗi 300ms trong suốt cooldown.
	for i := 0; i < 6; i++ {
		clock.Advance(300 * time.Millisecond)
		require.False(t, r.Evaluate(1, true))
	}

	// 6*300ms = 1800ms < 2000ms. Thêm 300ms nữa là qua mốc cooldown:
	// reading kế tiếp được chấp nhận dù flip thô gần nhất mới cách đây 300ms.
	clock.Advance(300 * time.Millisecond)
	require.True(t, r.Evaluate(1, true))
}

// Tối đa một chuyển trạng thái được chấp nhận trong mỗi chu kỳ cooldown.
func TestReconcilerAtMostOneTransitionPerWindow(t *testing.T) {
	clock := newFakeClock()
	r := NewDebounceReconciler(testWindow, clock.Now)

	require.True(t, r.Evaluate(1, true))
	r.Commit(1, true)

	accepted := 0
	value := true
	for i := 0; i < 20; i++ {
		clock.Advance(100 * time.Millisecond)
		value = !value
		if r.Evaluate(1, value) {
			r.Commit(1, value)
			accepted++
		}
	}
	// 20 * 100ms = 2000ms kể từ lần chấp nhận đầu: nhiều nhất một lần nữa.
	require.LessOrEqual(t, accepted, 1)
}

func TestReconcilerSensorsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	r := NewDebounceReconciler(testWindow, clock.Now)

	require.True(t, r.Evaluate(1, true))
	r.Commit(1, true)

	clock.Advance(100 * time.Millisecond)
	// Sensor 2 đang trong cửa sổ cooldown của sensor 1 nhưng không liên quan.
	require.True(t, r.Evaluate(2, true))
	r.Commit(2, true)

	clock.Advance(100 * time.Millisecond)
	require.False(t, r.Evaluate(1, false))
	require.False(t, r.Evaluate(2, false))
}

// Evaluate không Commit (ghi bền thất bại) thì trạng thái nội bộ giữ nguyên:
// reading sau đó vẫn được chấp nhận lại.
func TestReconcilerNoCommitKeepsStateForRetry(t *testing.T) {
	clock := newFakeClock()
	r := NewDebounceReconciler(testWindow, clock.Now)

	require.True(t, r.Evaluate(1, true))
	// Không Commit: coi như ghi DB thất bại.

	clock.Advance(50 * time.Millisecond)
	require.True(t, r.Evaluate(1, true))
	r.Commit(1, true)

	clock.Advance(5 * time.Second)
	require.True(t, r.Evaluate(1, false))
}
