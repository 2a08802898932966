package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSensorEventFlat(t *testing.T) {
	ev, err := ParseSensorEvent([]byte(`{"sensorId": 7, "isParked": true}`))
	require.NoError(t, err)
	require.Equal(t, 7, ev.SensorID)
	require.True(t, ev.IsParked)
}

func TestParseSensorEventNested(t *testing.T) {
	ev, err := ParseSensorEvent([]byte(`{"data": {"sensorId": 3, "isParked": false}}`))
	require.NoError(t, err)
	require.Equal(t, 3, ev.SensorID)
	require.False(t, ev.IsParked)
}

func TestParseSensorEventWrappedWithEventName(t *testing.T) {
	ev, err := ParseSensorEvent([]byte(`{"event": "update_status", "data": {"sensorId": 12, "isParked": true}}`))
	require.NoError(t, err)
	require.Equal(t, 12, ev.SensorID)
	require.True(t, ev.IsParked)
}

func TestParseSensorEventMissingFields(t *testing.T) {
	cases := []string{
		`{}`,
		`{"sensorId": 1}`,
		`{"isParked": true}`,
		`{"data": {"sensorId": 4}}`,
		`{"event": "update_status", "data": {}}`,
	}
	for _, payload := range cases {
		_, err := ParseSensorEvent([]byte(payload))
		require.ErrorIs(t, err, ErrMalformedSensorEvent, "payload: %s", payload)
	}
}

func TestParseSensorEventInvalidJSON(t *testing.T) {
	_, err := ParseSensorEvent([]byte(`not-json`))
	require.Error(t, err)
}

func TestNewUIUpdateMessage(t *testing.T) {
	msg := NewUIUpdateMessage(5, true)
	require.Equal(t, "ui_update", msg.Event)
	require.Equal(t, 5, msg.Data.SensorID)
	require.True(t, msg.Data.IsParked)
}
