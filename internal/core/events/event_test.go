package events

import (
	"testing"

	"github.com/berfenger/solax2mqtt/internal/core/domain"
	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"

	"github.com/stretchr/testify/assert"
)

func value(v float64) *float64 {
	return &v
}

func eventValue(t *testing.T, events []any, id string) float64 {
	t.Helper()
	for _, ev := range events {
		if fev, ok := ev.(domain.FloatSensorUpdateEvent); ok && fev.Id == id {
			return fev.Value
		}
	}
	t.Fatalf("no event for sensor %s", id)
	return 0
}

func TestBatteryPowerProjections(t *testing.T) {
	info := &solaxcloud.RealtimeInfo{
		Metrics: map[string]*float64{
			solaxcloud.MetricBatteryPower: value(-300),
		},
	}
	events := RealtimeInfoToUpdateEvents(info)

	assert.Equal(t, float64(-300), eventValue(t, events, domain.SENSOR_ID_BATTERY_POWER_FLOW))
	assert.Equal(t, float64(0), eventValue(t, events, domain.SENSOR_ID_BATTERY_CHARGE_POWER))
	assert.Equal(t, float64(300), eventValue(t, events, domain.SENSOR_ID_BATTERY_DISCHARGE_POWER))
}

func TestGridPowerProjections(t *testing.T) {
	info := &solaxcloud.RealtimeInfo{
		Metrics: map[string]*float64{
			solaxcloud.MetricFeedinPower: value(1250.5),
		},
	}
	events := RealtimeInfoToUpdateEvents(info)

	assert.Equal(t, 1250.5, eventValue(t, events, domain.SENSOR_ID_GRID_EXPORT_POWER))
	assert.Equal(t, float64(0), eventValue(t, events, domain.SENSOR_ID_GRID_IMPORT_POWER))
}

func TestMissingMetricsProduceNoEvents(t *testing.T) {
	info := &solaxcloud.RealtimeInfo{
		Metrics: map[string]*float64{
			solaxcloud.MetricACPower: value(1500),
			solaxcloud.MetricSOC:     nil,
		},
	}
	events := RealtimeInfoToUpdateEvents(info)

	assert.Len(t, events, 1)
	assert.Equal(t, float64(1500), eventValue(t, events, domain.SENSOR_ID_AC_POWER))
}

func TestAllEventsAreFloatUpdates(t *testing.T) {
	info := &solaxcloud.RealtimeInfo{
		Metrics: map[string]*float64{
			solaxcloud.MetricACPower:      value(1500),
			solaxcloud.MetricFeedinPower:  value(-240.5),
			solaxcloud.MetricBatteryPower: value(830),
			solaxcloud.MetricPowerDC1:     value(1210),
			solaxcloud.MetricYieldToday:   value(7.3),
			solaxcloud.MetricSOC:          value(64),
		},
	}
	events := RealtimeInfoToUpdateEvents(info)

	assert.NotEmpty(t, events)
	for _, ev := range events {
		assert.IsType(t, domain.FloatSensorUpdateEvent{}, ev)
	}
}

func TestClampProjections(t *testing.T) {
	assert.Equal(t, float64(120), ClampAboveZero(120))
	assert.Equal(t, float64(0), ClampAboveZero(-120))
	assert.Equal(t, float64(120), ClampBelowZero(-120))
	assert.Equal(t, float64(0), ClampBelowZero(120))
}

func TestBatteryIconLadder(t *testing.T) {
	assert.Equal(t, "mdi:battery-outline", domain.BatteryIcon(0))
	assert.Equal(t, "mdi:battery-10", domain.BatteryIcon(5))
	assert.Equal(t, "mdi:battery-50", domain.BatteryIcon(42))
	assert.Equal(t, "mdi:battery-90", domain.BatteryIcon(85))
	assert.Equal(t, "mdi:battery", domain.BatteryIcon(100))
}
