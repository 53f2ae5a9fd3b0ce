package events

import (
	"math"

	. "github.com/berfenger/solax2mqtt/internal/core/domain"
	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"
)

// ClampAboveZero is the positive half of a bidirectional power metric.
func ClampAboveZero(v float64) float64 {
	return math.Max(0, v)
}

// ClampBelowZero is the magnitude of the negative half of a bidirectional
// power metric.
func ClampBelowZero(v float64) float64 {
	return math.Abs(math.Min(0, v))
}

// RealtimeInfoToUpdateEvents maps a telemetry snapshot to sensor update
// events. Metrics the device did not report produce no event. The
// import/export and charge/discharge sensors are pure sign projections of
// their underlying metric, they carry no state of their own.
func RealtimeInfoToUpdateEvents(info *solaxcloud.RealtimeInfo) []any {
	var events []any

	add := func(id string, value float64, decimals uint) {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: id,
			},
			Value:    value,
			Decimals: decimals,
		})
	}

	// AC power
	if v := info.Metric(solaxcloud.MetricACPower); v != nil {
		add(SENSOR_ID_AC_POWER, *v, 1)
	}

	// Grid power flow and import/export split
	if v := info.Metric(solaxcloud.MetricFeedinPower); v != nil {
		add(SENSOR_ID_GRID_POWER_FLOW, *v, 1)
		add(SENSOR_ID_GRID_EXPORT_POWER, ClampAboveZero(*v), 1)
		add(SENSOR_ID_GRID_IMPORT_POWER, ClampBelowZero(*v), 1)
	}

	// Battery power flow and charge/discharge split
	if v := info.Metric(solaxcloud.MetricBatteryPower); v != nil {
		add(SENSOR_ID_BATTERY_POWER_FLOW, *v, 1)
		add(SENSOR_ID_BATTERY_CHARGE_POWER, ClampAboveZero(*v), 1)
		add(SENSOR_ID_BATTERY_DISCHARGE_POWER, ClampBelowZero(*v), 1)
	}

	// PV strings
	if v := info.Metric(solaxcloud.MetricPowerDC1); v != nil {
		add(SENSOR_ID_PV_POWER_DC1, *v, 1)
	}
	if v := info.Metric(solaxcloud.MetricPowerDC2); v != nil {
		add(SENSOR_ID_PV_POWER_DC2, *v, 1)
	}
	if v := info.Metric(solaxcloud.MetricPowerDC3); v != nil {
		add(SENSOR_ID_PV_POWER_DC3, *v, 1)
	}
	if v := info.Metric(solaxcloud.MetricPowerDC4); v != nil {
		add(SENSOR_ID_PV_POWER_DC4, *v, 1)
	}

	// Solar energy today
	if v := info.Metric(solaxcloud.MetricYieldToday); v != nil {
		add(SENSOR_ID_YIELD_TODAY, *v, 2)
	}

	// Battery SoC
	if v := info.Metric(solaxcloud.MetricSOC); v != nil {
		add(SENSOR_ID_BATTERY_SOC, *v, 0)
	}

	return events
}
