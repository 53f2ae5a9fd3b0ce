package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE            = "bridge"
	SENSOR_ID_AC_POWER                = "ac_power"
	SENSOR_ID_GRID_POWER_FLOW         = "grid_power_flow"
	SENSOR_ID_GRID_IMPORT_POWER       = "grid_import_power"
	SENSOR_ID_GRID_EXPORT_POWER       = "grid_export_power"
	SENSOR_ID_BATTERY_POWER_FLOW      = "battery_power_flow"
	SENSOR_ID_BATTERY_CHARGE_POWER    = "battery_charge_power"
	SENSOR_ID_BATTERY_DISCHARGE_POWER = "battery_discharge_power"
	SENSOR_ID_PV_POWER_DC1            = "pv_power_dc1"
	SENSOR_ID_PV_POWER_DC2            = "pv_power_dc2"
	SENSOR_ID_PV_POWER_DC3            = "pv_power_dc3"
	SENSOR_ID_PV_POWER_DC4            = "pv_power_dc4"
	SENSOR_ID_YIELD_TODAY             = "yield_today"
	SENSOR_ID_BATTERY_SOC             = "battery_soc"
	STATE_CLASS_MEASUREMENT           = "measurement"
	STATE_CLASS_TOTAL_INCREASING      = "total_increasing"
	DEVICE_CLASS_BATTERY              = "battery"
	DEVICE_CLASS_ENERGY               = "energy"
	DEVICE_CLASS_POWER                = "power"
	DEVICE_CLASS_CONNECTIVITY         = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC           = "diagnostic"
	SENSOR_TYPE_SENSOR                = "sensor"
	SENSOR_TYPE_BINARY                = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("solax2mqtt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Solax2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Solax2mqtt %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(metadata *solaxcloud.DeviceMetadata) Device {
	return Device{
		Id:           fmt.Sprintf("slx_inverter_%s", md5HashShort(metadata.InverterSN)),
		Manufacturer: "SolaX Power",
		Model:        "SolaX Cloud inverter",
		Name:         fmt.Sprintf("SolaX %s", metadata.SN),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// InverterSensors builds the sensor catalog for one inverter. Sensors whose
// metric the device did not report in snapshot are skipped so that models
// without battery or extra PV strings do not register dead entities.
func InverterSensors(inverterDevice Device, snapshot *solaxcloud.RealtimeInfo) []GenericSensor {

	var sensors []GenericSensor

	powerSensor := func(id, name, icon string) GenericSensor {
		return GenericSensor{
			Device:            inverterDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_POWER,
			UnitOfMeasurement: "W",
			Icon:              icon,
			UniqueId:          uniqueId(inverterDevice.Id, id),
		}
	}

	// AC power
	if snapshot.Metric(solaxcloud.MetricACPower) != nil {
		sensors = append(sensors, powerSensor(SENSOR_ID_AC_POWER, "AC power", ""))
	}

	// Grid power: raw flow plus import/export split
	if snapshot.Metric(solaxcloud.MetricFeedinPower) != nil {
		sensors = append(sensors,
			powerSensor(SENSOR_ID_GRID_POWER_FLOW, "Grid power flow", ""),
			powerSensor(SENSOR_ID_GRID_IMPORT_POWER, "Grid power import", "mdi:transmission-tower-import"),
			powerSensor(SENSOR_ID_GRID_EXPORT_POWER, "Grid power export", "mdi:transmission-tower-export"))
	}

	// Battery power: raw flow plus charge/discharge split
	if snapshot.Metric(solaxcloud.MetricBatteryPower) != nil {
		sensors = append(sensors,
			powerSensor(SENSOR_ID_BATTERY_POWER_FLOW, "Battery power flow", ""),
			powerSensor(SENSOR_ID_BATTERY_CHARGE_POWER, "Battery power charging", "mdi:battery-arrow-up-outline"),
			powerSensor(SENSOR_ID_BATTERY_DISCHARGE_POWER, "Battery power discharging", "mdi:battery-arrow-down-outline"))
	}

	// PV strings
	pvStrings := []struct {
		metric string
		id     string
		name   string
	}{
		{solaxcloud.MetricPowerDC1, SENSOR_ID_PV_POWER_DC1, "Solar power (DC1)"},
		{solaxcloud.MetricPowerDC2, SENSOR_ID_PV_POWER_DC2, "Solar power (DC2)"},
		{solaxcloud.MetricPowerDC3, SENSOR_ID_PV_POWER_DC3, "Solar power (DC3)"},
		{solaxcloud.MetricPowerDC4, SENSOR_ID_PV_POWER_DC4, "Solar power (DC4)"},
	}
	for _, pv := range pvStrings {
		if snapshot.Metric(pv.metric) != nil {
			sensors = append(sensors, powerSensor(pv.id, pv.name, "mdi:solar-panel"))
		}
	}

	// Solar energy today
	if snapshot.Metric(solaxcloud.MetricYieldToday) != nil {
		sensors = append(sensors, GenericSensor{
			Device:            inverterDevice,
			Id:                SENSOR_ID_YIELD_TODAY,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Solar energy (today)",
			StateClass:        STATE_CLASS_TOTAL_INCREASING,
			DeviceClass:       DEVICE_CLASS_ENERGY,
			UnitOfMeasurement: "kWh",
			Icon:              "mdi:solar-power",
			UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_YIELD_TODAY),
		})
	}

	// Battery charge percentage
	if soc := snapshot.Metric(solaxcloud.MetricSOC); soc != nil {
		sensors = append(sensors, GenericSensor{
			Device:            inverterDevice,
			Id:                SENSOR_ID_BATTERY_SOC,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Battery charge percentage",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_BATTERY,
			UnitOfMeasurement: "%",
			Icon:              BatteryIcon(*soc),
			UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_BATTERY_SOC),
		})
	}

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connectivity
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

// BatteryIcon picks the battery icon for a state of charge value.
func BatteryIcon(soc float64) string {
	switch {
	case soc <= 0:
		return "mdi:battery-outline"
	case soc < 10:
		return "mdi:battery-10"
	case soc < 20:
		return "mdi:battery-20"
	case soc < 30:
		return "mdi:battery-30"
	case soc < 40:
		return "mdi:battery-40"
	case soc < 50:
		return "mdi:battery-50"
	case soc < 60:
		return "mdi:battery-60"
	case soc < 70:
		return "mdi:battery-70"
	case soc < 80:
		return "mdi:battery-80"
	case soc < 90:
		return "mdi:battery-90"
	default:
		return "mdi:battery"
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
