package mqtt

import (
	"testing"

	"github.com/berfenger/solax2mqtt/internal/config"
	"github.com/berfenger/solax2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func testMQTTClient() *MQTTClient {
	cfg := config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "solax2mqtt",
			HADiscoveryTopic: "homeassistant",
		},
	}
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestTopics(t *testing.T) {
	client := testMQTTClient()

	assert.Equal(t, "solax2mqtt/bridge/state", client.BridgeStateTopic())
	assert.Equal(t, "solax2mqtt/sensor/ac_power/state", client.SensorStateTopic(domain.SENSOR_ID_AC_POWER))
	assert.Equal(t, "solax2mqtt/binary_sensor/bridge/state", client.BinarySensorStateTopic(domain.SENSOR_ID_BRIDGE_STATE))
}

func TestHADiscoverySensorTopic(t *testing.T) {
	client := testMQTTClient()

	device := domain.Device{Id: "slx_inverter_abcd1234"}
	sensor := domain.GenericSensor{
		Device:     device,
		Id:         domain.SENSOR_ID_AC_POWER,
		SensorType: domain.SENSOR_TYPE_SENSOR,
	}

	topic := HADiscoverySensorTopic(client.DiscoveryTopic(), sensor)
	assert.Equal(t, "homeassistant/sensor/slx_inverter_abcd1234/ac_power/config", topic)
}

func TestGenericSensorToHADiscoveryMessage(t *testing.T) {
	client := testMQTTClient()

	device := domain.Device{Id: "slx_inverter_abcd1234", Manufacturer: "SolaX Power"}
	sensor := domain.GenericSensor{
		Device:            device,
		Id:                domain.SENSOR_ID_BATTERY_SOC,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              "Battery charge percentage",
		StateClass:        domain.STATE_CLASS_MEASUREMENT,
		DeviceClass:       domain.DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          "uid_slx_inverter_abcd1234_battery_soc",
	}

	msg := GenericSensorToHADiscoveryMessage(client, sensor)
	assert.Equal(t, client.SensorStateTopic(sensor.Id), msg.StateTopic)
	assert.Equal(t, client.BridgeStateTopic(), msg.AvTopic)
	assert.Equal(t, "mqtt", msg.Platform)
	assert.Equal(t, sensor.UniqueId, msg.UniqueId)
	assert.Equal(t, []string{device.Id}, msg.Device.Id)
	assert.Empty(t, msg.PayloadOn)
}

func TestBridgeSensorToHADiscoveryMessage(t *testing.T) {
	client := testMQTTClient()

	sensor := domain.BridgeSensors(domain.BridgeDevice("solax2mqtt"))[0]

	msg := GenericSensorToHADiscoveryMessage(client, sensor)
	assert.Equal(t, client.BridgeStateTopic(), msg.StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(t, MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
}
