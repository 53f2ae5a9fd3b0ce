package util

import (
	"github.com/berfenger/solax2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		SolaxCloud: config.SolaxCloudConfig{
			APIToken:             "test-token",
			DeviceSN:             "SWXXXXXXXX",
			PollIntervalMillis:   10000,
			RequestTimeoutMillis: 10000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "solax2mqtt",
		},
		Port: 8080,
	}
}
