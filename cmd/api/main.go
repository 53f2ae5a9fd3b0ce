package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/solax2mqtt/internal/adapter/actor"
	"github.com/berfenger/solax2mqtt/internal/config"
	"github.com/berfenger/solax2mqtt/internal/core/actor"
	"github.com/berfenger/solax2mqtt/internal/server"
	"github.com/berfenger/solax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	defer logger.Sync()

	// check credentials and identify device before anything else
	client := solaxcloud.CreateClient(cfg.SolaxCloud.Endpoint,
		time.Duration(cfg.SolaxCloud.RequestTimeoutMillis)*time.Millisecond, logger)
	identity, err := validateAccount(client, cfg)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	slog.Info("Connected to SolaX Cloud", "device", identity.Title)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, cloudActorProvider(cfg, client, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

// validateAccount checks the configured credentials against the vendor API
// and resolves the device identity.
func validateAccount(client *solaxcloud.Client, cfg *config.Config) (*solaxcloud.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.SolaxCloud.RequestTimeoutMillis)*time.Millisecond+solaxcloud.DefaultLockTimeout)
	defer cancel()

	identity, err := client.ValidateAndIdentify(ctx, cfg.SolaxCloud.APIToken, cfg.SolaxCloud.DeviceSN)
	switch {
	case err == nil:
		return identity, nil
	case errors.Is(err, solaxcloud.ErrInvalidAPIToken):
		return nil, errors.New("invalid API token. get one at https://www.solaxcloud.com")
	case errors.Is(err, solaxcloud.ErrInvalidDeviceSN):
		return nil, errors.New("invalid device serial number. check the registration number of your Pocket WiFi module")
	default:
		var connErr *solaxcloud.ConnectionError
		if errors.As(err, &connErr) {
			return nil, fmt.Errorf("cannot connect to SolaX Cloud: %s", connErr.Error())
		}
		slog.Error("unexpected error validating account", "error", err)
		return nil, errors.New("unexpected error validating account")
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => SOLAX2MQTT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SOLAX2MQTT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("solax2mqtt")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check required params and bounds
	if cfg.SolaxCloud.APIToken == "" {
		return nil, errors.New("config param solax_cloud.api_token is required")
	}
	if cfg.SolaxCloud.DeviceSN == "" {
		return nil, errors.New("config param solax_cloud.device_sn is required")
	}
	if cfg.SolaxCloud.PollIntervalMillis < 1000 {
		return nil, errors.New("config param solax_cloud.poll_interval_millis should be >= 1000")
	}
	if cfg.SolaxCloud.RequestTimeoutMillis < 1000 {
		return nil, errors.New("config param solax_cloud.request_timeout_millis should be >= 1000")
	}

	return &cfg, nil
}

func cloudActorProvider(cfg *config.Config, reader solaxcloud.Reader, logger *zap.Logger) actor.CloudActorProvider {
	return func() *adactor.CloudActor {
		return adactor.NewCloudActor(reader, cfg.SolaxCloud.APIToken, cfg.SolaxCloud.DeviceSN, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "solax2mqtt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("solax_cloud.endpoint", solaxcloud.DefaultEndpoint)
	viper.SetDefault("solax_cloud.poll_interval_millis", 10000)
	viper.SetDefault("solax_cloud.request_timeout_millis", 10000)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.SolaxCloud.APIToken = "*redacted*"
	slog.Info("Using", "config", cfg)
}
