package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	adactor "github.com/berfenger/solax2mqtt/internal/adapter/actor"
	"github.com/berfenger/solax2mqtt/internal/core/domain"
	"github.com/berfenger/solax2mqtt/internal/util"
	"github.com/berfenger/solax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func spawnPollerWithCloud(t *testing.T, context *actor.RootContext, reader solaxcloud.Reader,
	eventStream *eventstream.EventStream, logger *zap.Logger) *actor.PID {
	t.Helper()

	cloudProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewCloudActor(reader, "token", "SWXXXXXXXX", logger)
	})
	cloudPID := context.Spawn(cloudProps)

	cfg := util.LoadTestConfig()
	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, cloudPID, eventStream, logger)
	})
	return context.Spawn(pollerProps)
}

func TestPollerSnapshotCache(t *testing.T) {

	assert := assert.New(t)

	reader := solaxcloud.CreateTestReader()

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	eventStream := &eventstream.EventStream{}
	pid := spawnPollerWithCloud(t, context, reader, eventStream, logger)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(pid, domain.GetSnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetSnapshotResponse)

	assert.Equal(domain.RefreshUpdated, resp.LastResult)
	if assert.NotNil(resp.Snapshot) {
		acPower := resp.Snapshot.Metric(solaxcloud.MetricACPower)
		if assert.NotNil(acPower) {
			assert.Equal(1520.0, *acPower, "AC power")
		}
	}

	context.Stop(pid)
	as.Shutdown()
}

func TestPollerPublishesSensorEvents(t *testing.T) {

	assert := assert.New(t)

	reader := solaxcloud.CreateTestReader()

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	var mu sync.Mutex
	received := make(map[string]float64)

	eventStream := &eventstream.EventStream{}
	sub := eventStream.Subscribe(func(value any) {
		if ev, ok := value.(domain.FloatSensorUpdateEvent); ok {
			mu.Lock()
			received[ev.Id] = ev.Value
			mu.Unlock()
		}
	})
	defer eventStream.Unsubscribe(sub)

	pid := spawnPollerWithCloud(t, context, reader, eventStream, logger)

	time.Sleep(1 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(1520.0, received[domain.SENSOR_ID_AC_POWER], "AC power event")
	// feedinpower is -240.5: importing from grid
	assert.Equal(240.5, received[domain.SENSOR_ID_GRID_IMPORT_POWER], "grid import event")
	assert.Equal(0.0, received[domain.SENSOR_ID_GRID_EXPORT_POWER], "grid export event")
	// batPower is 830: charging
	assert.Equal(830.0, received[domain.SENSOR_ID_BATTERY_CHARGE_POWER], "battery charge event")
	assert.Equal(0.0, received[domain.SENSOR_ID_BATTERY_DISCHARGE_POWER], "battery discharge event")
	// dc3/dc4 not reported by this device
	_, hasDC3 := received[domain.SENSOR_ID_PV_POWER_DC3]
	assert.False(hasDC3, "no event for missing metric")

	context.Stop(pid)
	as.Shutdown()
}

func TestPollerSuppressesUnchangedValues(t *testing.T) {

	assert := assert.New(t)

	reader := solaxcloud.CreateTestReader()

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	var mu sync.Mutex
	counts := make(map[string]int)

	eventStream := &eventstream.EventStream{}
	sub := eventStream.Subscribe(func(value any) {
		if ev, ok := value.(domain.FloatSensorUpdateEvent); ok {
			mu.Lock()
			counts[ev.Id]++
			mu.Unlock()
		}
	})
	defer eventStream.Unsubscribe(sub)

	cloudProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewCloudActor(reader, "token", "SWXXXXXXXX", logger)
	})
	cloudPID := context.Spawn(cloudProps)

	cfg := util.LoadTestConfig()
	cfg.SolaxCloud.PollIntervalMillis = 200
	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, cloudPID, eventStream, logger)
	})
	pid := context.Spawn(pollerProps)

	// several poll cycles with identical canned data
	time.Sleep(1 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(1, counts[domain.SENSOR_ID_AC_POWER], "unchanged value published once")
	assert.Equal(1, counts[domain.SENSOR_ID_BATTERY_SOC], "unchanged value published once")

	context.Stop(pid)
	as.Shutdown()
}

func TestPollerClassifiesAuthFailure(t *testing.T) {

	assert := assert.New(t)

	reader := solaxcloud.CreateTestReader()

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cloudProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewCloudActor(reader, "token", "SWXXXXXXXX", logger)
	})
	cloudPID := context.Spawn(cloudProps)

	cfg := util.LoadTestConfig()
	cfg.SolaxCloud.PollIntervalMillis = 200
	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, cloudPID, &eventstream.EventStream{}, logger)
	})
	pid := context.Spawn(pollerProps)

	// first refresh succeeds, then the token gets revoked
	time.Sleep(500 * time.Millisecond)
	reader.SetError(solaxcloud.ErrInvalidAPIToken)
	time.Sleep(500 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.GetSnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetSnapshotResponse)

	assert.Equal(domain.RefreshAuthFailed, resp.LastResult)
	// last good snapshot is kept
	assert.NotNil(resp.Snapshot)

	health, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	healthResp := health.(domain.ActorHealthResponse)
	assert.False(healthResp.Healthy, "auth failure is unhealthy")
	assert.Equal("auth_failed", healthResp.State)

	context.Stop(pid)
	as.Shutdown()
}

func TestPollerClassifiesTransientFailure(t *testing.T) {

	assert := assert.New(t)

	reader := solaxcloud.CreateTestReader()

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cloudProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewCloudActor(reader, "token", "SWXXXXXXXX", logger)
	})
	cloudPID := context.Spawn(cloudProps)

	cfg := util.LoadTestConfig()
	cfg.SolaxCloud.PollIntervalMillis = 200
	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, cloudPID, &eventstream.EventStream{}, logger)
	})
	pid := context.Spawn(pollerProps)

	time.Sleep(500 * time.Millisecond)
	reader.SetError(&solaxcloud.ConnectionError{Err: errors.New("dial tcp: connection refused")})
	time.Sleep(500 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.GetSnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetSnapshotResponse)

	assert.Equal(domain.RefreshTransientFailure, resp.LastResult)
	assert.NotNil(resp.Snapshot)

	health, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	healthResp := health.(domain.ActorHealthResponse)
	assert.True(healthResp.Healthy, "transient failure stays healthy")
	assert.Equal("transient_failure", healthResp.State)

	context.Stop(pid)
	as.Shutdown()
}
