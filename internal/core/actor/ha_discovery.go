package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/solax2mqtt/internal/config"
	"github.com/berfenger/solax2mqtt/internal/core/domain"
	"github.com/berfenger/solax2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the sensor catalog to Home Assistant once the
// cloud and MQTT actors are healthy. It builds the catalog from the first
// snapshot, so only metrics the inverter actually reports get an entity.
type HADiscoveryActor struct {
	config            *config.Config
	behavior          actor.Behavior
	stash             *actorutil.Stash
	cloudActor        *actor.PID
	mqttActor         *actor.PID
	pollerActor       *actor.PID
	cloudActorHealthy bool
	mqttActorHealthy  bool
	healthyRecv       int
	metadata          *domain.GetDeviceMetadataResponse

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, cloudActor, mqttActor, pollerActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		cloudActor:  cloudActor,
		mqttActor:   mqttActor,
		pollerActor: pollerActor,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// check cloud and MQTT actor healthy
		state.healthyRecv = 0
		state.cloudActorHealthy = false
		state.mqttActorHealthy = false
		// cloud actor request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CLOUD,
				Healthy: false,
			}
		})
		// MQTT actor request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_CLOUD:
				state.cloudActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.cloudActorHealthy && state.mqttActorHealthy {
				// ask cloud for the device metadata
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetDeviceMetadataRequest{}, 20*time.Second), func(err error) any {
					return domain.GetDeviceMetadataResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingMetadataReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Cloud Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingMetadataReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceMetadataResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@metadata: GetDeviceMetadataResponse", zap.Any("response", msg))
		state.metadata = &msg

		// ask the poller for the current snapshot to shape the catalog
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.pollerActor, domain.GetSnapshotRequest{}, 20*time.Second), func(err error) any {
			return domain.GetSnapshotResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingSnapshotReceive)
	default:
		state.logger.Debug("hadiscovery@metadata: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingSnapshotReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetSnapshotResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		if msg.Snapshot == nil {
			panic(errors.New("no snapshot available for discovery"))
		}
		state.logger.Debug("hadiscovery@snapshot: GetSnapshotResponse")

		var sensors []domain.GenericSensor

		bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
		bridgeSensors := domain.BridgeSensors(bridgeDevice)
		sensors = append(sensors, bridgeSensors...)

		inverterDevice := domain.InverterDevice(state.metadata.Metadata)
		inverterDevice.ViaDevice = bridgeDevice.Id
		inverterSensors := domain.InverterSensors(inverterDevice, msg.Snapshot)
		for i := range inverterSensors {
			if i > 0 {
				inverterSensors[i].Device = domain.IdDevice(inverterDevice)
			}
			sensors = append(sensors, inverterSensors[i])
		}

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: sensors,
		})
		state.behavior.Become(state.Done)
	default:
		state.logger.Debug("hadiscovery@snapshot: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}
