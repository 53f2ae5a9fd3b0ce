package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/solax2mqtt/internal/config"
	"github.com/berfenger/solax2mqtt/internal/core/domain"
	"github.com/berfenger/solax2mqtt/internal/core/events"
	. "github.com/berfenger/solax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollerActor drives the refresh cycle. It asks the cloud actor for
// telemetry on a fixed interval, classifies the outcome, keeps the latest
// successful snapshot and publishes changed sensor values to the event
// stream.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	cloudActor  *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream

	snapshot      *solaxcloud.RealtimeInfo
	lastResult    domain.RefreshResult
	lastPublished map[string]string

	logger *zap.Logger
}

type pollerTick struct {
}

func NewPollerActor(config *config.Config, cloudActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:        config,
		cloudActor:    cloudActor,
		behavior:      actor.NewBehavior(),
		stash:         &Stash{},
		logger:        ActorLogger(domain.ACTOR_ID_POLLER, logger),
		eventStream:   eventStream,
		lastPublished: make(map[string]string),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)

		// first refresh must succeed before serving anything
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetRealtimeInfoRequest{}, 20*time.Second), func(err error) any {
			return domain.GetRealtimeInfoResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingFirstRefresh)
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingFirstRefresh(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetRealtimeInfoResponse:
		if msg.HasResponseError() {
			state.logger.Error("poller@waitingFirst first refresh failed", zap.Error(msg.GetResponseError()))
			panic(msg.GetResponseError())
		}
		state.logger.Debug("poller@waitingFirst GetRealtimeInfoResponse")
		state.applySnapshot(msg.Info)
		state.scheduleTick(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@waitingFirst: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: state.lastResult != domain.RefreshAuthFailed,
			State:   state.lastResult.String(),
		})
	case domain.GetSnapshotRequest:
		state.logger.Debug("poller@default: GetSnapshotRequest")
		ForRequest(msg).Respond(ctx, domain.GetSnapshotResponse{
			Snapshot:   state.snapshot,
			LastResult: state.lastResult,
		})
	case pollerTick:
		state.logger.Debug("poller@default tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetRealtimeInfoRequest{}, 20*time.Second), func(err error) any {
			return domain.GetRealtimeInfoResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		// schedule next tick
		state.scheduleTick(ctx)
		state.behavior.BecomeStacked(state.WaitingRefresh)
	default:
		state.logger.Debug("poller@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingRefresh(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetRealtimeInfoResponse:
		if msg.HasResponseError() {
			state.classifyFailure(msg.GetResponseError())
		} else {
			state.logger.Debug("poller@waiting GetRealtimeInfoResponse")
			state.applySnapshot(msg.Info)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) scheduleTick(ctx actor.Context) {
	state.scheduler.RequestOnce(time.Duration(state.config.SolaxCloud.PollIntervalMillis)*time.Millisecond, ctx.Self(), pollerTick{})
}

// applySnapshot replaces the cached snapshot and publishes events for
// sensors whose rendered value changed since the last publish. Repeated
// identical uploads produce no MQTT traffic.
func (state *PollerActor) applySnapshot(info *solaxcloud.RealtimeInfo) {
	state.snapshot = info
	state.lastResult = domain.RefreshUpdated

	evs := events.RealtimeInfoToUpdateEvents(info)
	for _, ev := range evs {
		if fev, ok := ev.(domain.FloatSensorUpdateEvent); ok {
			rendered := fmt.Sprintf(fmt.Sprintf("%%.%df", fev.Decimals), fev.Value)
			if state.lastPublished[fev.Id] == rendered {
				continue
			}
			state.lastPublished[fev.Id] = rendered
		}
		state.eventStream.Publish(ev)
	}
}

// classifyFailure maps a refresh error to its refresh result. The cached
// snapshot is kept as is, consumers keep serving the last good data.
func (state *PollerActor) classifyFailure(err error) {
	if solaxcloud.IsAuthError(err) {
		state.lastResult = domain.RefreshAuthFailed
		state.logger.Error("poller@waiting refresh rejected", zap.Error(err))
	} else {
		state.lastResult = domain.RefreshTransientFailure
		state.logger.Warn("poller@waiting refresh failed", zap.Error(err))
	}
}
