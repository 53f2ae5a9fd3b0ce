package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/solax2mqtt/internal/core/domain"
	"github.com/berfenger/solax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const cloudTaskTimeout = 15 * time.Second

type CloudActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   solaxcloud.Reader
	apiToken string
	deviceSN string
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewCloudActor(reader solaxcloud.Reader, apiToken, deviceSN string, logger *zap.Logger) *CloudActor {
	act := &CloudActor{
		reader:   reader,
		apiToken: apiToken,
		deviceSN: deviceSN,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_CLOUD, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *CloudActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CloudActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("cloud@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLOUD,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetRealtimeInfoRequest:
		state.logger.Debug("cloud@default: GetRealtimeInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getRealtimeInfo),
			mapTaskResult[domain.GetRealtimeInfoResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetRealtimeInfoResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudTaskTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.GetDeviceMetadataRequest:
		state.logger.Debug("cloud@default: GetDeviceMetadataRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDeviceMetadata),
			mapTaskResult[domain.GetDeviceMetadataResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDeviceMetadataResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(cloudTaskTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	default:
		state.logger.Debug("cloud@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CloudActor) WaitingCloud(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("cloud@WaitingCloud backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("cloud@WaitingCloud stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *CloudActor) getRealtimeInfo() (*domain.GetRealtimeInfoResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cloudTaskTimeout)
	defer cancel()

	info, err := a.reader.GetRealtimeInfo(ctx, a.apiToken, a.deviceSN)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetRealtimeInfoResponse{
		Info: info,
	}, nil
}

func (a *CloudActor) getDeviceMetadata() (*domain.GetDeviceMetadataResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cloudTaskTimeout)
	defer cancel()

	metadata, err := a.reader.GetDeviceMetadata(ctx, a.apiToken, a.deviceSN)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetDeviceMetadataResponse{
		Metadata: metadata,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
