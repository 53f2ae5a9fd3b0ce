package domain

import "github.com/berfenger/solax2mqtt/pkg/solaxcloud"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_CLOUD        = "cloud"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// RefreshResult classifies the outcome of one poll cycle.
type RefreshResult int

const (
	RefreshUpdated RefreshResult = iota
	RefreshAuthFailed
	RefreshTransientFailure
)

func (r RefreshResult) String() string {
	switch r {
	case RefreshUpdated:
		return "updated"
	case RefreshAuthFailed:
		return "auth_failed"
	case RefreshTransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

type GetRealtimeInfoRequest struct {
	ActorRequestMixIn
}

type GetRealtimeInfoResponse struct {
	ActorResponseMixIn
	Info *solaxcloud.RealtimeInfo
}

type GetDeviceMetadataRequest struct {
	ActorRequestMixIn
}

type GetDeviceMetadataResponse struct {
	ActorResponseMixIn
	Metadata *solaxcloud.DeviceMetadata
}

// GetSnapshotRequest asks the poll coordinator for the latest successfully
// fetched telemetry. Consumers must treat the returned snapshot as
// read-only.
type GetSnapshotRequest struct {
	ActorRequestMixIn
}

type GetSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot   *solaxcloud.RealtimeInfo
	LastResult RefreshResult
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
