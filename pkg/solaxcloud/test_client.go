package solaxcloud

import (
	"context"
	"sync"
)

func CreateTestReader() *TestReader {
	return &TestReader{}
}

// TestReader is an in-memory Reader for actor tests. Canned responses and
// the forced error can be swapped while the reader is in use.
type TestReader struct {
	mu       sync.Mutex
	Info     *RealtimeInfo
	Metadata *DeviceMetadata
	Err      error

	RealtimeCalls int
	MetadataCalls int
}

func (r *TestReader) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

func (r *TestReader) GetRealtimeInfo(ctx context.Context, apiToken, deviceSN string) (*RealtimeInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RealtimeCalls++
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Info != nil {
		return r.Info, nil
	}
	return &RealtimeInfo{
		InverterSN:     "SX123456789",
		SN:             deviceSN,
		UploadTime:     "2024-05-11 12:00:05",
		InverterStatus: "102",
		Metrics: map[string]*float64{
			MetricACPower:      value(1520),
			MetricFeedinPower:  value(-240.5),
			MetricBatteryPower: value(830),
			MetricPowerDC1:     value(1210),
			MetricPowerDC2:     value(460),
			MetricPowerDC3:     nil,
			MetricPowerDC4:     nil,
			MetricYieldToday:   value(7.3),
			MetricSOC:          value(64),
		},
	}, nil
}

func (r *TestReader) GetDeviceMetadata(ctx context.Context, apiToken, deviceSN string) (*DeviceMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MetadataCalls++
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Metadata != nil {
		return r.Metadata, nil
	}
	return &DeviceMetadata{
		SN:         deviceSN,
		InverterSN: "SX123456789",
	}, nil
}

func value(v float64) *float64 {
	return &v
}
