package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testSnapshot(t *testing.T) *solaxcloud.RealtimeInfo {
	t.Helper()
	info, err := solaxcloud.CreateTestReader().GetRealtimeInfo(context.Background(), "token", "SWXXXXXXXX")
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func TestCollectorDescribe(t *testing.T) {
	collector := NewCollector(func() (*solaxcloud.RealtimeInfo, error) {
		return nil, nil
	}, zap.NewNop())

	descCh := make(chan *prometheus.Desc, 20)
	go func() {
		collector.Describe(descCh)
		close(descCh)
	}()

	count := 0
	for range descCh {
		count++
	}
	assert.Equal(t, 7, count)
}

func TestCollectorCollect(t *testing.T) {
	snapshot := testSnapshot(t)
	collector := NewCollector(func() (*solaxcloud.RealtimeInfo, error) {
		return snapshot, nil
	}, zap.NewNop())

	metricCh := make(chan prometheus.Metric, 100)
	go func() {
		collector.Collect(metricCh)
		close(metricCh)
	}()

	count := 0
	for range metricCh {
		count++
	}

	// scrapeSuccess + acPower + gridPower + batteryPower + dc1 + dc2 +
	// yieldToday + batterySOC. dc3/dc4 are not reported by the test device.
	assert.Equal(t, 8, count)
}

func TestCollectorCollectFetchError(t *testing.T) {
	collector := NewCollector(func() (*solaxcloud.RealtimeInfo, error) {
		return nil, errors.New("snapshot unavailable")
	}, zap.NewNop())

	metricCh := make(chan prometheus.Metric, 10)
	go func() {
		collector.Collect(metricCh)
		close(metricCh)
	}()

	var metrics []prometheus.Metric
	for m := range metricCh {
		metrics = append(metrics, m)
	}

	// only scrapeSuccess=0
	assert.Len(t, metrics, 1)
}
