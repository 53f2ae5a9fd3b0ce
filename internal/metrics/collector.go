package metrics

import (
	"errors"
	"time"

	"github.com/berfenger/solax2mqtt/internal/core/domain"
	"github.com/berfenger/solax2mqtt/pkg/solaxcloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// SnapshotFunc returns the latest telemetry snapshot.
type SnapshotFunc func() (*solaxcloud.RealtimeInfo, error)

// Collector implements prometheus.Collector over the poller's snapshot
// cache. Each scrape serves the latest successful refresh, it never hits
// the vendor API directly.
type Collector struct {
	fetch  SnapshotFunc
	logger *zap.Logger

	acPower       *prometheus.Desc
	gridPower     *prometheus.Desc
	batteryPower  *prometheus.Desc
	pvPower       *prometheus.Desc
	yieldToday    *prometheus.Desc
	batterySOC    *prometheus.Desc
	scrapeSuccess *prometheus.Desc
}

func NewCollector(fetch SnapshotFunc, logger *zap.Logger) *Collector {
	return &Collector{
		fetch:  fetch,
		logger: logger,
		acPower: prometheus.NewDesc(
			"solax_ac_power_watts",
			"Inverter AC output power in watts",
			[]string{"inverter_sn"},
			nil,
		),
		gridPower: prometheus.NewDesc(
			"solax_grid_power_watts",
			"Grid power flow in watts (positive=exporting, negative=importing)",
			[]string{"inverter_sn"},
			nil,
		),
		batteryPower: prometheus.NewDesc(
			"solax_battery_power_watts",
			"Battery power flow in watts (positive=charging, negative=discharging)",
			[]string{"inverter_sn"},
			nil,
		),
		pvPower: prometheus.NewDesc(
			"solax_pv_power_watts",
			"Solar string DC power in watts",
			[]string{"inverter_sn", "string"},
			nil,
		),
		yieldToday: prometheus.NewDesc(
			"solax_yield_today_kwh",
			"Solar energy produced today in kilowatt-hours",
			[]string{"inverter_sn"},
			nil,
		),
		batterySOC: prometheus.NewDesc(
			"solax_battery_soc_percent",
			"Battery state of charge in percent",
			[]string{"inverter_sn"},
			nil,
		),
		scrapeSuccess: prometheus.NewDesc(
			"solax_scrape_success",
			"Whether a telemetry snapshot was available",
			nil,
			nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acPower
	ch <- c.gridPower
	ch <- c.batteryPower
	ch <- c.pvPower
	ch <- c.yieldToday
	ch <- c.batterySOC
	ch <- c.scrapeSuccess
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot, err := c.fetch()
	if err != nil || snapshot == nil {
		if err != nil {
			c.logger.Warn("metrics: snapshot fetch failed", zap.Error(err))
		}
		ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 1)

	sn := snapshot.InverterSN

	if v := snapshot.Metric(solaxcloud.MetricACPower); v != nil {
		ch <- prometheus.MustNewConstMetric(c.acPower, prometheus.GaugeValue, *v, sn)
	}
	if v := snapshot.Metric(solaxcloud.MetricFeedinPower); v != nil {
		ch <- prometheus.MustNewConstMetric(c.gridPower, prometheus.GaugeValue, *v, sn)
	}
	if v := snapshot.Metric(solaxcloud.MetricBatteryPower); v != nil {
		ch <- prometheus.MustNewConstMetric(c.batteryPower, prometheus.GaugeValue, *v, sn)
	}

	pvStrings := []struct {
		metric string
		label  string
	}{
		{solaxcloud.MetricPowerDC1, "dc1"},
		{solaxcloud.MetricPowerDC2, "dc2"},
		{solaxcloud.MetricPowerDC3, "dc3"},
		{solaxcloud.MetricPowerDC4, "dc4"},
	}
	for _, pv := range pvStrings {
		if v := snapshot.Metric(pv.metric); v != nil {
			ch <- prometheus.MustNewConstMetric(c.pvPower, prometheus.GaugeValue, *v, sn, pv.label)
		}
	}

	if v := snapshot.Metric(solaxcloud.MetricYieldToday); v != nil {
		ch <- prometheus.MustNewConstMetric(c.yieldToday, prometheus.GaugeValue, *v, sn)
	}
	if v := snapshot.Metric(solaxcloud.MetricSOC); v != nil {
		ch <- prometheus.MustNewConstMetric(c.batterySOC, prometheus.GaugeValue, *v, sn)
	}
}

// ActorSnapshotFunc builds a SnapshotFunc that asks the master actor for
// the cached snapshot.
func ActorSnapshotFunc(context *actor.RootContext, master *actor.PID) SnapshotFunc {
	return func() (*solaxcloud.RealtimeInfo, error) {
		result, err := context.RequestFuture(master, domain.GetSnapshotRequest{}, 2*time.Second).Result()
		if err != nil {
			return nil, err
		}
		resp, ok := result.(domain.GetSnapshotResponse)
		if !ok {
			return nil, errors.New("unexpected snapshot response type")
		}
		if resp.HasResponseError() {
			return nil, resp.GetResponseError()
		}
		return resp.Snapshot, nil
	}
}
