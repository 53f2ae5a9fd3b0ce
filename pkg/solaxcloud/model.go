package solaxcloud

import (
	"encoding/json"
	"fmt"
)

// Metric keys of the getRealtimeInfo.do result object. Depending on the
// inverter model, any of them may be missing or null.
const (
	MetricACPower       = "acpower"
	MetricFeedinPower   = "feedinpower"
	MetricBatteryPower  = "batPower"
	MetricPowerDC1      = "powerdc1"
	MetricPowerDC2      = "powerdc2"
	MetricPowerDC3      = "powerdc3"
	MetricPowerDC4      = "powerdc4"
	MetricYieldToday    = "yieldtoday"
	MetricYieldTotal    = "yieldtotal"
	MetricFeedinEnergy  = "feedinenergy"
	MetricConsumeEnergy = "consumeenergy"
	MetricSOC           = "soc"
)

// RealtimeInfo is the parsed result object of a successful realtime query.
// String fields are lifted out, every numeric field ends up in Metrics.
type RealtimeInfo struct {
	InverterSN     string
	SN             string
	UploadTime     string
	InverterType   string
	InverterStatus string
	Metrics        map[string]*float64
}

// Metric returns the value for key, or nil if the device did not report it.
func (r *RealtimeInfo) Metric(key string) *float64 {
	if r == nil || r.Metrics == nil {
		return nil
	}
	return r.Metrics[key]
}

func (r *RealtimeInfo) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Metrics = make(map[string]*float64, len(fields))
	for key, raw := range fields {
		// null decodes into a string as a no-op, so it has to be caught
		// before the string probe or the metric would vanish from the map.
		if string(raw) == "null" {
			r.Metrics[key] = nil
			continue
		}
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			switch key {
			case "inverterSN":
				r.InverterSN = str
			case "sn":
				r.SN = str
			case "uploadTime":
				r.UploadTime = str
			case "inverterType":
				r.InverterType = str
			case "inverterStatus":
				r.InverterStatus = str
			}
			continue
		}
		var num *float64
		if err := json.Unmarshal(raw, &num); err != nil {
			return fmt.Errorf("field %q is neither string nor number: %w", key, err)
		}
		r.Metrics[key] = num
	}
	return nil
}

func (r RealtimeInfo) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Metrics)+5)
	for key, value := range r.Metrics {
		out[key] = value
	}
	if r.InverterSN != "" {
		out["inverterSN"] = r.InverterSN
	}
	if r.SN != "" {
		out["sn"] = r.SN
	}
	if r.UploadTime != "" {
		out["uploadTime"] = r.UploadTime
	}
	if r.InverterType != "" {
		out["inverterType"] = r.InverterType
	}
	if r.InverterStatus != "" {
		out["inverterStatus"] = r.InverterStatus
	}
	return json.Marshal(out)
}

// DeviceMetadata identifies a registered device. SN is the user-facing
// registration number, InverterSN the vendor's internal inverter serial.
type DeviceMetadata struct {
	SN         string
	InverterSN string
}

// Identity is the result of setup-time credential validation.
type Identity struct {
	Title string
	SN    string
}

// statusEnvelope is the ad-hoc response wrapper of the SolaX Cloud API.
// On success only "success" and "result" are meaningful; on failure the
// outcome is encoded in "code".
type statusEnvelope struct {
	Success   bool            `json:"success"`
	Exception string          `json:"exception"`
	Code      *int            `json:"code"`
	Result    json.RawMessage `json:"result"`
}

const (
	codeInvalidDeviceSN = 0
	codeInvalidAPIToken = 103
)
