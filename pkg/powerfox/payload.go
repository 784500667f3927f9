package powerfox

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/foxwatt/foxwatt/pkg/types"
)

// ReportPayload is the body of the report endpoint. Either series may be
// missing.
type ReportPayload struct {
	Consumption *ReportSeries `json:"consumption"`
	FeedIn      *ReportSeries `json:"feedIn"`
}

// ReportSeries holds the values of one direction.
type ReportSeries struct {
	ReportValues []ReportValue `json:"reportValues"`
}

// ReportValue is a single raw report value. The vendor uses several names for
// the same figure depending on the granularity, so every known name is kept
// and resolved later.
type ReportValue struct {
	Timestamp         int64    `json:"timestamp"`
	Delta             *float64 `json:"delta"`
	Consumption       *float64 `json:"consumption"`
	FeedIn            *float64 `json:"feedIn"`
	DeltaKiloWattHour *float64 `json:"deltaKiloWattHour"`
}

// ConsumptionValues returns the consumption values or nil.
func (p ReportPayload) ConsumptionValues() []ReportValue {
	if p.Consumption == nil {
		return nil
	}
	return p.Consumption.ReportValues
}

// FeedInValues returns the feed-in values or nil.
func (p ReportPayload) FeedInValues() []ReportValue {
	if p.FeedIn == nil {
		return nil
	}
	return p.FeedIn.ReportValues
}

type deviceResponse struct {
	DeviceID               string `json:"deviceId"`
	DeviceIDSnake          string `json:"device_id"`
	Name                   string `json:"name"`
	AccountAssociatedSince int64  `json:"accountAssociatedSince"`
	MainDevice             bool   `json:"mainDevice"`
	Prosumer               bool   `json:"prosumer"`
	Division               int    `json:"division"`
}

func (d deviceResponse) device() types.Device {
	id := d.DeviceID
	if id == "" {
		id = d.DeviceIDSnake
	}
	return types.Device{
		DeviceID:               id,
		Name:                   d.Name,
		AccountAssociatedSince: d.AccountAssociatedSince,
		MainDevice:             d.MainDevice,
		Prosumer:               d.Prosumer,
		Division:               d.Division,
	}
}

// decodeDevices accepts either a list of devices or a single device object.
func decodeDevices(body []byte) ([]types.Device, error) {
	var raw []deviceResponse
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
	} else {
		var single deviceResponse
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, err
		}
		raw = append(raw, single)
	}
	devices := make([]types.Device, 0, len(raw))
	for _, r := range raw {
		d := r.device()
		if d.DeviceID == "" {
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

type currentResponse struct {
	Timestamp    int64    `json:"timestamp"`
	Outdated     bool     `json:"outdated"`
	Watt         *float64 `json:"watt"`
	KiloWattHour *float64 `json:"kiloWattHour"`
	APlus        *float64 `json:"aPlus"`
	APlusSnake   *float64 `json:"a_Plus"`
	APlusHT      *float64 `json:"aPlusHT"`
	APlusHTSnake *float64 `json:"a_Plus_HT"`
	APlusNT      *float64 `json:"aPlusNT"`
	APlusNTSnake *float64 `json:"a_Plus_NT"`
	AMinus       *float64 `json:"aMinus"`
	AMinusSnake  *float64 `json:"a_Minus"`
}

func firstSet(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func (c currentResponse) reading(deviceID string) types.CurrentReading {
	return types.CurrentReading{
		DeviceID:     deviceID,
		Timestamp:    c.Timestamp,
		Outdated:     c.Outdated,
		Watt:         c.Watt,
		KiloWattHour: c.KiloWattHour,
		APlus:        firstSet(c.APlus, c.APlusSnake),
		APlusHT:      firstSet(c.APlusHT, c.APlusHTSnake),
		APlusNT:      firstSet(c.APlusNT, c.APlusNTSnake),
		AMinus:       firstSet(c.AMinus, c.AMinusSnake),
	}
}

// reportQuery returns the query parameters of a report request.
func reportQuery(p types.ReportParams) map[string]string {
	q := map[string]string{"year": strconv.Itoa(p.Year)}
	if p.Month != nil {
		q["month"] = strconv.Itoa(*p.Month)
	}
	if p.Day != nil {
		q["day"] = strconv.Itoa(*p.Day)
	}
	if p.FromHour != nil {
		q["fromhour"] = strconv.Itoa(*p.FromHour)
	}
	return q
}
