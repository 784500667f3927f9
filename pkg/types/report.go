package types

import "time"

// Granularity is the resolution of a persisted report row.
type Granularity string

const (
	GranularityQuarterHour Granularity = "quarterHour"
	GranularityHour        Granularity = "hour"
	GranularityDay         Granularity = "day"
	GranularityMonth       Granularity = "month"
)

// ParseGranularity returns the Granularity for the given name.
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case GranularityQuarterHour, GranularityHour, GranularityDay, GranularityMonth:
		return Granularity(s), true
	}
	return "", false
}

// ReportParams are the calendar parameters of a Powerfox report request.
// Year is always required, the rest are optional and nil when not given.
type ReportParams struct {
	Year       int  `json:"year"`
	Month      *int `json:"month,omitempty"`
	Day        *int `json:"day,omitempty"`
	FromHour   *int `json:"fromHour,omitempty"`
	FromMinute *int `json:"fromMinute,omitempty"`
}

// HasDay returns true when year, month and day are all set.
func (p ReportParams) HasDay() bool {
	return p.Year != 0 && p.Month != nil && p.Day != nil
}

// HasFromHour returns true when a start hour applies, which requires a full
// date.
func (p ReportParams) HasFromHour() bool {
	return p.HasDay() && p.FromHour != nil && *p.FromHour >= 0
}

// NormalizedEntry is one merged consumption/feed-in record. Values are in kWh
// and nil when the vendor did not provide them.
type NormalizedEntry struct {
	Timestamp int64    `json:"timestamp"`
	KWh       *float64 `json:"kWh"`
	APlus     *float64 `json:"aPlus"`
	AMinus    *float64 `json:"aMinus"`
}

// Time returns the entry timestamp in the given location.
func (e NormalizedEntry) Time(loc *time.Location) time.Time {
	return time.Unix(e.Timestamp, 0).In(loc)
}

// DailyStat aggregates the entries of a single UTC day. AvgWatt, MaxWatt and
// MinWatt are computed over kWh values.
type DailyStat struct {
	Date      string  `json:"date"`
	Count     int     `json:"count"`
	SumKWh    float64 `json:"sumKWh"`
	AvgWatt   float64 `json:"avgWatt"`
	MaxWatt   float64 `json:"maxWatt"`
	MinWatt   float64 `json:"minWatt"`
	AvgAPlus  float64 `json:"avgAPlus"`
	AvgAMinus float64 `json:"avgAMinus"`
}

// QuarterHourValue is a persisted 15 minute bucket. Minute is one of 0, 15,
// 30 or 45.
type QuarterHourValue struct {
	DeviceID  string    `json:"deviceId"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Day       int       `json:"day"`
	Hour      int       `json:"hour"`
	Minute    int       `json:"minute"`
	Timestamp int64     `json:"timestamp"`
	Watt      *float64  `json:"watt"`
	APlus     *float64  `json:"aPlus"`
	AMinus    *float64  `json:"aMinus"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HourValue is a persisted hourly bucket.
type HourValue struct {
	DeviceID  string    `json:"deviceId"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Day       int       `json:"day"`
	Hour      int       `json:"hour"`
	Timestamp int64     `json:"timestamp"`
	KWh       *float64  `json:"kWh"`
	APlus     *float64  `json:"aPlus"`
	AMinus    *float64  `json:"aMinus"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DayValue is a persisted daily bucket.
type DayValue struct {
	DeviceID  string    `json:"deviceId"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Day       int       `json:"day"`
	Timestamp int64     `json:"timestamp"`
	KWh       *float64  `json:"kWh"`
	APlus     *float64  `json:"aPlus"`
	AMinus    *float64  `json:"aMinus"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MonthValue is a persisted monthly bucket.
type MonthValue struct {
	DeviceID  string    `json:"deviceId"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp int64     `json:"timestamp"`
	KWh       *float64  `json:"kWh"`
	APlus     *float64  `json:"aPlus"`
	AMinus    *float64  `json:"aMinus"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PeriodQuery selects persisted rows of a device by calendar fields. Month
// and Day are optional.
type PeriodQuery struct {
	Year  int
	Month *int
	Day   *int
}
