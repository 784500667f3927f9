package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/foxwatt/foxwatt/pkg/types"
)

// ValidationError is returned for a request the client has to correct.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// OptionalInt is a request integer that may be missing. Browsers send form
// values as strings so numeric strings are accepted as well.
type OptionalInt struct {
	Value int
	Set   bool
}

// Int returns a set OptionalInt.
func Int(v int) OptionalInt {
	return OptionalInt{Value: v, Set: true}
}

func (o *OptionalInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*o = OptionalInt{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*o = OptionalInt{}
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		*o = Int(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Int(v)
	return nil
}

func (o OptionalInt) ptr() *int {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// Request is the body of a timespan report request.
type Request struct {
	DeviceID   string      `json:"deviceId"`
	Year       OptionalInt `json:"year"`
	Month      OptionalInt `json:"month"`
	Day        OptionalInt `json:"day"`
	FromHour   OptionalInt `json:"fromHour"`
	FromMinute OptionalInt `json:"fromMinute"`
}

// Validate returns a *ValidationError describing the first problem found.
func (r Request) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return invalid("deviceId is required")
	}
	if !r.Year.Set || r.Year.Value == 0 {
		return invalid("year is required")
	}
	if r.Day.Set && !r.Month.Set {
		return invalid("day requires month to be set")
	}
	if r.Month.Set && !r.Year.Set {
		return invalid("month requires year to be set")
	}
	if (r.FromHour.Set || r.FromMinute.Set) && !(r.Month.Set && r.Day.Set) {
		return invalid("fromHour requires year, month, and day to be set")
	}
	if r.Year.Value < 1 || r.Year.Value > 9999 {
		return invalid("year must be between 1 and 9999")
	}
	if r.Month.Set && (r.Month.Value < 1 || r.Month.Value > 12) {
		return invalid("month must be between 1 and 12")
	}
	if r.Day.Set {
		if r.Day.Value < 1 || r.Day.Value > 31 {
			return invalid("day must be between 1 and 31")
		}
		if r.Day.Value > daysIn(r.Year.Value, time.Month(r.Month.Value)) {
			return invalid("day %d does not exist in %d-%02d", r.Day.Value, r.Year.Value, r.Month.Value)
		}
	}
	if r.FromHour.Set && (r.FromHour.Value < 0 || r.FromHour.Value > 23) {
		return invalid("fromHour must be between 0 and 23")
	}
	if r.FromMinute.Set && (r.FromMinute.Value < 0 || r.FromMinute.Value > 59) {
		return invalid("fromMinute must be between 0 and 59")
	}
	return nil
}

// Params converts a validated request to report parameters.
func (r Request) Params() types.ReportParams {
	return types.ReportParams{
		Year:       r.Year.Value,
		Month:      r.Month.ptr(),
		Day:        r.Day.ptr(),
		FromHour:   r.FromHour.ptr(),
		FromMinute: r.FromMinute.ptr(),
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
