package report

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/foxwatt/foxwatt/pkg/powerfox"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

// value returns a consumption or feed-in value using the delta field.
func value(ts int64, delta float64) powerfox.ReportValue {
	return powerfox.ReportValue{Timestamp: ts, Delta: &delta}
}

func entry(ts int64, kwh, aPlus, aMinus *float64) types.NormalizedEntry {
	return types.NormalizedEntry{Timestamp: ts, KWh: kwh, APlus: aPlus, AMinus: aMinus}
}
