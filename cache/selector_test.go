package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type scheduleState struct {
	ClinicID string
	Day      string
	Slots    int
	Revision int
}

func TestSelectorRecomputesOnDependencyChange(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	var combines atomic.Int64
	summary := NewSelector(c, "schedule-summary",
		[]DepFunc[scheduleState]{
			func(s scheduleState) any { return s.ClinicID },
			func(s scheduleState) any { return s.Day },
		},
		func(vals []any) (string, error) {
			combines.Add(1)
			return vals[0].(string) + "/" + vals[1].(string), nil
		},
	)

	state := scheduleState{ClinicID: "main", Day: "mon", Slots: 8}
	v, err := summary(ctx, state)
	assert.NoError(t, err)
	assert.Equal(t, "main/mon", v)
	assert.Equal(t, int64(1), combines.Load())

	// Changing a field no dependency reads does not recompute.
	state.Slots = 12
	state.Revision++
	v, err = summary(ctx, state)
	assert.NoError(t, err)
	assert.Equal(t, "main/mon", v)
	assert.Equal(t, int64(1), combines.Load())

	// Changing a dependency output does.
	state.Day = "tue"
	v, err = summary(ctx, state)
	assert.NoError(t, err)
	assert.Equal(t, "main/tue", v)
	assert.Equal(t, int64(2), combines.Load())
}
