package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

var (
	c  = MilestoneCompleted
	cu = MilestoneCurrent
	p  = MilestonePending
)

func TestSynthesizeStatusSequence(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		status enums.OrderStatus
		want   []MilestoneState
	}{
		{enums.OrderStatusPending, []MilestoneState{c, c, p, p, p, p, p, p}},
		{enums.OrderStatusConfirmed, []MilestoneState{c, c, cu, p, p, p, p, p}},
		{enums.OrderStatusProcessing, []MilestoneState{c, c, c, cu, p, p, p, p}},
		{enums.OrderStatusShipped, []MilestoneState{c, c, c, c, c, cu, p, p}},
		{enums.OrderStatusDelivered, []MilestoneState{c, c, c, c, c, c, c, c}},
		{enums.OrderStatusCancelled, []MilestoneState{c, c, p, p, p, p, p, p}},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, States(Synthesize(tt.status, created)))
		})
	}
}

func TestSynthesizeOnlyDeliveredCompletesEverything(t *testing.T) {
	created := time.Now()
	for _, status := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusShipped} {
		states := States(Synthesize(status, created))
		assert.Contains(t, states, MilestonePending, status)
	}
}

func TestSynthesizeIsPure(t *testing.T) {
	created := time.Date(2026, 5, 2, 12, 30, 0, 0, time.UTC)
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusProcessing,
		enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusCancelled,
	} {
		assert.Equal(t, Synthesize(status, created), Synthesize(status, created), status)
	}
}

func TestSynthesizeOneStepForward(t *testing.T) {
	created := time.Now()
	before := States(Synthesize(enums.OrderStatusConfirmed, created))
	after := States(Synthesize(enums.OrderStatusProcessing, created))

	var changed []int
	for i := range before {
		if before[i] != after[i] {
			changed = append(changed, i)
		}
	}
	require.Equal(t, []int{2, 3}, changed)
	assert.Equal(t, MilestoneCurrent, before[2])
	assert.Equal(t, MilestoneCompleted, after[2])
	assert.Equal(t, MilestonePending, before[3])
	assert.Equal(t, MilestoneCurrent, after[3])
}

func TestSynthesizeEveryStepKeepsOneCurrentBeforeDelivery(t *testing.T) {
	created := time.Now()
	sequence := []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusShipped}
	for i, status := range sequence {
		states := States(Synthesize(status, created))
		currents := 0
		for _, s := range states {
			if s == MilestoneCurrent {
				currents++
			}
		}
		assert.Equal(t, 1, currents, status)
		if i == 0 {
			continue
		}
		prev := States(Synthesize(sequence[i-1], created))
		for j := range prev {
			if prev[j] == MilestoneCompleted {
				assert.Equal(t, MilestoneCompleted, states[j], "completed never regresses")
			}
			if prev[j] == MilestoneCurrent {
				assert.Equal(t, MilestoneCompleted, states[j])
			}
		}
	}
}

func TestSynthesizeTimestamps(t *testing.T) {
	created := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	milestones := Synthesize(enums.OrderStatusProcessing, created)

	require.NotNil(t, milestones[0].Timestamp)
	assert.Equal(t, created, *milestones[0].Timestamp)
	require.NotNil(t, milestones[3].Timestamp)
	assert.Equal(t, created.Add(2*time.Hour), *milestones[3].Timestamp)
	assert.Nil(t, milestones[3].EstimatedAt)

	last := milestones[len(milestones)-1]
	assert.Equal(t, TagDelivered, last.Tag)
	assert.Nil(t, last.Timestamp)
	require.NotNil(t, last.EstimatedAt)
	assert.Equal(t, created.Add(52*time.Hour), *last.EstimatedAt)
	assert.NotEmpty(t, last.ETAHint)
}
