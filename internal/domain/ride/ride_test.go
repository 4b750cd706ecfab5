package ride

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestNext_FollowsLifecycleGraph tests every legal edge and a few illegal ones
func TestNext_FollowsLifecycleGraph(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		action Action
		to     Status
		ok     bool
	}{
		{"accept requested", StatusRequested, ActionAccept, StatusAccepted, true},
		{"rider cancels requested", StatusRequested, ActionCancelRider, StatusCancelledByRider, true},
		{"rider cancels accepted", StatusAccepted, ActionCancelRider, StatusCancelledByRider, true},
		{"driver cancels accepted", StatusAccepted, ActionCancelDriver, StatusCancelledByDriver, true},
		{"pick up", StatusAccepted, ActionAdvance, StatusPickedUp, true},
		{"depart", StatusPickedUp, ActionAdvance, StatusInTransit, true},
		{"arrive", StatusInTransit, ActionAdvance, StatusCompleted, true},
		{"advance requested", StatusRequested, ActionAdvance, "", false},
		{"driver cancels requested", StatusRequested, ActionCancelDriver, "", false},
		{"cancel after pickup", StatusPickedUp, ActionCancelRider, "", false},
		{"accept twice", StatusAccepted, ActionAccept, "", false},
		{"advance completed", StatusCompleted, ActionAdvance, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, ok := Next(tt.from, tt.action)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.to, to)
		})
	}
}

// TestTerminalStatuses_HaveNoOutgoingEdges tests the terminal set
func TestTerminalStatuses_HaveNoOutgoingEdges(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelledByRider, StatusCancelledByDriver} {
		assert.True(t, s.IsTerminal(), s)
		assert.Empty(t, ActionsFrom(s), s)
	}
	for _, s := range ActiveStatuses {
		assert.False(t, s.IsTerminal(), s)
		assert.NotEmpty(t, ActionsFrom(s), s)
	}
}

// TestTimeline_RecordIsWriteOnce tests that a stamped field never moves
func TestTimeline_RecordIsWriteOnce(t *testing.T) {
	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var tl Timeline

	tl.Record(StatusAccepted, first)
	tl.Record(StatusAccepted, first.Add(time.Hour))

	assert.Equal(t, first, *tl.AcceptedAt)
	assert.Nil(t, tl.RequestedAt)

	tl.Record(StatusCancelledByDriver, first)
	assert.Equal(t, first, *tl.CancelledAt)
}

// TestClone_IsDeep tests that clones share no pointers
func TestClone_IsDeep(t *testing.T) {
	driverID := uuid.New()
	now := time.Now()
	r := &Ride{ID: uuid.New(), DriverID: &driverID, Timeline: Timeline{RequestedAt: &now}}

	c := r.Clone()
	*c.DriverID = uuid.New()
	*c.Timeline.RequestedAt = now.Add(time.Minute)

	assert.Equal(t, driverID, *r.DriverID)
	assert.Equal(t, now, *r.Timeline.RequestedAt)
}

// TestRide_IsParty tests party membership
func TestRide_IsParty(t *testing.T) {
	riderID, driverID := uuid.New(), uuid.New()
	r := &Ride{RiderID: riderID}

	assert.True(t, r.IsParty(riderID))
	assert.False(t, r.IsParty(driverID))
	assert.Len(t, r.Parties(), 1)

	r.DriverID = &driverID
	assert.True(t, r.IsParty(driverID))
	assert.Len(t, r.Parties(), 2)
}
