package session_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/arnforge/modkit/internal/platform/session"
)

func TestTrackerTempBlocksAfterThreeLoginFailures(t *testing.T) {
	tr := session.NewTracker(session.BlockCallbacks{})

	tr.RecordLoginFailure("u1")
	tr.RecordLoginFailure("u1")
	state := tr.RecordLoginFailure("u1")

	assert.Equal(t, session.StateTempBlocked, state)
	assert.True(t, tr.Status("u1").Blocked)
}

func TestTrackerPermBlocksAfterFailuresWhileWasTempBlocked(t *testing.T) {
	mock := clock.NewMock()

	var notified []string

	tr := session.NewTrackerWithClock(session.BlockCallbacks{
		SendAlertEmail: func(userID string, reason string) { notified = append(notified, reason) },
	}, mock)

	tr.RecordLoginFailure("u1")
	tr.RecordLoginFailure("u1")
	tr.RecordLoginFailure("u1") // -> TEMP_BLOCKED, 1h window starts

	mock.Add(time.Hour + time.Minute)
	status := tr.Status("u1") // lazily transitions TEMP_BLOCKED -> WAS_TEMP_BLOCKED
	assert.False(t, status.Blocked)

	tr.RecordLoginFailure("u1")
	tr.RecordLoginFailure("u1")
	state := tr.RecordLoginFailure("u1")

	assert.Equal(t, session.StatePermBlocked, state)
	assert.NotEmpty(t, notified)
}

func TestTrackerSuccessResetsOpenOrWasTempBlocked(t *testing.T) {
	tr := session.NewTracker(session.BlockCallbacks{})

	tr.RecordLoginFailure("u1")
	tr.RecordLoginFailure("u1")
	tr.RecordSuccess("u1")

	status := tr.Status("u1")
	assert.False(t, status.Blocked)
}

func TestTrackerRefreshFailuresPermanentlyBlockAfterThree(t *testing.T) {
	tr := session.NewTracker(session.BlockCallbacks{})

	tr.RecordRefreshFailure("u1")
	tr.RecordRefreshFailure("u1")
	state := tr.RecordRefreshFailure("u1")

	assert.Equal(t, session.StatePermBlocked, state)
	assert.True(t, tr.Status("u1").Permanent)
}

func TestTrackerUnblockClearsState(t *testing.T) {
	tr := session.NewTracker(session.BlockCallbacks{})

	tr.RecordRefreshFailure("u1")
	tr.RecordRefreshFailure("u1")
	tr.RecordRefreshFailure("u1")
	assert.True(t, tr.Status("u1").Blocked)

	tr.Unblock("u1")
	assert.False(t, tr.Status("u1").Blocked)
}
