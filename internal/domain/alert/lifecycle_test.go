package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0      = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	errSend = errors.New("smtp down")
	both    = Enabled{Email: true, Push: true}
)

func newAlert() Alert {
	return New("a1", "u1", "i1", "Headphones", "USD", Trigger{
		Type:     TypePriceDrop,
		Priority: PriorityMedium,
		Snapshot: Snapshot{PreviousPrice: 100, CurrentPrice: 80, DropAmount: 20, DropPercentage: 20},
	}, t0, 0)
}

func attempt(t *testing.T, a Alert, ch Channel, err error) Alert {
	t.Helper()
	next, recErr := a.RecordAttempt(ch, err, t0.Add(time.Minute), DefaultMaxAttempts)
	require.NoError(t, recErr)
	return next
}

func TestNew(t *testing.T) {
	a := newAlert()
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, t0.Add(DefaultTTL), a.ExpiresAt)
	assert.False(t, a.Read)
	assert.Zero(t, a.Email.Attempts)
}

func TestResolve_PushSatisfiesWhenEmailExhausted(t *testing.T) {
	a := newAlert()
	for i := 0; i < 3; i++ {
		a = attempt(t, a, ChannelEmail, errSend)
	}
	a = attempt(t, a, ChannelPush, nil)

	a = a.Resolve(both, DefaultMaxAttempts, t0.Add(time.Hour))
	assert.Equal(t, StatusSent, a.Status)
	assert.Equal(t, 3, a.Email.Attempts)
	assert.False(t, a.Email.Sent)
	assert.True(t, a.Push.Sent)
	assert.Equal(t, t0.Add(time.Hour), a.ResolvedAt)
}

func TestResolve_AllChannelsExhaustedFails(t *testing.T) {
	a := newAlert()
	for i := 0; i < 3; i++ {
		a = attempt(t, a, ChannelEmail, errSend)
		a = attempt(t, a, ChannelPush, errSend)
	}
	a = a.Resolve(both, DefaultMaxAttempts, t0)
	assert.Equal(t, StatusFailed, a.Status)
}

func TestResolve_WaitsForChannelWithAttemptsLeft(t *testing.T) {
	a := newAlert()
	a = attempt(t, a, ChannelEmail, errSend)
	a = attempt(t, a, ChannelPush, nil)

	a = a.Resolve(both, DefaultMaxAttempts, t0)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, []Channel{ChannelEmail}, a.PendingChannels(both, DefaultMaxAttempts))
}

func TestResolve_DisabledChannelsAreSatisfied(t *testing.T) {
	a := newAlert().Resolve(Enabled{}, DefaultMaxAttempts, t0)
	assert.Equal(t, StatusSent, a.Status)

	b := attempt(t, newAlert(), ChannelEmail, nil).Resolve(Enabled{Email: true}, DefaultMaxAttempts, t0)
	assert.Equal(t, StatusSent, b.Status)
	assert.Zero(t, b.Push.Attempts)
}

func TestRecordAttempt_Caps(t *testing.T) {
	a := newAlert()
	for i := 0; i < 3; i++ {
		a = attempt(t, a, ChannelEmail, errSend)
	}
	_, err := a.RecordAttempt(ChannelEmail, nil, t0, DefaultMaxAttempts)
	assert.ErrorIs(t, err, ErrChannelFinal)
	assert.Equal(t, "smtp down", a.Email.LastError)

	sent := attempt(t, newAlert(), ChannelPush, nil)
	_, err = sent.RecordAttempt(ChannelPush, nil, t0, DefaultMaxAttempts)
	assert.ErrorIs(t, err, ErrChannelFinal)
}

func TestRecordAttempt_TerminalRejects(t *testing.T) {
	a, err := newAlert().Dismiss(t0)
	require.NoError(t, err)
	_, err = a.RecordAttempt(ChannelEmail, nil, t0, DefaultMaxAttempts)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDismiss(t *testing.T) {
	a, err := newAlert().Dismiss(t0)
	require.NoError(t, err)
	assert.Equal(t, StatusDismissed, a.Status)

	again, err := a.Dismiss(t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusDismissed, again.Status)
	assert.Equal(t, t0, again.ResolvedAt, "a repeated dismiss changes nothing")

	sent := newAlert().Resolve(Enabled{}, DefaultMaxAttempts, t0)
	d, err := sent.Dismiss(t0)
	require.NoError(t, err)
	assert.Equal(t, StatusDismissed, d.Status)

	failed := newAlert()
	failed.Status = StatusFailed
	_, err = failed.Dismiss(t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReadFlagIsOrthogonal(t *testing.T) {
	a := newAlert().MarkRead(t0)
	assert.True(t, a.Read)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, t0, a.ReadAt)

	a = a.MarkUnread(t0.Add(time.Minute))
	assert.False(t, a.Read)
	assert.True(t, a.ReadAt.IsZero())

	failed := newAlert()
	failed.Status = StatusFailed
	assert.True(t, failed.MarkRead(t0).Read)
}

func TestExpire(t *testing.T) {
	a := newAlert()
	_, ok := a.Expire(t0.Add(time.Hour))
	assert.False(t, ok)

	exp, ok := a.Expire(a.ExpiresAt)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, exp.Status)

	sent := newAlert().Resolve(Enabled{}, DefaultMaxAttempts, t0)
	_, ok = sent.Expire(sent.ExpiresAt.Add(time.Hour))
	assert.False(t, ok)
}

func TestNew_CopiesTarget(t *testing.T) {
	target := 85.0
	a := New("a", "u", "i", "p", "USD", Trigger{Type: TypeTargetPrice, Snapshot: Snapshot{TargetPrice: &target}}, t0, time.Hour)
	target = 1
	require.NotNil(t, a.Snapshot.TargetPrice)
	assert.Equal(t, 85.0, *a.Snapshot.TargetPrice)
	assert.Equal(t, t0.Add(time.Hour), a.ExpiresAt)
}

func TestStatus_CanBecome(t *testing.T) {
	assert.True(t, StatusPending.CanBecome(StatusSent))
	assert.True(t, StatusPending.CanBecome(StatusPending))
	assert.True(t, StatusSent.CanBecome(StatusDismissed))
	assert.True(t, StatusDismissed.CanBecome(StatusDismissed))

	assert.False(t, StatusDismissed.CanBecome(StatusSent))
	assert.False(t, StatusDismissed.CanBecome(StatusPending))
	assert.False(t, StatusFailed.CanBecome(StatusDismissed))
	assert.False(t, StatusSent.CanBecome(StatusPending))
}
