package alert

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid alert transition")
	ErrChannelFinal      = errors.New("channel already final")
	// ErrAlreadyResolved is returned by Repo.Save when the stored status
	// cannot become the one being saved.
	ErrAlreadyResolved = errors.New("alert already resolved")
)

func New(id, userID, itemID, productName, currency string, trig Trigger, now time.Time, ttl time.Duration) Alert {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	snap := trig.Snapshot
	if snap.TargetPrice != nil {
		v := *snap.TargetPrice
		snap.TargetPrice = &v
	}
	return Alert{
		ID:          id,
		UserID:      userID,
		ItemID:      itemID,
		ProductName: productName,
		Currency:    currency,
		Type:        trig.Type,
		Priority:    trig.Priority,
		Snapshot:    snap,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusDismissed
}

// CanBecome reports whether a stored status may be overwritten with next.
// Pending goes anywhere, a sent alert may still be dismissed.
func (s Status) CanBecome(next Status) bool {
	return s == next || s == StatusPending || (s == StatusSent && next == StatusDismissed)
}

func (a Alert) IsTerminal() bool { return a.Status.Terminal() }

func (a Alert) Expired(now time.Time) bool { return !now.Before(a.ExpiresAt) }

func (a Alert) Channel(ch Channel) ChannelState {
	if ch == ChannelPush {
		return a.Push
	}
	return a.Email
}

func (a *Alert) setChannel(ch Channel, st ChannelState) {
	if ch == ChannelPush {
		a.Push = st
		return
	}
	a.Email = st
}

// ChannelFinal reports whether ch succeeded or used up its attempts.
func (a Alert) ChannelFinal(ch Channel, maxAttempts int) bool {
	st := a.Channel(ch)
	return st.Sent || st.Attempts >= maxAttempts
}

// PendingChannels returns the enabled channels that may still be attempted.
func (a Alert) PendingChannels(en Enabled, maxAttempts int) []Channel {
	if a.IsTerminal() {
		return nil
	}
	var out []Channel
	for _, ch := range Channels {
		if en.Has(ch) && !a.ChannelFinal(ch, maxAttempts) {
			out = append(out, ch)
		}
	}
	return out
}

// RecordAttempt books one delivery attempt on ch.
func (a Alert) RecordAttempt(ch Channel, sendErr error, now time.Time, maxAttempts int) (Alert, error) {
	if a.IsTerminal() {
		return a, fmt.Errorf("%w: %s alert cannot take attempts", ErrInvalidTransition, a.Status)
	}
	if a.ChannelFinal(ch, maxAttempts) {
		return a, fmt.Errorf("%w: %s", ErrChannelFinal, ch)
	}
	st := a.Channel(ch)
	st.Attempts++
	if sendErr == nil {
		st.Sent = true
		st.SentAt = now
		st.LastError = ""
	} else {
		st.LastError = sendErr.Error()
	}
	a.setChannel(ch, st)
	a.UpdatedAt = now
	return a, nil
}

// Resolve moves a pending alert to sent or failed once every enabled channel
// is final. An alert with no enabled channel is satisfied in-app.
func (a Alert) Resolve(en Enabled, maxAttempts int, now time.Time) Alert {
	if a.IsTerminal() {
		return a
	}
	anySent := false
	anyEnabled := false
	for _, ch := range Channels {
		if !en.Has(ch) {
			continue
		}
		anyEnabled = true
		if !a.ChannelFinal(ch, maxAttempts) {
			return a
		}
		if a.Channel(ch).Sent {
			anySent = true
		}
	}
	if anySent || !anyEnabled {
		a.Status = StatusSent
	} else {
		a.Status = StatusFailed
	}
	a.ResolvedAt = now
	a.UpdatedAt = now
	return a
}

// Dismiss is a user action allowed from pending and sent; repeating it is a no-op.
func (a Alert) Dismiss(now time.Time) (Alert, error) {
	switch a.Status {
	case StatusDismissed:
		return a, nil
	case StatusFailed:
		return a, fmt.Errorf("%w: failed alert cannot be dismissed", ErrInvalidTransition)
	}
	a.Status = StatusDismissed
	a.ResolvedAt = now
	a.UpdatedAt = now
	return a, nil
}

func (a Alert) MarkRead(now time.Time) Alert {
	if a.Read {
		return a
	}
	a.Read = true
	a.ReadAt = now
	a.UpdatedAt = now
	return a
}

func (a Alert) MarkUnread(now time.Time) Alert {
	if !a.Read {
		return a
	}
	a.Read = false
	a.ReadAt = time.Time{}
	a.UpdatedAt = now
	return a
}

// Expire fails a pending alert whose TTL has passed.
func (a Alert) Expire(now time.Time) (Alert, bool) {
	if a.Status != StatusPending || !a.Expired(now) {
		return a, false
	}
	a.Status = StatusFailed
	a.ResolvedAt = now
	a.UpdatedAt = now
	return a, true
}
