package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"sidesa.id/internal/obs"
)

const (
	defaultDeviceType = "desktop"
	defaultDeviceInfo = "unknown"
)

// Tracker records login events and keeps last-activity timestamps current.
type Tracker struct {
	sessions SessionStore
	now      func() time.Time
}

// NewTracker constructs a Tracker over the session store.
func NewTracker(sessions SessionStore) *Tracker {
	return &Tracker{sessions: sessions, now: time.Now}
}

// RecordLogin inserts a session for the identity and returns it. Each login
// is an independent insert; simultaneous logins from two devices yield two
// sessions.
func (t *Tracker) RecordLogin(ctx context.Context, identityID int64, deviceType, deviceInfo string) (*Session, error) {
	if deviceType == "" {
		deviceType = defaultDeviceType
	}
	if deviceInfo == "" {
		deviceInfo = defaultDeviceInfo
	}
	now := t.now().UTC()
	s := &Session{
		ID:           newSessionID(identityID, now),
		IdentityID:   identityID,
		DeviceType:   deviceType,
		DeviceInfo:   deviceInfo,
		LoginTime:    now,
		LastActivity: now,
		Active:       true,
	}
	if err := t.sessions.Insert(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Touch updates last_activity on the identity's active sessions. It is
// best-effort: a failed write is counted and logged but never fails the
// operation that triggered it.
func (t *Tracker) Touch(ctx context.Context, identityID int64) {
	if err := t.sessions.TouchActiveByIdentity(ctx, identityID, t.now().UTC()); err != nil {
		obs.IncSessionTouchFailure()
		obs.LogRequest(map[string]any{
			"ts":          time.Now().UTC().Format(time.RFC3339Nano),
			"level":       "warn",
			"msg":         "session_touch_failed",
			"identity_id": identityID,
			"error":       err.Error(),
		})
	}
}

// newSessionID keeps the session_<identity>_<unix-ms> shape and appends a
// random suffix so two logins in the same millisecond cannot collide.
func newSessionID(identityID int64, now time.Time) string {
	var entropy [4]byte
	_, _ = rand.Read(entropy[:])
	return fmt.Sprintf("session_%d_%d_%s", identityID, now.UnixMilli(), hex.EncodeToString(entropy[:]))
}
