package entity

import (
	"time"

	"github.com/google/uuid"
)

// UnknownDeviceValue fills device metadata that could not be determined.
const UnknownDeviceValue = "unknown"

// DeviceInfo is the best-effort client description attached to a session.
type DeviceInfo struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
	UserAgent      string
	IPAddress      string
}

// Session is a logged-in device. Its existence is what keeps a bearer credential alive.
type Session struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Device    DeviceInfo
	ActiveAt  time.Time
	CreatedAt time.Time
}

// ExpiredAt reports whether the session is older than ttl. A zero ttl never expires.
func (s *Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	return now.After(s.CreatedAt.Add(ttl))
}
