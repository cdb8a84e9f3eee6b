// Package session stores authenticated sessions. A session binds a sealed
// cookie ID to a principal plus the device metadata it was created from.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"warikan/internal/domain"
)

// Session is one authenticated browser session.
type Session struct {
	ID        string           `json:"id"`
	Principal domain.Principal `json:"principal"`
	Token     string           `json:"token"`
	Device    string           `json:"device,omitempty"`
	IPAddress string           `json:"ip_address,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// New builds a session for a principal. The device label is derived from the
// User-Agent so users can recognize their sessions.
func New(principal domain.Principal, token, userAgent, ip string, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{
		ID:        uuid.NewString(),
		Principal: principal,
		Token:     token,
		Device:    DeviceLabel(userAgent),
		IPAddress: ip,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is past its TTL.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists sessions. Find returns sentinel.ErrNotFound for unknown
// IDs and sentinel.ErrExpired for sessions past their TTL.
type Store interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// DeviceLabel condenses a User-Agent into a short human-readable label like
// "Chrome 120 on Linux". Unknown agents become "unknown device".
func DeviceLabel(rawUA string) string {
	if rawUA == "" {
		return "unknown device"
	}
	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	if browser == "" {
		return "unknown device"
	}
	label := browser
	if version != "" {
		if idx := strings.IndexByte(version, '.'); idx > 0 {
			version = version[:idx]
		}
		label += " " + version
	}
	if os := ua.OS(); os != "" {
		label += " on " + os
	}
	return label
}
