package auth

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
)

// LoginResult is returned by every successful sign-in path.
type LoginResult struct {
	Token     string         `json:"token"`
	User      entity.Summary `json:"user"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// OtpIssued describes a freshly persisted one-time code.
type OtpIssued struct {
	Email     string
	Code      string
	Token     string
	ExpiresAt time.Time
}
