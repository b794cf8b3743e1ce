package domain

import (
	"fmt"
	"time"
)

// CodePurpose scopes a one-time code to the single flow it may satisfy.
// A LOGIN code can never complete a PASSWORD_RESET check, even if the numeric
// value happens to collide with a live code for the same subject.
type CodePurpose string

const (
	PurposeLogin         CodePurpose = "LOGIN"
	PurposeRevalidation  CodePurpose = "ACCESS_REVALIDATION"
	PurposePasswordReset CodePurpose = "PASSWORD_RESET"
)

// ParsePurpose validates a purpose at the input boundary.
func ParsePurpose(s string) (CodePurpose, error) {
	switch CodePurpose(s) {
	case PurposeLogin, PurposeRevalidation, PurposePasswordReset:
		return CodePurpose(s), nil
	default:
		return "", fmt.Errorf("unknown code purpose %q", s)
	}
}

// Channel is the out-of-band delivery channel for a one-time code.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// ParseChannel validates a delivery channel at the input boundary.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelSMS:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("unknown delivery channel %q", s)
	}
}

// OneTimeCode is a stored, hashed short numeric code. Several may exist per
// subject; only the most recent unused, unexpired one per purpose is valid.
type OneTimeCode struct {
	ID        string
	Email     string
	Purpose   CodePurpose
	CodeHash  string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
