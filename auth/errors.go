package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Messages returned to clients in place of raw provider or parser errors.
const (
	MsgInvalidCredentials = "Invalid email or password. Please check your credentials and try again."
	MsgEmailNotConfirmed  = "Please confirm your email address before signing in."
	MsgAlreadyRegistered  = "An account with this email already exists. Try signing in instead."
	MsgSessionExpired     = "Your session has expired. Please sign in again."
	MsgRateLimited        = "Too many attempts. Please wait a moment and try again."
	MsgGeneric            = "Authentication failed. Please try again."
)

var friendly = []struct {
	substr string
	msg    string
}{
	{"invalid login credentials", MsgInvalidCredentials},
	{"invalid credentials", MsgInvalidCredentials},
	{"email not confirmed", MsgEmailNotConfirmed},
	{"user already registered", MsgAlreadyRegistered},
	{"already registered", MsgAlreadyRegistered},
	{"token is expired", MsgSessionExpired},
	{"session expired", MsgSessionExpired},
	{"rate limit", MsgRateLimited},
	{"too many requests", MsgRateLimited},
}

// FriendlyMessage maps a known auth error to text fit for end users. Unknown
// errors get a generic message.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return MsgSessionExpired
	}
	text := strings.ToLower(err.Error())
	for _, f := range friendly {
		if strings.Contains(text, f.substr) {
			return f.msg
		}
	}
	return MsgGeneric
}
