package auth

import (
	"regexp"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

var (
	// Not anchored at the end: clients that append data after a valid
	// base64 prefix have always been accepted.
	messagePattern = regexp.MustCompile(`^[A-Za-z0-9+/=]{4,200}`)
	pubKeyPattern  = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// Validate checks the shape of every key-like field before any network call.
func Validate(req types.AuthRequest) error {
	switch {
	case !messagePattern.MatchString(req.Message):
		return &ValidationError{Field: "message"}
	case !pubKeyPattern.MatchString(req.PubKey):
		return &ValidationError{Field: "pubKey"}
	case !pubKeyPattern.MatchString(req.Realm.GovernanceID):
		return &ValidationError{Field: "realm.governanceId"}
	case !pubKeyPattern.MatchString(req.Realm.PubKey):
		return &ValidationError{Field: "realm.pubKey"}
	}
	return nil
}
