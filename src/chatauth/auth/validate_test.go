package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

const (
	validKey     = "7Ln6PjBbZ3fGJqH5yqwW9NB8AQKdKgqJ3VQpDdVbKJbH"
	validProgram = "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw"
	validRealm   = "DPiH3H3c7t47BMxqTxLsuPQpEC6Kne8GA9VXbxpnZxFE"
)

func validRequest() types.AuthRequest {
	return types.AuthRequest{
		PubKey:  validKey,
		Message: "c2lnbmVkLW1lc3NhZ2U=",
		Realm:   types.RealmRef{GovernanceID: validProgram, PubKey: validRealm},
	}
}

func TestValidate_Accepts(t *testing.T) {
	assert.NoError(t, Validate(validRequest()))
}

func TestValidate_MessagePrefixTolerance(t *testing.T) {
	req := validRequest()
	req.Message = "QUJDRA==" + "!!not base64 at all!!"
	assert.NoError(t, Validate(req), "trailing data after a valid prefix is accepted")

	req.Message = strings.Repeat("A", 500)
	assert.NoError(t, Validate(req), "only the first 200 characters are checked")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *types.AuthRequest)
		field  string
	}{
		{"empty message", func(r *types.AuthRequest) { r.Message = "" }, "message"},
		{"short message", func(r *types.AuthRequest) { r.Message = "abc" }, "message"},
		{"message starts with bad char", func(r *types.AuthRequest) { r.Message = "-abcdef" }, "message"},
		{"pubkey too short", func(r *types.AuthRequest) { r.PubKey = "7Ln6PjBb" }, "pubKey"},
		{"pubkey too long", func(r *types.AuthRequest) { r.PubKey = strings.Repeat("a", 45) }, "pubKey"},
		{"pubkey has 0", func(r *types.AuthRequest) { r.PubKey = "0" + validKey[1:] }, "pubKey"},
		{"pubkey has O", func(r *types.AuthRequest) { r.PubKey = "O" + validKey[1:] }, "pubKey"},
		{"pubkey has l", func(r *types.AuthRequest) { r.PubKey = "l" + validKey[1:] }, "pubKey"},
		{"pubkey trailing data", func(r *types.AuthRequest) { r.PubKey = validKey + "!" }, "pubKey"},
		{"governance id missing", func(r *types.AuthRequest) { r.Realm.GovernanceID = "" }, "realm.governanceId"},
		{"realm has I", func(r *types.AuthRequest) { r.Realm.PubKey = "I" + validRealm[1:] }, "realm.pubKey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := Validate(req)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}
