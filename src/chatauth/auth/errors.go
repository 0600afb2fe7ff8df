package auth

import (
	"errors"
	"fmt"
)

// User-visible messages. Nothing else is returned to callers.
const (
	MsgInvalidRequest     = "Improperly formatted request."
	MsgSignatureInvalid   = "Signed message could not be verified"
	MsgResolutionFailed   = "Realm membership could not be resolved"
	MsgProvisioningFailed = "Chat provisioning failed"
	MsgTokenFailed        = "Chat token could not be issued"
)

var ErrSignature = errors.New("signed message could not be verified")

// ValidationError names the first request field that failed its shape check.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
