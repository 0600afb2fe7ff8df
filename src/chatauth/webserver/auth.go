package webserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/auth"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

type Authenticator interface {
	Authenticate(ctx context.Context, req types.AuthRequest) auth.Outcome
}

type Auth struct {
	authn Authenticator
}

func NewAuth(authn Authenticator) Auth {
	return Auth{authn: authn}
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

// Authenticate exchanges a signed challenge for a chat session token.
func (a Auth) Authenticate(c *gin.Context) {
	var req types.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(auth.MsgInvalidRequest))
		return
	}

	out := a.authn.Authenticate(c.Request.Context(), req)
	status, body := outcomeResponse(out)
	c.JSON(status, body)
}

func outcomeResponse(out auth.Outcome) (int, gin.H) {
	switch out.State {
	case auth.StateTokenIssued:
		return http.StatusOK, gin.H{"chatAuthenticated": true, "streamToken": out.StreamToken}
	case auth.StateUnauthorized:
		return http.StatusOK, gin.H{"chatAuthenticated": false}
	case auth.StateInvalidInput:
		return http.StatusBadRequest, errorBody(auth.MsgInvalidRequest)
	case auth.StateSignatureInvalid:
		return http.StatusUnauthorized, errorBody(auth.MsgSignatureInvalid)
	case auth.StateResolutionFailed:
		return http.StatusServiceUnavailable, errorBody(auth.MsgResolutionFailed)
	case auth.StateProvisioningFailed:
		return http.StatusBadGateway, errorBody(auth.MsgProvisioningFailed)
	default:
		return http.StatusInternalServerError, errorBody(auth.MsgTokenFailed)
	}
}
