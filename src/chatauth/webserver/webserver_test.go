package webserver

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/sign"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/auth"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/governance"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/provision"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/stream"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

const (
	testProgram = "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw"
	testRealm   = "DPiH3H3c7t47BMxqTxLsuPQpEC6Kne8GA9VXbxpnZxFE"
	testKey     = "7Ln6PjBbZ3fGJqH5yqwW9NB8AQKdKgqJ3VQpDdVbKJbH"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	out   auth.Outcome
	calls int
	reqs  []types.AuthRequest
	ids   []string
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, req types.AuthRequest) auth.Outcome {
	s.calls++
	s.reqs = append(s.reqs, req)
	s.ids = append(s.ids, auth.RequestID(ctx))
	return s.out
}

func newRouter(authn Authenticator, limiter Limiter) *gin.Engine {
	return New(Deps{Authenticator: authn, Limiter: limiter, Logger: zerolog.Nop()})
}

func post(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func requestBody(pubKey, message string) string {
	b, _ := json.Marshal(map[string]any{
		"pubKey":  pubKey,
		"message": message,
		"realm":   map[string]string{"governanceId": testProgram, "pubKey": testRealm},
	})
	return string(b)
}

func TestAuthenticate_StatusMapping(t *testing.T) {
	tests := []struct {
		state  auth.State
		status int
		body   string
	}{
		{auth.StateTokenIssued, http.StatusOK, `{"chatAuthenticated":true,"streamToken":"tok"}`},
		{auth.StateUnauthorized, http.StatusOK, `{"chatAuthenticated":false}`},
		{auth.StateInvalidInput, http.StatusBadRequest, `{"error":"Improperly formatted request."}`},
		{auth.StateSignatureInvalid, http.StatusUnauthorized, `{"error":"Signed message could not be verified"}`},
		{auth.StateResolutionFailed, http.StatusServiceUnavailable, `{"error":"Realm membership could not be resolved"}`},
		{auth.StateProvisioningFailed, http.StatusBadGateway, `{"error":"Chat provisioning failed"}`},
		{auth.StateTokenFailed, http.StatusInternalServerError, `{"error":"Chat token could not be issued"}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			stub := &stubAuthenticator{out: auth.Outcome{State: tt.state, StreamToken: "tok", Err: errors.New("internal detail")}}
			w := post(t, newRouter(stub, nil), "/authenticate", requestBody(testKey, "c2lnbmVk"))

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
			assert.NotContains(t, w.Body.String(), "internal detail")
		})
	}
}

func TestAuthenticate_MalformedJSON(t *testing.T) {
	stub := &stubAuthenticator{}
	r := newRouter(stub, nil)

	for _, body := range []string{"", "{", `{"pubKey": 12}`, `[]`} {
		w := post(t, r, "/authenticate", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error":"Improperly formatted request."}`, w.Body.String())
	}
	assert.Zero(t, stub.calls)
}

func TestAuthenticate_VersionedRouteAndRequestID(t *testing.T) {
	stub := &stubAuthenticator{out: auth.Outcome{State: auth.StateUnauthorized}}
	r := newRouter(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/authenticate", strings.NewReader(requestBody(testKey, "c2lnbmVk")))
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	require.Len(t, stub.reqs, 1)
	assert.Equal(t, testKey, stub.reqs[0].PubKey)
	assert.Equal(t, testRealm, stub.reqs[0].Realm.PubKey)
	assert.Equal(t, testProgram, stub.reqs[0].Realm.GovernanceID)
	assert.Equal(t, []string{"abc-123"}, stub.ids)

	w = post(t, r, "/authenticate", requestBody(testKey, "c2lnbmVk"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	stub := &stubAuthenticator{out: auth.Outcome{State: auth.StateUnauthorized}}
	r := newRouter(stub, NewMemoryLimiter(ctx, 2, time.Minute))

	assert.Equal(t, http.StatusOK, post(t, r, "/authenticate", requestBody(testKey, "c2lnbmVk")).Code)
	assert.Equal(t, http.StatusOK, post(t, r, "/authenticate", requestBody(testKey, "c2lnbmVk")).Code)
	w := post(t, r, "/authenticate", requestBody(testKey, "c2lnbmVk"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 2, stub.calls)
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	stub := &stubAuthenticator{out: auth.Outcome{State: auth.StateUnauthorized}}
	w := post(t, newRouter(stub, erroringLimiter{}), "/authenticate", requestBody(testKey, "c2lnbmVk"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMemoryLimiter_WindowExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rl := NewMemoryLimiter(ctx, 1, 50*time.Millisecond)

	ok, _ := rl.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = rl.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = rl.Allow(ctx, "b")
	assert.True(t, ok, "keys are independent")

	time.Sleep(60 * time.Millisecond)
	ok, _ = rl.Allow(ctx, "a")
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.requests)
	rl.mu.Unlock()
}

func TestHealthAndMetrics(t *testing.T) {
	r := newRouter(&stubAuthenticator{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	assert.True(t, corsConfig(nil).AllowAllOrigins)

	cfg := corsConfig([]string{"https://app.example"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://app.example"}, cfg.AllowOrigins)
}

type memberResolver struct {
	council bool
}

func (m memberResolver) Resolve(context.Context, string, string, string) (governance.Membership, error) {
	return governance.Membership{Authorized: true, HasCouncilToken: m.council}, nil
}

func TestAuthenticate_EndToEnd(t *testing.T) {
	const challenge = "Sign in to realm chat"
	pub, priv, err := sign.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pubKey := base58.Encode(pub[:])

	backend := stream.NewMemoryBackend("secret")
	authn := auth.NewAuthenticator(auth.Options{
		Verifier:    auth.NewVerifier(challenge),
		Resolver:    memberResolver{council: true},
		Provisioner: provision.New(backend, zerolog.Nop()),
		Tokens:      backend,
		Logger:      zerolog.Nop(),
	})
	r := newRouter(authn, nil)

	signed := base64.StdEncoding.EncodeToString(sign.Sign(nil, []byte(challenge), priv))
	w := post(t, r, "/authenticate", requestBody(pubKey, signed))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		ChatAuthenticated bool   `json:"chatAuthenticated"`
		StreamToken       string `json:"streamToken"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&resp))
	assert.True(t, resp.ChatAuthenticated)
	assert.NotEmpty(t, resp.StreamToken)

	channels, err := backend.ListChannels(context.Background(), testRealm)
	require.NoError(t, err)
	assert.Len(t, channels, 2)

	forged := base64.StdEncoding.EncodeToString(sign.Sign(nil, []byte("other"), priv))
	w = post(t, r, "/authenticate", requestBody(pubKey, forged))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
