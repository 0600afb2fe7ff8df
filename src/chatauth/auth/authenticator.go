package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/alerts"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/governance"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/metrics"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/provision"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

// State is a step of the authentication state machine.
type State string

const (
	StateReceived          State = "received"
	StateValidated         State = "validated"
	StateSignatureVerified State = "signature_verified"
	StateAuthorized        State = "authorized"
	StateProvisioned       State = "provisioned"
	StateTokenIssued       State = "token_issued"

	StateInvalidInput       State = "invalid_input"
	StateSignatureInvalid   State = "signature_invalid"
	StateUnauthorized       State = "unauthorized"
	StateResolutionFailed   State = "resolution_failed"
	StateProvisioningFailed State = "provisioning_failed"
	StateTokenFailed        State = "token_failed"
)

// ProvisionMode decides whether provisioning failures affect the response.
type ProvisionMode string

const (
	// ProvisionBestEffort logs and reports failures but still issues a token.
	ProvisionBestEffort ProvisionMode = "best-effort"
	// ProvisionStrict refuses the login when any provisioning step failed.
	ProvisionStrict ProvisionMode = "strict"
)

func ParseProvisionMode(s string) (ProvisionMode, error) {
	switch ProvisionMode(s) {
	case ProvisionBestEffort, "":
		return ProvisionBestEffort, nil
	case ProvisionStrict:
		return ProvisionStrict, nil
	}
	return "", fmt.Errorf("unknown provision mode %q", s)
}

type MembershipResolver interface {
	Resolve(ctx context.Context, realm, programID, requester string) (governance.Membership, error)
}

type ChatProvisioner interface {
	Provision(ctx context.Context, pubKey, realm string, hasCouncilToken bool) provision.Report
}

type TokenMinter interface {
	MintToken(userID string) (string, error)
}

// Outcome is the terminal state of one authentication.
type Outcome struct {
	State        State
	StreamToken  string
	Membership   governance.Membership
	Provisioning provision.Report
	Err          error
}

// Authenticated reports whether a session token was issued.
func (o Outcome) Authenticated() bool {
	return o.State == StateTokenIssued
}

type Options struct {
	Verifier    *Verifier
	Resolver    MembershipResolver
	Provisioner ChatProvisioner
	Tokens      TokenMinter
	Alerts      alerts.Sink
	Mode        ProvisionMode
	Logger      zerolog.Logger
}

// Authenticator sequences validation, signature verification, membership
// resolution, provisioning, and token issuance for one request.
type Authenticator struct {
	verifier    *Verifier
	resolver    MembershipResolver
	provisioner ChatProvisioner
	tokens      TokenMinter
	alerts      alerts.Sink
	mode        ProvisionMode
	log         zerolog.Logger
}

func NewAuthenticator(opts Options) *Authenticator {
	a := &Authenticator{
		verifier:    opts.Verifier,
		resolver:    opts.Resolver,
		provisioner: opts.Provisioner,
		tokens:      opts.Tokens,
		alerts:      opts.Alerts,
		mode:        opts.Mode,
		log:         opts.Logger,
	}
	if a.alerts == nil {
		a.alerts = alerts.NopSink{}
	}
	if a.mode == "" {
		a.mode = ProvisionBestEffort
	}
	return a
}

// logger prefers the request-scoped logger carried by ctx.
func (a *Authenticator) logger(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return a.log
}

// Authenticate runs the state machine to a terminal state. Validation and
// signature failures return before any network call.
func (a *Authenticator) Authenticate(ctx context.Context, req types.AuthRequest) (out Outcome) {
	log := a.logger(ctx).With().Str("pubkey", req.PubKey).Str("realm", req.Realm.PubKey).Logger()
	defer func() {
		metrics.Authentications.WithLabelValues(string(out.State)).Inc()
	}()

	out.State = StateReceived
	if err := Validate(req); err != nil {
		log.Info().Err(err).Msg("rejected malformed request")
		return Outcome{State: StateInvalidInput, Err: err}
	}
	out.State = StateValidated

	if !a.verifier.Verify(req.Message, req.PubKey) {
		log.Info().Msg("signature verification failed")
		return Outcome{State: StateSignatureInvalid, Err: ErrSignature}
	}
	out.State = StateSignatureVerified

	membership, err := a.resolver.Resolve(ctx, req.Realm.PubKey, req.Realm.GovernanceID, req.PubKey)
	if err != nil {
		log.Error().Err(err).Msg("membership resolution failed")
		return Outcome{State: StateResolutionFailed, Err: err}
	}
	if !membership.Authorized {
		log.Info().Msg("requester is neither owner nor delegate in realm")
		return Outcome{State: StateUnauthorized, Membership: membership}
	}
	out = Outcome{State: StateAuthorized, Membership: membership}
	log.Info().Bool("council", membership.HasCouncilToken).Str("record", membership.Record).Msg("realm membership confirmed")

	out.Provisioning = a.provisioner.Provision(ctx, req.PubKey, req.Realm.PubKey, membership.HasCouncilToken)
	if out.Provisioning.Failed() {
		a.reportProvisioning(ctx, log, req, out.Provisioning)
		if a.mode == ProvisionStrict {
			out.State = StateProvisioningFailed
			out.Err = out.Provisioning.Err()
			return out
		}
	}
	out.State = StateProvisioned

	token, err := a.tokens.MintToken(req.PubKey)
	if err != nil {
		log.Error().Err(err).Msg("failed to mint chat token")
		out.State = StateTokenFailed
		out.Err = fmt.Errorf("mint token: %w", err)
		return out
	}
	out.State = StateTokenIssued
	out.StreamToken = token
	return out
}

const alertTimeout = 5 * time.Second

func (a *Authenticator) reportProvisioning(ctx context.Context, log zerolog.Logger, req types.AuthRequest, report provision.Report) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	requestID := RequestID(ctx)
	for _, f := range report.Failures() {
		metrics.ProvisioningFailures.WithLabelValues(f.Step).Inc()
		log.Warn().Err(f.Err).Str("step", f.Step).Str("mode", string(a.mode)).Msg("chat provisioning incomplete")

		err := a.alerts.Notify(ctx, alerts.Event{
			PubKey:    req.PubKey,
			Realm:     req.Realm.PubKey,
			Step:      f.Step,
			Error:     f.Err.Error(),
			RequestID: requestID,
			Time:      time.Now(),
		})
		if err != nil {
			log.Error().Err(err).Str("step", f.Step).Msg("failed to deliver provisioning alert")
		}
	}
}

type requestIDKey struct{}

// WithRequestID stores the request id for logs and alerts.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
