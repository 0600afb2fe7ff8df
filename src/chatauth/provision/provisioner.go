package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

const (
	ChannelType   = "team"
	CommunityName = "Community"
	CouncilName   = "Council"
)

// Steps reported by Provision.
const (
	StepIdentity        = "identity"
	StepTeam            = "team"
	StepListChannels    = "list_channels"
	StepJoinCommunity   = "join_community"
	StepJoinCouncil     = "join_council"
	StepCreateCommunity = "create_community"
	StepCreateCouncil   = "create_council"
)

// Backend is the chat-side state the provisioner reads and mutates.
type Backend interface {
	GetUser(ctx context.Context, id string) (*types.ChatIdentity, error)
	CreateUser(ctx context.Context, id string) (types.ChatIdentity, error)
	UpdateUserTeams(ctx context.Context, id string, teams []string) error
	ListChannels(ctx context.Context, team string) ([]types.ChatChannel, error)
	AddChannelMember(ctx context.Context, ch types.ChatChannel, id string) error
	CreateChannel(ctx context.Context, ch types.ChatChannel, creator string) (types.ChatChannel, error)
}

// StepError is a failed provisioning step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StepResult records one attempted step. Err is nil on success.
type StepResult struct {
	Step string
	Err  error
}

// Report lists every step attempted by one Provision call.
type Report struct {
	Steps []StepResult
}

func (r *Report) record(step string, err error) {
	if err != nil {
		err = &StepError{Step: step, Err: err}
	}
	r.Steps = append(r.Steps, StepResult{Step: step, Err: err})
}

// Failures returns the failed steps.
func (r Report) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

func (r Report) Failed() bool {
	return len(r.Failures()) > 0
}

// Err joins every step error, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, s := range r.Failures() {
		errs = append(errs, s.Err)
	}
	return errors.Join(errs...)
}

// Provisioner brings a member's chat state in line with their realm
// membership. Every step is retried on the next login, so a partial run
// converges later.
type Provisioner struct {
	backend Backend
	log     zerolog.Logger
}

func New(backend Backend, log zerolog.Logger) *Provisioner {
	return &Provisioner{backend: backend, log: log.With().Str("component", "provision").Logger()}
}

// ChannelID returns the deterministic id of a realm's default channel.
func ChannelID(realm, name string) string {
	return realm + strings.ToLower(name)
}

// Provision ensures pubKey has a chat identity, belongs to the realm team,
// and is a member of the realm's Community channel (and Council channel when
// hasCouncilToken). Failures are recorded per step and never abort the
// remaining independent steps.
func (p *Provisioner) Provision(ctx context.Context, pubKey, realm string, hasCouncilToken bool) Report {
	var report Report
	log := p.log.With().Str("pubkey", pubKey).Str("realm", realm).Logger()

	// Lookup and create are not atomic: concurrent first logins may both
	// create, and a later login reconciles the team set.
	user, err := p.ensureIdentity(ctx, pubKey)
	report.record(StepIdentity, err)
	if err != nil {
		log.Error().Err(err).Msg("chat identity unavailable, skipping team membership")
	} else if !user.InTeam(realm) {
		teams := append(append([]string(nil), user.Teams...), realm)
		err := p.backend.UpdateUserTeams(ctx, pubKey, teams)
		report.record(StepTeam, err)
		if err != nil {
			log.Error().Err(err).Msg("failed to add member to team")
		}
	}

	channels, err := p.backend.ListChannels(ctx, realm)
	report.record(StepListChannels, err)
	if err != nil {
		log.Error().Err(err).Msg("failed to list team channels, skipping channel membership")
		return report
	}

	var haveCommunity, haveCouncil bool
	for _, ch := range channels {
		switch {
		case ch.Name == CommunityName:
			haveCommunity = true
			p.join(ctx, &report, log, StepJoinCommunity, ch, pubKey)
		case ch.Name == CouncilName && hasCouncilToken:
			haveCouncil = true
			p.join(ctx, &report, log, StepJoinCouncil, ch, pubKey)
		}
	}

	if !haveCommunity {
		p.create(ctx, &report, log, StepCreateCommunity, realm, CommunityName, pubKey)
	}
	if !haveCouncil && hasCouncilToken {
		p.create(ctx, &report, log, StepCreateCouncil, realm, CouncilName, pubKey)
	}

	return report
}

func (p *Provisioner) ensureIdentity(ctx context.Context, pubKey string) (types.ChatIdentity, error) {
	user, err := p.backend.GetUser(ctx, pubKey)
	if err != nil {
		return types.ChatIdentity{}, err
	}
	if user != nil {
		return *user, nil
	}
	p.log.Info().Str("pubkey", pubKey).Msg("creating chat identity")
	return p.backend.CreateUser(ctx, pubKey)
}

func (p *Provisioner) join(ctx context.Context, report *Report, log zerolog.Logger, step string, ch types.ChatChannel, pubKey string) {
	if ch.HasMember(pubKey) {
		return
	}
	err := p.backend.AddChannelMember(ctx, ch, pubKey)
	report.record(step, err)
	if err != nil {
		log.Error().Err(err).Str("channel", ch.ID).Msg("failed to add member to channel")
	}
}

func (p *Provisioner) create(ctx context.Context, report *Report, log zerolog.Logger, step, realm, name, pubKey string) {
	log.Info().Str("channel", name).Msg("creating default channel")
	_, err := p.backend.CreateChannel(ctx, types.ChatChannel{
		Type:    ChannelType,
		ID:      ChannelID(realm, name),
		Name:    name,
		Team:    realm,
		Members: []string{pubKey, realm},
	}, realm)
	report.record(step, err)
	if err != nil {
		log.Error().Err(err).Str("channel", name).Msg("failed to create channel")
	}
}
