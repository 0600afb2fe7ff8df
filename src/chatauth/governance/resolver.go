package governance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Membership is the authorization outcome for one requester in one realm.
type Membership struct {
	Authorized      bool
	HasCouncilToken bool
	Record          string // matching token owner record address
}

// LedgerError means membership could not be determined. It is never a
// negative answer.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// Resolver decides realm membership from the ledger's token owner records.
type Resolver struct {
	ledger Ledger
	log    zerolog.Logger
}

func NewResolver(ledger Ledger, log zerolog.Logger) *Resolver {
	return &Resolver{ledger: ledger, log: log}
}

// Resolve reports whether requester owns, or is the delegate of, a token
// owner record in realm. The first matching record decides; later records
// are never consulted.
func (r *Resolver) Resolve(ctx context.Context, realm, programID, requester string) (Membership, error) {
	var councilMint *string
	realmCfg, err := r.ledger.GetRealmConfig(ctx, realm)
	if err != nil {
		// Ownership and delegation can still be decided without the council tier.
		r.log.Warn().Err(err).Str("realm", realm).Msg("realm config unavailable, assuming no council mint")
	} else {
		councilMint = realmCfg.CouncilMint
	}

	records, err := r.ledger.GetMembershipRecords(ctx, programID, realm)
	if err != nil {
		return Membership{}, &LedgerError{Op: "get membership records", Err: err}
	}

	for _, rec := range records {
		if !rec.Matches(requester) {
			continue
		}
		return Membership{
			Authorized:      true,
			HasCouncilToken: rec.HoldsCouncilToken(councilMint),
			Record:          rec.Address,
		}, nil
	}

	return Membership{}, nil
}
