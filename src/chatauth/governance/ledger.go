package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/metrics"
	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

// Ledger is the read-only view of the governance program this service needs.
type Ledger interface {
	GetRealmConfig(ctx context.Context, realm string) (types.RealmConfig, error)
	GetMembershipRecords(ctx context.Context, programID, realm string) ([]types.MembershipRecord, error)
}

var ErrRealmNotFound = errors.New("realm account not found")

// RPCLedger reads SPL Governance accounts over Solana JSON-RPC.
type RPCLedger struct {
	rpc     *rpc.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewRPCLedger creates a ledger client for the given RPC endpoint.
func NewRPCLedger(endpoint string, timeout time.Duration, log zerolog.Logger) *RPCLedger {
	return &RPCLedger{
		rpc:     rpc.New(endpoint),
		timeout: timeout,
		log:     log.With().Str("component", "ledger").Logger(),
	}
}

// Close closes the underlying RPC transport.
func (l *RPCLedger) Close() error {
	return l.rpc.Close()
}

// GetRealmConfig fetches and decodes the realm account.
func (l *RPCLedger) GetRealmConfig(ctx context.Context, realm string) (types.RealmConfig, error) {
	realmKey, err := solana.PublicKeyFromBase58(realm)
	if err != nil {
		return types.RealmConfig{}, fmt.Errorf("realm address: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	defer metrics.ObserveCall("ledger", "get_realm", time.Now())

	res, err := l.rpc.GetAccountInfoWithOpts(ctx, realmKey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return types.RealmConfig{}, ErrRealmNotFound
	}
	if err != nil {
		return types.RealmConfig{}, fmt.Errorf("get realm account: %w", err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return types.RealmConfig{}, ErrRealmNotFound
	}

	return DecodeRealm(res.Value.Data.GetBinary())
}

// GetMembershipRecords returns every token owner record of realm under the
// governance program, in the order the RPC node returned them.
func (l *RPCLedger) GetMembershipRecords(ctx context.Context, programID, realm string) ([]types.MembershipRecord, error) {
	programKey, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("governance program address: %w", err)
	}
	realmKey, err := solana.PublicKeyFromBase58(realm)
	if err != nil {
		return nil, fmt.Errorf("realm address: %w", err)
	}

	var records []types.MembershipRecord
	for _, accountType := range []byte{AccountTokenOwnerRecordV1, AccountTokenOwnerRecordV2} {
		recs, err := l.fetchRecords(ctx, programKey, realmKey, accountType)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (l *RPCLedger) fetchRecords(ctx context.Context, program, realm solana.PublicKey, accountType byte) ([]types.MembershipRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	defer metrics.ObserveCall("ledger", "get_token_owner_records", time.Now())

	out, err := l.rpc.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58{accountType}}},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: torRealmOffset, Bytes: solana.Base58(realm.Bytes())}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get token owner records (type %d): %w", accountType, err)
	}

	records := make([]types.MembershipRecord, 0, len(out))
	for _, acc := range out {
		if acc == nil || acc.Account == nil || acc.Account.Data == nil {
			continue
		}
		rec, err := DecodeTokenOwnerRecord(acc.Pubkey.String(), acc.Account.Data.GetBinary())
		if err != nil {
			l.log.Warn().Err(err).Str("account", acc.Pubkey.String()).Msg("skipping malformed token owner record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
