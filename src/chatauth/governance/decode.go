package governance

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

// SPL Governance account type discriminators (first byte of every account).
const (
	AccountRealmV1            byte = 1
	AccountTokenOwnerRecordV1 byte = 2
	AccountRealmV2            byte = 16
	AccountTokenOwnerRecordV2 byte = 17
)

const pubKeyLen = 32

// Realm layout offsets (V1 and V2 share the prefix we read).
const (
	realmCommunityMintOffset = 1
	realmCouncilOptionOffset = 58
	realmMinLen              = realmCouncilOptionOffset + 1
)

// TokenOwnerRecord layout offsets (V1 and V2 share the prefix we read).
const (
	torRealmOffset    = 1
	torMintOffset     = 33
	torOwnerOffset    = 65
	torDepositOffset  = 97
	torDelegateOffset = 121
	torMinLen         = torDelegateOffset + 1
)

func readPubKey(data []byte, offset int) (string, error) {
	if len(data) < offset+pubKeyLen {
		return "", fmt.Errorf("insufficient data for pubkey at %d", offset)
	}
	return base58.Encode(data[offset : offset+pubKeyLen]), nil
}

// readOptionPubKey decodes a Borsh Option<Pubkey>.
func readOptionPubKey(data []byte, offset int) (*string, error) {
	if len(data) <= offset {
		return nil, fmt.Errorf("insufficient data for option at %d", offset)
	}
	switch data[offset] {
	case 0:
		return nil, nil
	case 1:
		pk, err := readPubKey(data, offset+1)
		if err != nil {
			return nil, err
		}
		return &pk, nil
	default:
		return nil, fmt.Errorf("invalid option tag %d at %d", data[offset], offset)
	}
}

// DecodeRealm decodes a RealmV1/RealmV2 account.
func DecodeRealm(data []byte) (types.RealmConfig, error) {
	if len(data) < realmMinLen {
		return types.RealmConfig{}, fmt.Errorf("realm account too short: %d bytes", len(data))
	}
	if data[0] != AccountRealmV1 && data[0] != AccountRealmV2 {
		return types.RealmConfig{}, fmt.Errorf("not a realm account (type %d)", data[0])
	}

	community, err := readPubKey(data, realmCommunityMintOffset)
	if err != nil {
		return types.RealmConfig{}, err
	}
	council, err := readOptionPubKey(data, realmCouncilOptionOffset)
	if err != nil {
		return types.RealmConfig{}, err
	}

	return types.RealmConfig{
		Name:          decodeRealmName(data, council != nil),
		CommunityMint: community,
		CouncilMint:   council,
	}, nil
}

// decodeRealmName reads the Borsh string after the fixed realm config and
// the legacy reserved block. Returns "" when the account is truncated.
func decodeRealmName(data []byte, hasCouncil bool) string {
	offset := realmCouncilOptionOffset + 1
	if hasCouncil {
		offset += pubKeyLen
	}
	// reserved [u8;6], voting_proposal_count u16 (legacy), authority Option<Pubkey>
	offset += 6 + 2
	if len(data) <= offset {
		return ""
	}
	if data[offset] == 1 {
		offset += 1 + pubKeyLen
	} else {
		offset++
	}
	if len(data) < offset+4 {
		return ""
	}
	n := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if n > 256 || len(data) < offset+n {
		return ""
	}
	return string(data[offset : offset+n])
}

// DecodeTokenOwnerRecord decodes a TokenOwnerRecordV1/V2 account.
func DecodeTokenOwnerRecord(address string, data []byte) (types.MembershipRecord, error) {
	if len(data) < torMinLen {
		return types.MembershipRecord{}, fmt.Errorf("token owner record too short: %d bytes", len(data))
	}
	if data[0] != AccountTokenOwnerRecordV1 && data[0] != AccountTokenOwnerRecordV2 {
		return types.MembershipRecord{}, fmt.Errorf("not a token owner record (type %d)", data[0])
	}

	rec := types.MembershipRecord{Address: address}
	var err error
	if rec.Realm, err = readPubKey(data, torRealmOffset); err != nil {
		return rec, err
	}
	if rec.GoverningTokenMint, err = readPubKey(data, torMintOffset); err != nil {
		return rec, err
	}
	if rec.GoverningTokenOwner, err = readPubKey(data, torOwnerOffset); err != nil {
		return rec, err
	}
	rec.GoverningTokenDepositAmount = binary.LittleEndian.Uint64(data[torDepositOffset : torDepositOffset+8])
	if rec.GovernanceDelegate, err = readOptionPubKey(data, torDelegateOffset); err != nil {
		return rec, err
	}
	return rec, nil
}
