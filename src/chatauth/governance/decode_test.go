package governance

import (
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) []byte {
	k := make([]byte, pubKeyLen)
	for i := range k {
		k[i] = b
	}
	return k
}

func encodeRealm(accountType byte, community, council []byte, name string) []byte {
	buf := []byte{accountType}
	buf = append(buf, community...)
	buf = append(buf, 0, 0)               // legacy flags
	buf = append(buf, make([]byte, 6)...) // reserved
	buf = append(buf, make([]byte, 8)...) // min community weight
	buf = append(buf, 0)                  // max voter weight source tag
	buf = append(buf, make([]byte, 8)...) // max voter weight source value
	if council != nil {
		buf = append(buf, 1)
		buf = append(buf, council...)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, 6)...) // reserved
	buf = append(buf, 0, 0)               // legacy proposal count
	buf = append(buf, 0)                  // no authority
	n := make([]byte, 4)
	binary.LittleEndian.PutUint32(n, uint32(len(name)))
	buf = append(buf, n...)
	return append(buf, name...)
}

func encodeRecord(accountType byte, realm, mint, owner []byte, deposit uint64, delegate []byte) []byte {
	buf := []byte{accountType}
	buf = append(buf, realm...)
	buf = append(buf, mint...)
	buf = append(buf, owner...)
	amt := make([]byte, 8)
	binary.LittleEndian.PutUint64(amt, deposit)
	buf = append(buf, amt...)
	buf = append(buf, make([]byte, 16)...) // vote counters and reserved
	if delegate != nil {
		buf = append(buf, 1)
		buf = append(buf, delegate...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func TestDecodeRealm(t *testing.T) {
	for _, accountType := range []byte{AccountRealmV1, AccountRealmV2} {
		cfg, err := DecodeRealm(encodeRealm(accountType, key(1), key(2), "Test DAO"))
		require.NoError(t, err)
		assert.Equal(t, base58.Encode(key(1)), cfg.CommunityMint)
		require.NotNil(t, cfg.CouncilMint)
		assert.Equal(t, base58.Encode(key(2)), *cfg.CouncilMint)
		assert.Equal(t, "Test DAO", cfg.Name)
	}
}

func TestDecodeRealm_NoCouncil(t *testing.T) {
	cfg, err := DecodeRealm(encodeRealm(AccountRealmV2, key(1), nil, "Solo"))
	require.NoError(t, err)
	assert.Nil(t, cfg.CouncilMint)
	assert.Equal(t, "Solo", cfg.Name)
}

func TestDecodeRealm_Rejects(t *testing.T) {
	_, err := DecodeRealm([]byte{AccountRealmV2, 1, 2})
	assert.Error(t, err)

	_, err = DecodeRealm(encodeRecord(AccountTokenOwnerRecordV2, key(1), key(2), key(3), 1, nil))
	assert.Error(t, err)

	bad := encodeRealm(AccountRealmV2, key(1), nil, "")
	bad[realmCouncilOptionOffset] = 7
	_, err = DecodeRealm(bad)
	assert.Error(t, err)
}

func TestDecodeTokenOwnerRecord(t *testing.T) {
	data := encodeRecord(AccountTokenOwnerRecordV2, key(1), key(2), key(3), 42, key(4))

	rec, err := DecodeTokenOwnerRecord("addr", data)
	require.NoError(t, err)
	assert.Equal(t, "addr", rec.Address)
	assert.Equal(t, base58.Encode(key(1)), rec.Realm)
	assert.Equal(t, base58.Encode(key(2)), rec.GoverningTokenMint)
	assert.Equal(t, base58.Encode(key(3)), rec.GoverningTokenOwner)
	assert.Equal(t, uint64(42), rec.GoverningTokenDepositAmount)
	require.NotNil(t, rec.GovernanceDelegate)
	assert.Equal(t, base58.Encode(key(4)), *rec.GovernanceDelegate)
}

func TestDecodeTokenOwnerRecord_NoDelegate(t *testing.T) {
	rec, err := DecodeTokenOwnerRecord("addr", encodeRecord(AccountTokenOwnerRecordV1, key(1), key(2), key(3), 0, nil))
	require.NoError(t, err)
	assert.Nil(t, rec.GovernanceDelegate)
	assert.Zero(t, rec.GoverningTokenDepositAmount)
}

func TestDecodeTokenOwnerRecord_Rejects(t *testing.T) {
	_, err := DecodeTokenOwnerRecord("addr", make([]byte, 10))
	assert.Error(t, err)

	data := encodeRecord(AccountTokenOwnerRecordV2, key(1), key(2), key(3), 1, nil)
	data[0] = AccountRealmV2
	_, err = DecodeTokenOwnerRecord("addr", data)
	assert.Error(t, err)
}
