package types

import "slices"

// Authentication request body
type AuthRequest struct {
	PubKey  string   `json:"pubKey"`
	Message string   `json:"message"`
	Realm   RealmRef `json:"realm"`
}

type RealmRef struct {
	GovernanceID string `json:"governanceId"` // governance program id
	PubKey       string `json:"pubKey"`
}

// Realm configuration as stored on the governance ledger
type RealmConfig struct {
	Name          string
	CommunityMint string
	CouncilMint   *string // nil when the realm has no council tier
}

// MembershipRecord is one token owner record of a realm.
type MembershipRecord struct {
	Address                     string // record account address
	Realm                       string
	GoverningTokenMint          string
	GoverningTokenOwner         string
	GovernanceDelegate          *string
	GoverningTokenDepositAmount uint64
}

// Matches reports whether pubKey owns the record or is its delegate.
func (r MembershipRecord) Matches(pubKey string) bool {
	if r.GoverningTokenOwner == pubKey {
		return true
	}
	return r.GovernanceDelegate != nil && *r.GovernanceDelegate == pubKey
}

// HoldsCouncilToken reports a nonzero deposit of the realm's council mint.
func (r MembershipRecord) HoldsCouncilToken(councilMint *string) bool {
	if councilMint == nil {
		return false
	}
	return r.GoverningTokenMint == *councilMint && r.GoverningTokenDepositAmount > 0
}

// Chat-side user record
type ChatIdentity struct {
	ID    string   `json:"id"`
	Teams []string `json:"teams,omitempty"`
}

func (u ChatIdentity) InTeam(team string) bool {
	return slices.Contains(u.Teams, team)
}

// Chat-side channel record
type ChatChannel struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Team    string   `json:"team"`
	Members []string `json:"members,omitempty"`
}

func (c ChatChannel) HasMember(id string) bool {
	return slices.Contains(c.Members, id)
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null;uniqueIndex"`
	Value string `gorm:"size:256;not null"`
}
