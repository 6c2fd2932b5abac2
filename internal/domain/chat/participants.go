package chat

import (
	"strings"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Participant binds a user to a chat with a role.
type Participant struct {
	UserID string
	Role   Role
}

// Participants is the fixed buyer/seller pair of a chat. Group chats are not supported.
type Participants struct {
	Buyer  Participant
	Seller Participant
}

// NewParticipants validates the pair. Ids are trimmed and must differ.
func NewParticipants(buyerID, sellerID string) (Participants, error) {
	buyerID = strings.TrimSpace(buyerID)
	sellerID = strings.TrimSpace(sellerID)
	if buyerID == "" || sellerID == "" {
		return Participants{}, ErrParticipantRequired
	}
	if buyerID == sellerID {
		return Participants{}, ErrSameParticipant
	}
	return Participants{
		Buyer:  Participant{UserID: buyerID, Role: RoleBuyer},
		Seller: Participant{UserID: sellerID, Role: RoleSeller},
	}, nil
}

func (p Participants) Contains(userID string) bool {
	return userID != "" && (p.Buyer.UserID == userID || p.Seller.UserID == userID)
}

// Other returns the counterpart of userID. ok is false when userID is not a participant.
func (p Participants) Other(userID string) (Participant, bool) {
	switch userID {
	case p.Buyer.UserID:
		return p.Seller, true
	case p.Seller.UserID:
		return p.Buyer, true
	default:
		return Participant{}, false
	}
}

// RoleOf reports the role userID plays in the chat.
func (p Participants) RoleOf(userID string) (Role, bool) {
	switch userID {
	case p.Buyer.UserID:
		return RoleBuyer, true
	case p.Seller.UserID:
		return RoleSeller, true
	default:
		return "", false
	}
}

// List returns the pair in stored order: buyer first, seller second.
func (p Participants) List() []Participant {
	return []Participant{p.Buyer, p.Seller}
}

func (p Participants) UserIDs() []string {
	return []string{p.Buyer.UserID, p.Seller.UserID}
}

// Key is an order-independent identity of the pair, used for uniqueness lookups.
func (p Participants) Key() string {
	return PairKey(p.Buyer.UserID, p.Seller.UserID)
}

// PairKey builds the same key as Participants.Key for two raw ids.
func PairKey(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
