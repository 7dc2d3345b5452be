package domain

import "time"

// CanonicalPair orders two user ids lexicographically.
func CanonicalPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

// PairKey identifies an unordered pair of users. It is the same for
// (a, b) and (b, a).
func PairKey(a, b string) string {
	low, high := CanonicalPair(a, b)
	return "dm:" + low + ":" + high
}

// ChannelKey is the broadcast channel for the conversation between a and b.
func ChannelKey(a, b string) string {
	return PairKey(a, b)
}

// RelationshipStatus is the pair state seen from one side.
type RelationshipStatus string

const (
	StatusNone     RelationshipStatus = "none"
	StatusSent     RelationshipStatus = "sent"
	StatusReceived RelationshipStatus = "received"
	StatusMutual   RelationshipStatus = "mutual"
)

// CrushEdge is a directed expression of interest.
type CrushEdge struct {
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	IsMutual   bool      `json:"is_mutual"`
	CreatedAt  time.Time `json:"created_at"`
}

// PairState is a snapshot of both edges and the friendship of one pair,
// oriented from the acting user.
type PairState struct {
	Outgoing   *CrushEdge
	Incoming   *CrushEdge
	Friendship bool
}

// Status derives the relationship status from edge presence.
func (p PairState) Status() RelationshipStatus {
	switch {
	case p.Outgoing != nil && p.Incoming != nil:
		return StatusMutual
	case p.Outgoing != nil:
		return StatusSent
	case p.Incoming != nil:
		return StatusReceived
	default:
		return StatusNone
	}
}

// Consistent reports whether the snapshot satisfies the mutuality
// invariant: both edges mutual with a friendship when both exist, and no
// mutual flag or friendship otherwise.
func (p PairState) Consistent() bool {
	if p.Outgoing != nil && p.Incoming != nil {
		return p.Outgoing.IsMutual && p.Incoming.IsMutual && p.Friendship
	}
	if p.Friendship {
		return false
	}
	if p.Outgoing != nil && p.Outgoing.IsMutual {
		return false
	}
	if p.Incoming != nil && p.Incoming.IsMutual {
		return false
	}
	return true
}

// PairView is what the crush status endpoint returns.
type PairView struct {
	UserID     string             `json:"user_id"`
	PeerID     string             `json:"peer_id"`
	Status     RelationshipStatus `json:"status"`
	AreFriends bool               `json:"are_friends"`
}

// RelationshipStats are the home-page counters.
type RelationshipStats struct {
	HeartsSent     int64 `json:"hearts_sent"`
	HeartsReceived int64 `json:"hearts_received"`
	Friends        int64 `json:"friends"`
}

// Candidate is another user ranked by compatibility.
type Candidate struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}
