package chat

// UnreadCounts maps participant user ids to their unread message count.
// Counts never go below zero; a missing key reads as zero.
type UnreadCounts map[string]int

func (u UnreadCounts) Get(userID string) int {
	if u == nil {
		return 0
	}
	if n := u[userID]; n > 0 {
		return n
	}
	return 0
}

// IncrementOthers adds one for every participant other than senderID and
// returns how many counters were bumped.
func (u UnreadCounts) IncrementOthers(p Participants, senderID string) int {
	bumped := 0
	for _, participant := range p.List() {
		if participant.UserID == senderID {
			continue
		}
		u[participant.UserID] = u.Get(participant.UserID) + 1
		bumped++
	}
	return bumped
}

func (u UnreadCounts) Reset(userID string) {
	if u == nil {
		return
	}
	u[userID] = 0
}

func (u UnreadCounts) Clone() UnreadCounts {
	out := make(UnreadCounts, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
