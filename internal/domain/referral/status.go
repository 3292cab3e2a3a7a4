// internal/domain/referral/status.go
package referral

// Status is the closed set of referral lifecycle states. All writes go
// through the lifecycle service; callers never store free-form strings.
type Status string

const (
	StatusPendingApproval  Status = "pending_approval"
	StatusIntroSent        Status = "intro_sent"
	StatusRancherContacted Status = "rancher_contacted"
	StatusNegotiation      Status = "negotiation"
	StatusDormant          Status = "dormant"
	StatusClosedWon        Status = "closed_won"
	StatusClosedLost       Status = "closed_lost"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusIntroSent, StatusRancherContacted,
		StatusNegotiation, StatusDormant, StatusClosedWon, StatusClosedLost:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusClosedWon || s == StatusClosedLost
}

// operatorMoves is the transition table for administrator-driven status
// changes. Operators may move freely among the post-approval working states
// (including in and out of dormant), but may not enter or leave
// pending_approval or a terminal state this way; those transitions belong to
// the system-enforced approve/reject/close paths.
var operatorMoves = map[Status][]Status{
	StatusIntroSent:        {StatusRancherContacted, StatusNegotiation, StatusDormant},
	StatusRancherContacted: {StatusIntroSent, StatusNegotiation, StatusDormant},
	StatusNegotiation:      {StatusIntroSent, StatusRancherContacted, StatusDormant},
	StatusDormant:          {StatusIntroSent, StatusRancherContacted, StatusNegotiation},
}

// CanOperatorMove reports whether an operator status change from one working
// state to another is permitted by the transition table.
func CanOperatorMove(from, to Status) bool {
	for _, next := range operatorMoves[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Closeable reports whether a referral in the given state may be closed won
// or lost by an operator. Pending referrals are rejected instead, which
// never touched capacity in the first place.
func Closeable(from Status) bool {
	switch from {
	case StatusIntroSent, StatusRancherContacted, StatusNegotiation, StatusDormant:
		return true
	}
	return false
}
