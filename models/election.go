package models

import "time"

// MaxCandidates is the largest candidate list an election may carry; candidate
// ids are positions held in a uint8.
const (
	MinCandidates = 2
	MaxCandidates = 256
)

// Election is the immutable metadata of one election.
type Election struct {
	Organization string    `json:"organization_id"`
	ID           uint64    `json:"election_id,string"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Candidates   []string  `json:"candidates"`
}

// ElectionDraft is what an organization submits to create an election.
type ElectionDraft struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Candidates  []string  `json:"candidates"`
}

// Phase is derived from the election window and a point in time.
type Phase string

const (
	PhaseNotYetOpen Phase = "not_yet_open"
	PhaseOpen       Phase = "open"
	PhaseClosed     Phase = "closed"
)

// PhaseAt places now relative to the election window. Start and end are
// exclusive bounds for voting.
func (e *Election) PhaseAt(now time.Time) Phase {
	switch {
	case !now.After(e.Start):
		return PhaseNotYetOpen
	case now.Before(e.End):
		return PhaseOpen
	default:
		return PhaseClosed
	}
}

type Candidate struct {
	ID    uint8  `json:"candidate_id"`
	Name  string `json:"name"`
	Votes uint64 `json:"votes"`
}

// ElectionView is an election together with the current tally of each
// candidate, in candidate id order.
type ElectionView struct {
	Organization string      `json:"organization_id"`
	ID           uint64      `json:"election_id,string"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Phase        Phase       `json:"phase"`
	Candidates   []Candidate `json:"candidates"`
}
