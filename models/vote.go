package models

// Ballot is the journal payload of an accepted vote.
type Ballot struct {
	Organization string `json:"organization_id"`
	ElectionID   uint64 `json:"election_id,string"`
	Voter        string `json:"voter_id"`
	CandidateID  uint8  `json:"candidate_id"`
}
