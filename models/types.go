package models

// Organization is a registered principal allowed to create elections.
type Organization struct {
	ID            string `json:"organization_id"`
	ElectionCount uint64 `json:"election_count"`
}

// Page is one slice of a listing.
type Page[T any] struct {
	PageNumber    int   `json:"page_number"`
	PageSize      int   `json:"page_size"`
	Values        []T   `json:"values"`
	ElementsCount int64 `json:"elements_count"`
	PageCount     int64 `json:"page_count"`
}

// AuditReport compares the tallies of an election with its voter records.
type AuditReport struct {
	Organization string      `json:"organization_id"`
	ElectionID   uint64      `json:"election_id,string"`
	Candidates   []Candidate `json:"candidates"`
	TotalVotes   uint64      `json:"total_votes"`
	VoterCount   uint64      `json:"voter_count"`
	StrayEntries uint64      `json:"stray_entries"`
	Consistent   bool        `json:"consistent"`
}
