package api

import (
	"time"

	"election-ledger/models"
	"election-ledger/service"
)

type registerOrganizationRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
}

type registerOrganizationResponse struct {
	OrganizationID string `json:"organization_id"`
}

type electionsCountResponse struct {
	OrganizationID string `json:"organization_id"`
	ElectionsCount uint64 `json:"elections_count"`
}

type createElectionRequest struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Candidates  []string  `json:"candidates"`
}

func (r createElectionRequest) draft() models.ElectionDraft {
	return models.ElectionDraft{
		Start:       r.Start,
		End:         r.End,
		Title:       r.Title,
		Description: r.Description,
		Candidates:  r.Candidates,
	}
}

type createElectionResponse struct {
	OrganizationID string `json:"organization_id"`
	ElectionID     uint64 `json:"election_id,string"`
}

type voteRequest struct {
	CandidateID *int `json:"candidate_id" binding:"required"`
}

type haveVotedResponse struct {
	OrganizationID string `json:"organization_id"`
	ElectionID     uint64 `json:"election_id,string"`
	VoterID        string `json:"voter_id"`
	Voted          bool   `json:"voted"`
}

type chainBlocksResponse struct {
	From   uint64          `json:"from"`
	Blocks []*models.Block `json:"blocks"`
}

type queueMetrics struct {
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

type metricsResponse struct {
	service.MetricsResponse
	Queue queueMetrics `json:"queue"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
