package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"election-ledger/ledger"
)

// caller returns the X-Caller-Id principal, answering 401 when it is absent.
func caller(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(headerCaller))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
			Error:   "missing_caller",
			Message: headerCaller + " header is required",
		})
		return "", false
	}
	return id, true
}

func electionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid_election_id", "election id must be a decimal uint64")
		return 0, false
	}
	return id, true
}

// deposit parses X-Attached-Deposit. An absent header is a nil payment.
func deposit(c *gin.Context) (*uint256.Int, bool) {
	raw := strings.TrimSpace(c.GetHeader(headerDeposit))
	if raw == "" {
		return nil, true
	}
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		badRequest(c, "invalid_deposit", headerDeposit+" must be a decimal amount")
		return nil, false
	}
	return amount, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func (s *Server) handleRegisterOrganization(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req registerOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	err := s.queue.Submit(c.Request.Context(), func(ctx context.Context) error {
		return s.ledger.RegisterOrganization(ctx, who, req.OrganizationID, s.clock.Now())
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registerOrganizationResponse{OrganizationID: req.OrganizationID})
}

func (s *Server) handleElectionsCount(c *gin.Context) {
	org := c.Param("org")
	count, err := s.ledger.ElectionsCount(c.Request.Context(), org)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, electionsCountResponse{OrganizationID: org, ElectionsCount: count})
}

func (s *Server) handleCreateElection(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	payment, ok := deposit(c)
	if !ok {
		return
	}
	var req createElectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	var id uint64
	err := s.queue.Submit(c.Request.Context(), func(ctx context.Context) error {
		var err error
		id, err = s.ledger.CreateElection(ctx, who, payment, req.draft(), s.clock.Now())
		return err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createElectionResponse{OrganizationID: who, ElectionID: id})
}

func (s *Server) handleListElections(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	size, ok := queryInt(c, "size")
	if !ok {
		return
	}
	result, err := s.ledger.ListElections(c.Request.Context(), c.Param("org"), page, size, s.clock.Now())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetElection(c *gin.Context) {
	id, ok := electionID(c)
	if !ok {
		return
	}
	view, err := s.ledger.GetElection(c.Request.Context(), c.Param("org"), id, s.clock.Now())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleHaveVoted(c *gin.Context) {
	id, ok := electionID(c)
	if !ok {
		return
	}
	org, voter := c.Param("org"), c.Param("voter")
	voted, err := s.ledger.HaveVoted(c.Request.Context(), org, id, voter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, haveVotedResponse{
		OrganizationID: org,
		ElectionID:     id,
		VoterID:        voter,
		Voted:          voted,
	})
}

func (s *Server) handleVote(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := electionID(c)
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}
	// Candidate ids are uint8 positions; anything else names no candidate.
	if *req.CandidateID < 0 || *req.CandidateID > 255 {
		s.writeError(c, ledger.ErrInvalidCandidate)
		return
	}
	candidate := uint8(*req.CandidateID)

	org := c.Param("org")
	err := s.queue.Submit(c.Request.Context(), func(ctx context.Context) error {
		return s.ledger.Vote(ctx, org, id, who, candidate, s.clock.Now())
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAuditElection(c *gin.Context) {
	id, ok := electionID(c)
	if !ok {
		return
	}
	report, err := s.ledger.AuditElection(c.Request.Context(), c.Param("org"), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleChainBlocks(c *gin.Context) {
	var from uint64
	if raw := c.Query("from"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid_from", "from must be a decimal uint64")
			return
		}
		from = v
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	blocks, err := s.ledger.ChainBlocks(c.Request.Context(), from, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chainBlocksResponse{From: from, Blocks: blocks})
}

func (s *Server) handleVerifyChain(c *gin.Context) {
	report, err := s.ledger.VerifyChain(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metricsResponse{
		MetricsResponse: s.metrics.GetMetrics(),
		Queue: queueMetrics{
			Pending:  s.queue.Pending(),
			Capacity: s.queue.Capacity(),
		},
	})
}
