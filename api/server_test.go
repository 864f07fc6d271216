package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-ledger/chain"
	"election-ledger/ledger"
	"election-ledger/service"
	"election-ledger/signing"
	"election-ledger/storage/mem"
)

const (
	owner = "owner.testnet"
	fee   = "1000000000000000000000000"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type harness struct {
	t      *testing.T
	server *Server
	queue  *service.Queue
	clock  *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: t0}
	h := newHarnessWithClock(t, clock)
	h.clock = clock
	return h
}

func newHarnessWithClock(t *testing.T, clock Clock) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer, err := signing.Generate()
	require.NoError(t, err)
	metrics := service.NewMetricsCollector()

	l, err := ledger.New(context.Background(), mem.New(), chain.New(signer), ledger.Config{
		Owner:   owner,
		Logger:  logger,
		Metrics: metrics,
	})
	require.NoError(t, err)

	q := service.NewQueue(8, logger)
	q.Start()
	t.Cleanup(q.Stop)

	s := NewServer(Config{Ledger: l, Queue: q, Metrics: metrics, Clock: clock, Logger: logger})
	return &harness{t: t, server: s, queue: q}
}

func (h *harness) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) register(org string) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/organizations", gin.H{"organization_id": org}, map[string]string{headerCaller: owner})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func electionBody(candidates ...string) gin.H {
	return gin.H{
		"start":       t0.Add(24 * time.Hour),
		"end":         t0.Add(72 * time.Hour),
		"title":       "Board",
		"description": "Annual board election",
		"candidates":  candidates,
	}
}

func (h *harness) create(org string, candidates ...string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/elections", electionBody(candidates...),
		map[string]string{headerCaller: org, headerDeposit: fee})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["election_id"]
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestPing(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/ping", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

func TestRegisterOrganization(t *testing.T) {
	h := newHarness(t)
	body := gin.H{"organization_id": "org1"}

	rec := h.do(http.MethodPost, "/organizations", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_caller", decodeError(t, rec).Error)

	rec = h.do(http.MethodPost, "/organizations", body, map[string]string{headerCaller: "mallory"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error)

	rec = h.do(http.MethodPost, "/organizations", gin.H{}, map[string]string{headerCaller: owner})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	h.register("org1")

	rec = h.do(http.MethodPost, "/organizations", body, map[string]string{headerCaller: owner})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_registered", decodeError(t, rec).Error)
}

func TestElectionsCount(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/organizations/org1/elections/count", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_registered", decodeError(t, rec).Error)

	h.register("org1")
	h.create("org1", "a", "b")
	rec = h.do(http.MethodGet, "/organizations/org1/elections/count", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"organization_id":"org1","elections_count":1}`, rec.Body.String())
}

func TestCreateElection(t *testing.T) {
	h := newHarness(t)
	h.register("org1")

	assert.Equal(t, "0", h.create("org1", "a", "b"))
	assert.Equal(t, "1", h.create("org1", "a", "b"))

	tests := []struct {
		name    string
		caller  string
		deposit string
		body    gin.H
		status  int
		kind    string
	}{
		{"too few candidates", "org1", fee, electionBody("a"), http.StatusUnprocessableEntity, "too_few_candidates"},
		{"wrong deposit", "org1", "1", electionBody("a", "b"), http.StatusUnprocessableEntity, "payment_mismatch"},
		{"missing deposit", "org1", "", electionBody("a", "b"), http.StatusUnprocessableEntity, "payment_mismatch"},
		{"malformed deposit", "org1", "one", electionBody("a", "b"), http.StatusBadRequest, "invalid_deposit"},
		{"unregistered", "org2", fee, electionBody("a", "b"), http.StatusNotFound, "not_registered"},
		{"missing caller", "", fee, electionBody("a", "b"), http.StatusUnauthorized, "missing_caller"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.caller != "" {
				headers[headerCaller] = tt.caller
			}
			if tt.deposit != "" {
				headers[headerDeposit] = tt.deposit
			}
			rec := h.do(http.MethodPost, "/elections", tt.body, headers)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decodeError(t, rec).Error)
		})
	}

	rec := h.do(http.MethodGet, "/organizations/org1/elections/count", nil, nil)
	assert.JSONEq(t, `{"organization_id":"org1","elections_count":2}`, rec.Body.String())
}

func TestGetElection(t *testing.T) {
	h := newHarness(t)
	h.register("org1")
	id := h.create("org1", "Alice", "Bob")

	rec := h.do(http.MethodGet, "/organizations/org1/elections/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "0", view["election_id"])
	assert.Equal(t, "not_yet_open", view["phase"])
	assert.Equal(t, t0.Add(24*time.Hour).Format(time.RFC3339Nano), view["start"])
	assert.Len(t, view["candidates"], 2)

	rec = h.do(http.MethodGet, "/organizations/org1/elections/9", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "election_not_found", decodeError(t, rec).Error)

	rec = h.do(http.MethodGet, "/organizations/org1/elections/-1", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_election_id", decodeError(t, rec).Error)
}

func TestVoteScenario(t *testing.T) {
	h := newHarness(t)
	h.register("org1")
	id := h.create("org1", "Alice", "Bob")
	votePath := "/organizations/org1/elections/" + id + "/votes"
	voter := map[string]string{headerCaller: "bob-voter"}

	rec := h.do(http.MethodPost, votePath, gin.H{"candidate_id": 1}, voter)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_started", decodeError(t, rec).Error)

	h.clock.Advance(48 * time.Hour)

	rec = h.do(http.MethodPost, votePath, gin.H{"candidate_id": 1}, voter)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/organizations/org1/elections/"+id+"/voters/bob-voter", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"organization_id":"org1","election_id":"0","voter_id":"bob-voter","voted":true}`, rec.Body.String())

	rec = h.do(http.MethodPost, votePath, gin.H{"candidate_id": 0}, voter)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_voted", decodeError(t, rec).Error)

	rec = h.do(http.MethodPost, votePath, gin.H{"candidate_id": 2}, map[string]string{headerCaller: "carol"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_candidate", decodeError(t, rec).Error)

	rec = h.do(http.MethodPost, votePath, gin.H{"candidate_id": 300}, map[string]string{headerCaller: "carol"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodPost, votePath, gin.H{}, map[string]string{headerCaller: "carol"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/organizations/org1/elections/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Phase      string `json:"phase"`
		Candidates []struct {
			ID    int    `json:"candidate_id"`
			Name  string `json:"name"`
			Votes uint64 `json:"votes"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "open", view.Phase)
	require.Len(t, view.Candidates, 2)
	assert.Equal(t, "Alice", view.Candidates[0].Name)
	assert.Zero(t, view.Candidates[0].Votes)
	assert.Equal(t, "Bob", view.Candidates[1].Name)
	assert.Equal(t, uint64(1), view.Candidates[1].Votes)

	h.clock.Advance(24 * time.Hour)
	rec = h.do(http.MethodPost, votePath, gin.H{"candidate_id": 0}, map[string]string{headerCaller: "dave"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ended", decodeError(t, rec).Error)

	rec = h.do(http.MethodGet, "/organizations/org1/elections/"+id+"/audit", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		TotalVotes uint64 `json:"total_votes"`
		VoterCount uint64 `json:"voter_count"`
		Consistent bool   `json:"consistent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Consistent)
	assert.Equal(t, uint64(1), report.TotalVotes)
	assert.Equal(t, uint64(1), report.VoterCount)
}

func TestListElections(t *testing.T) {
	h := newHarness(t)
	h.register("org1")
	for i := 0; i < 3; i++ {
		h.create("org1", "a", "b")
	}

	rec := h.do(http.MethodGet, "/organizations/org1/elections?page=2&size=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		PageNumber    int `json:"page_number"`
		PageSize      int `json:"page_size"`
		ElementsCount int `json:"elements_count"`
		PageCount     int `json:"page_count"`
		Values        []struct {
			ID string `json:"election_id"`
		} `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.PageNumber)
	assert.Equal(t, 3, page.ElementsCount)
	assert.Equal(t, 2, page.PageCount)
	require.Len(t, page.Values, 1)
	assert.Equal(t, "2", page.Values[0].ID)

	rec = h.do(http.MethodGet, "/organizations/org1/elections?size=1000", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_page", decodeError(t, rec).Error)

	rec = h.do(http.MethodGet, "/organizations/org1/elections?page=x", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_page", decodeError(t, rec).Error)
}

func TestChainEndpoints(t *testing.T) {
	h := newHarness(t)
	h.register("org1")
	h.create("org1", "a", "b")

	rec := h.do(http.MethodGet, "/chain?from=1&limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var blocks struct {
		From   uint64 `json:"from"`
		Blocks []struct {
			Height uint64 `json:"height"`
			Kind   string `json:"kind"`
			Hash   string `json:"hash"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &blocks))
	require.Len(t, blocks.Blocks, 1)
	assert.Equal(t, uint64(1), blocks.Blocks[0].Height)
	assert.Equal(t, "election_created", blocks.Blocks[0].Kind)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, blocks.Blocks[0].Hash)

	rec = h.do(http.MethodGet, "/chain?from=abc", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/chain/verify", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Length uint64 `json:"length"`
		Valid  bool   `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, uint64(2), report.Length)
}

// stallingClock ticks one second per reading and holds its first reading
// until released.
type stallingClock struct {
	calls   atomic.Int64
	stalled chan struct{}
	release chan struct{}
}

func newStallingClock() *stallingClock {
	return &stallingClock{stalled: make(chan struct{}), release: make(chan struct{})}
}

func (c *stallingClock) Now() time.Time {
	n := c.calls.Add(1)
	if n == 1 {
		close(c.stalled)
		<-c.release
	}
	return t0.Add(time.Duration(n) * time.Second)
}

type tickingClock struct {
	calls atomic.Int64
}

func (c *tickingClock) Now() time.Time {
	return t0.Add(time.Duration(c.calls.Add(1)) * time.Millisecond)
}

func verifyReport(t *testing.T, h *harness) (length uint64, valid bool) {
	t.Helper()
	rec := h.do(http.MethodGet, "/chain/verify", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Length uint64 `json:"length"`
		Valid  bool   `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report), rec.Body.String())
	return report.Length, report.Valid
}

func TestMutationTimeFollowsApplyOrder(t *testing.T) {
	clock := newStallingClock()
	h := newHarnessWithClock(t, clock)
	headers := map[string]string{headerCaller: owner}

	first := make(chan int, 1)
	go func() {
		first <- h.do(http.MethodPost, "/organizations", gin.H{"organization_id": "org1"}, headers).Code
	}()
	<-clock.stalled

	// The first registration holds the worker while reading the clock, so
	// the second one can only queue behind it.
	second := make(chan int, 1)
	go func() {
		second <- h.do(http.MethodPost, "/organizations", gin.H{"organization_id": "org2"}, headers).Code
	}()
	require.Eventually(t, func() bool { return h.queue.Pending() == 1 }, time.Second, time.Millisecond)
	close(clock.release)

	require.Equal(t, http.StatusCreated, <-first)
	require.Equal(t, http.StatusCreated, <-second)

	length, valid := verifyReport(t, h)
	assert.Equal(t, uint64(2), length)
	assert.True(t, valid)
}

func TestConcurrentMutationsKeepChainValid(t *testing.T) {
	h := newHarnessWithClock(t, &tickingClock{})
	headers := map[string]string{headerCaller: owner}

	const orgs = 8
	codes := make(chan int, orgs)
	var wg sync.WaitGroup
	for i := 0; i < orgs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes <- h.do(http.MethodPost, "/organizations",
				gin.H{"organization_id": fmt.Sprintf("org%d", i)}, headers).Code
		}(i)
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		require.Equal(t, http.StatusCreated, code)
	}

	length, valid := verifyReport(t, h)
	assert.Equal(t, uint64(orgs), length)
	assert.True(t, valid)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.register("org1")
	h.do(http.MethodPost, "/organizations", gin.H{"organization_id": "org1"}, map[string]string{headerCaller: owner})

	rec := h.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Operations map[string]struct {
			Accepted int `json:"accepted"`
			Rejected int `json:"rejected"`
		} `json:"operations"`
		Queue struct {
			Capacity int `json:"capacity"`
		} `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Operations[ledger.OpRegisterOrganization].Accepted)
	assert.Equal(t, 1, resp.Operations[ledger.OpRegisterOrganization].Rejected)
	assert.Equal(t, 8, resp.Queue.Capacity)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{service.ErrQueueFull, http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("submit: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("wrapped: %w", ledger.ErrElectionNotFound), http.StatusNotFound, "election_not_found"},
		{&ledger.ValidationError{Kind: ledger.StartNotFuture}, http.StatusUnprocessableEntity, "start_not_future"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, kind := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.kind, kind, tt.err.Error())
	}
}
