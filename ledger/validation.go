package ledger

import (
	"time"

	"github.com/holiman/uint256"

	"election-ledger/models"
)

// validateDraft applies the draft checks in order and returns the first
// failure.
func validateDraft(d models.ElectionDraft, now time.Time) error {
	// 1. At least two candidates.
	if len(d.Candidates) < models.MinCandidates {
		return invalid(TooFewCandidates, "got %d, need at least %d", len(d.Candidates), models.MinCandidates)
	}

	// 2. Candidate ids must fit in a uint8.
	if len(d.Candidates) > models.MaxCandidates {
		return invalid(TooManyCandidates, "got %d, at most %d allowed", len(d.Candidates), models.MaxCandidates)
	}

	// 3. Start strictly in the future.
	if !d.Start.After(now) {
		return invalid(StartNotFuture, "start %s is not after %s",
			d.Start.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	}

	// 4. Non-empty window.
	if !d.Start.Before(d.End) {
		return invalid(StartNotBeforeEnd, "start %s is not before end %s",
			d.Start.Format(time.RFC3339Nano), d.End.Format(time.RFC3339Nano))
	}

	return nil
}

// checkPayment requires payment to equal fee exactly. A nil payment counts as
// zero.
func checkPayment(payment, fee *uint256.Int) error {
	if payment == nil {
		payment = new(uint256.Int)
	}
	if !payment.Eq(fee) {
		return invalid(PaymentMismatch, "attached %s, creation fee is %s", payment.Dec(), fee.Dec())
	}
	return nil
}

// checkVotingWindow reports whether a ballot cast at now falls inside the
// election window. Both bounds are exclusive.
func checkVotingWindow(e *models.Election, now time.Time) error {
	switch e.PhaseAt(now) {
	case models.PhaseNotYetOpen:
		return ErrNotStarted
	case models.PhaseClosed:
		return ErrEnded
	}
	return nil
}
