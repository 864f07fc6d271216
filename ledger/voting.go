package ledger

import (
	"context"
	"fmt"
	"time"

	"election-ledger/models"
	"election-ledger/storage"
)

// HaveVoted reports whether voter has a ballot recorded in election (org, id).
// Unknown elections report false.
func (l *Ledger) HaveVoted(ctx context.Context, org string, id uint64, voter string) (bool, error) {
	var voted bool
	err := l.store.View(ctx, func(r storage.Reader) error {
		var err error
		voted, err = hasVoted(r, org, id, voter)
		return err
	})
	return voted, err
}

// Vote records voter's single ballot for candidate in election (org, id).
func (l *Ledger) Vote(ctx context.Context, org string, id uint64, voter string, candidate uint8, now time.Time) (err error) {
	defer func(start time.Time) { l.observe(OpVote, start, err) }(time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.store.Update(ctx, func(w storage.Writer) error {
		e, err := l.election(w, org, id)
		if err != nil {
			return err
		}
		if err := checkVotingWindow(e, now); err != nil {
			return err
		}
		voted, err := hasVoted(w, org, id, voter)
		if err != nil {
			return err
		}
		if voted {
			return ErrAlreadyVoted
		}
		if int(candidate) >= len(e.Candidates) {
			return ErrInvalidCandidate
		}

		if err := incrementTally(w, org, id, candidate); err != nil {
			return fmt.Errorf("store tally: %w", err)
		}
		if err := putVoter(w, org, id, voter); err != nil {
			return fmt.Errorf("store voter: %w", err)
		}
		_, err = l.journal.Append(w, models.KindVoteCast, voter, now, models.Ballot{
			Organization: org,
			ElectionID:   id,
			Voter:        voter,
			CandidateID:  candidate,
		})
		return err
	})
	if err != nil {
		l.logger.Debug("vote rejected",
			"event", "ledger_vote_rejected",
			"organization_id", org,
			"election_id", id,
			"voter_id", voter,
			"error", err.Error(),
		)
		return err
	}

	l.logger.Info("vote accepted",
		"event", "ledger_vote_accepted",
		"organization_id", org,
		"election_id", id,
		"voter_id", voter,
	)
	return nil
}
