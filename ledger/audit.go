package ledger

import (
	"context"

	"election-ledger/models"
	"election-ledger/storage"
)

// AuditElection recounts the stored tallies of (org, id) and compares their
// sum with the number of voter records. Tally entries for candidates outside
// the election also make the report inconsistent.
func (l *Ledger) AuditElection(ctx context.Context, org string, id uint64) (*models.AuditReport, error) {
	var report *models.AuditReport
	err := l.store.View(ctx, func(r storage.Reader) error {
		e, err := l.election(r, org, id)
		if err != nil {
			return err
		}
		entries, err := scanTallies(r, org, id)
		if err != nil {
			return err
		}
		voters, err := countVoters(r, org, id)
		if err != nil {
			return err
		}

		report = &models.AuditReport{
			Organization: org,
			ElectionID:   id,
			VoterCount:   voters,
			Candidates:   make([]models.Candidate, len(e.Candidates)),
		}
		for i, name := range e.Candidates {
			report.Candidates[i] = models.Candidate{ID: uint8(i), Name: name}
		}
		for _, t := range entries {
			if int(t.candidate) >= len(e.Candidates) {
				report.StrayEntries++
				continue
			}
			report.Candidates[t.candidate].Votes = t.votes
			report.TotalVotes += t.votes
		}
		report.Consistent = report.StrayEntries == 0 && report.TotalVotes == report.VoterCount
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		l.logger.Warn("election audit found inconsistency",
			"event", "ledger_audit_inconsistent",
			"organization_id", org,
			"election_id", id,
			"total_votes", report.TotalVotes,
			"voter_count", report.VoterCount,
			"stray_entries", report.StrayEntries,
		)
	}
	return report, nil
}
