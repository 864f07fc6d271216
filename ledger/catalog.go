package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"election-ledger/models"
	"election-ledger/storage"
)

// Page size bounds for ListElections.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// CreateElection stores draft as the caller organization's next election and
// returns its id. payment must equal the creation fee exactly.
func (l *Ledger) CreateElection(ctx context.Context, caller string, payment *uint256.Int, draft models.ElectionDraft, now time.Time) (id uint64, err error) {
	defer func(start time.Time) { l.observe(OpCreateElection, start, err) }(time.Now())

	if err := validateDraft(draft, now); err != nil {
		l.logger.Debug("election draft rejected",
			"event", "ledger_election_invalid",
			"organization_id", caller,
			"error", err.Error(),
		)
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var created *models.Election
	err = l.store.Update(ctx, func(w storage.Writer) error {
		org, ok, err := getOrganization(w, caller)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotRegistered
		}
		if err := checkPayment(payment, l.fee); err != nil {
			return err
		}

		e := &models.Election{
			Organization: caller,
			ID:           org.ElectionCount,
			Start:        draft.Start,
			End:          draft.End,
			Title:        draft.Title,
			Description:  draft.Description,
			Candidates:   append([]string(nil), draft.Candidates...),
		}
		if err := putElection(w, e); err != nil {
			return fmt.Errorf("store election: %w", err)
		}
		org.ElectionCount++
		if err := putOrganization(w, org); err != nil {
			return fmt.Errorf("store organization: %w", err)
		}

		paid := payment
		if paid == nil {
			paid = new(uint256.Int)
		}
		if _, err := l.journal.Append(w, models.KindElectionCreated, caller, now,
			models.ElectionCreated{Election: *e, Payment: paid.Dec()}); err != nil {
			return err
		}
		created = e
		return nil
	})
	if err != nil {
		l.logger.Debug("election creation rejected",
			"event", "ledger_election_rejected",
			"organization_id", caller,
			"error", err.Error(),
		)
		return 0, err
	}

	l.cache.Add(string(electionKey(created.Organization, created.ID)), created)
	l.logger.Info("election created",
		"event", "ledger_election_created",
		"organization_id", created.Organization,
		"election_id", created.ID,
		"candidates", len(created.Candidates),
	)
	return created.ID, nil
}

// GetElection returns the election with its current tallies. now only
// decides the reported phase.
func (l *Ledger) GetElection(ctx context.Context, org string, id uint64, now time.Time) (*models.ElectionView, error) {
	var view *models.ElectionView
	err := l.store.View(ctx, func(r storage.Reader) error {
		var err error
		view, err = l.view(r, org, id, now)
		return err
	})
	return view, err
}

// ListElections returns one page of org's elections in id order. Page
// numbers start at 1; zero values select the first page and the default size.
func (l *Ledger) ListElections(ctx context.Context, org string, pageNumber, pageSize int, now time.Time) (*models.Page[models.ElectionView], error) {
	if pageNumber == 0 {
		pageNumber = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageNumber < 0 || pageSize < 0 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: page %d size %d", ErrInvalidPage, pageNumber, pageSize)
	}

	page := &models.Page[models.ElectionView]{
		PageNumber: pageNumber,
		PageSize:   pageSize,
		Values:     make([]models.ElectionView, 0, pageSize),
	}
	err := l.store.View(ctx, func(r storage.Reader) error {
		o, ok, err := getOrganization(r, org)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotRegistered
		}

		total := o.ElectionCount
		size := uint64(pageSize)
		page.ElementsCount = int64(total)
		pages := (total + size - 1) / size
		page.PageCount = int64(pages)
		if uint64(pageNumber) > pages {
			return nil
		}

		first := uint64(pageNumber-1) * size
		for id := first; id < total && id < first+size; id++ {
			v, err := l.view(r, org, id, now)
			if err != nil {
				return err
			}
			page.Values = append(page.Values, *v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (l *Ledger) view(r storage.Reader, org string, id uint64, now time.Time) (*models.ElectionView, error) {
	e, err := l.election(r, org, id)
	if err != nil {
		return nil, err
	}
	entries, err := scanTallies(r, org, id)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, len(e.Candidates))
	for i, name := range e.Candidates {
		candidates[i] = models.Candidate{ID: uint8(i), Name: name}
	}
	for _, t := range entries {
		if int(t.candidate) < len(candidates) {
			candidates[t.candidate].Votes = t.votes
		}
	}

	return &models.ElectionView{
		Organization: e.Organization,
		ID:           e.ID,
		Start:        e.Start,
		End:          e.End,
		Title:        e.Title,
		Description:  e.Description,
		Phase:        e.PhaseAt(now),
		Candidates:   candidates,
	}, nil
}
