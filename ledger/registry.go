package ledger

import (
	"context"
	"fmt"
	"time"

	"election-ledger/models"
	"election-ledger/storage"
)

// RegisterOrganization lets the owner admit org as an election creator.
func (l *Ledger) RegisterOrganization(ctx context.Context, caller, org string, now time.Time) (err error) {
	defer func(start time.Time) { l.observe(OpRegisterOrganization, start, err) }(time.Now())

	if caller != l.owner {
		l.logger.Debug("organization registration rejected",
			"event", "ledger_register_unauthorized",
			"caller", caller,
			"organization_id", org,
		)
		return ErrUnauthorized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.store.Update(ctx, func(w storage.Writer) error {
		_, exists, err := getOrganization(w, org)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyRegistered
		}
		if err := putOrganization(w, &models.Organization{ID: org}); err != nil {
			return fmt.Errorf("store organization: %w", err)
		}
		_, err = l.journal.Append(w, models.KindOrganizationRegistered, caller, now,
			models.OrganizationRegistered{Organization: org})
		return err
	})
	if err != nil {
		l.logger.Debug("organization registration rejected",
			"event", "ledger_register_rejected",
			"organization_id", org,
			"error", err.Error(),
		)
		return err
	}

	l.logger.Info("organization registered",
		"event", "ledger_organization_registered",
		"organization_id", org,
	)
	return nil
}

// ElectionsCount returns how many elections org has created.
func (l *Ledger) ElectionsCount(ctx context.Context, org string) (uint64, error) {
	var count uint64
	err := l.store.View(ctx, func(r storage.Reader) error {
		o, ok, err := getOrganization(r, org)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotRegistered
		}
		count = o.ElectionCount
		return nil
	})
	return count, err
}
