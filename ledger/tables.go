package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"election-ledger/models"
	"election-ledger/storage"
)

var ownerKey = []byte("owner")

var errCorruptTally = errors.New("corrupt tally entry")

func organizationKey(org string) []byte {
	return storage.Key().String(org).Bytes()
}

func electionKey(org string, id uint64) []byte {
	return storage.Key().String(org).Uint64(id).Bytes()
}

func tallyKey(org string, id uint64, candidate uint8) []byte {
	return storage.Key().String(org).Uint64(id).Uint8(candidate).Bytes()
}

func voterKey(org string, id uint64, voter string) []byte {
	return storage.Key().String(org).Uint64(id).String(voter).Bytes()
}

func getOrganization(r storage.Reader, org string) (*models.Organization, bool, error) {
	v, ok, err := r.Get(storage.TableOrganizations, organizationKey(org))
	if err != nil || !ok {
		return nil, false, err
	}
	var o models.Organization
	if err := json.Unmarshal(v, &o); err != nil {
		return nil, false, fmt.Errorf("decode organization %q: %w", org, err)
	}
	return &o, true, nil
}

func putOrganization(w storage.Writer, o *models.Organization) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return w.Put(storage.TableOrganizations, organizationKey(o.ID), data)
}

func getElection(r storage.Reader, org string, id uint64) (*models.Election, bool, error) {
	v, ok, err := r.Get(storage.TableElections, electionKey(org, id))
	if err != nil || !ok {
		return nil, false, err
	}
	var e models.Election
	if err := json.Unmarshal(v, &e); err != nil {
		return nil, false, fmt.Errorf("decode election %s/%d: %w", org, id, err)
	}
	return &e, true, nil
}

func putElection(w storage.Writer, e *models.Election) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return w.Put(storage.TableElections, electionKey(e.Organization, e.ID), data)
}

// tallyEntry is one stored counter of an election.
type tallyEntry struct {
	candidate uint8
	votes     uint64
}

func scanTallies(r storage.Reader, org string, id uint64) ([]tallyEntry, error) {
	var entries []tallyEntry
	err := r.Scan(storage.TableTallies, electionKey(org, id), func(k, v []byte) error {
		kr := storage.ReadKey(k)
		_ = kr.String()
		_ = kr.Uint64()
		candidate := kr.Uint8()
		if err := kr.Err(); err != nil {
			return err
		}
		if len(v) != 8 {
			return errCorruptTally
		}
		entries = append(entries, tallyEntry{candidate: candidate, votes: binary.BigEndian.Uint64(v)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read tallies %s/%d: %w", org, id, err)
	}
	return entries, nil
}

func incrementTally(w storage.Writer, org string, id uint64, candidate uint8) error {
	key := tallyKey(org, id, candidate)
	var votes uint64
	v, ok, err := w.Get(storage.TableTallies, key)
	if err != nil {
		return err
	}
	if ok {
		if len(v) != 8 {
			return errCorruptTally
		}
		votes = binary.BigEndian.Uint64(v)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, votes+1)
	return w.Put(storage.TableTallies, key, next)
}

func hasVoted(r storage.Reader, org string, id uint64, voter string) (bool, error) {
	_, ok, err := r.Get(storage.TableVoters, voterKey(org, id, voter))
	return ok, err
}

func putVoter(w storage.Writer, org string, id uint64, voter string) error {
	return w.Put(storage.TableVoters, voterKey(org, id, voter), []byte{1})
}

func countVoters(r storage.Reader, org string, id uint64) (uint64, error) {
	var n uint64
	err := r.Scan(storage.TableVoters, electionKey(org, id), func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}
