package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	e := &Election{Start: start, End: start.Add(time.Hour)}

	tests := []struct {
		name string
		now  time.Time
		want Phase
	}{
		{"before start", start.Add(-time.Second), PhaseNotYetOpen},
		{"at start", start, PhaseNotYetOpen},
		{"inside window", start.Add(time.Minute), PhaseOpen},
		{"at end", start.Add(time.Hour), PhaseClosed},
		{"after end", start.Add(2 * time.Hour), PhaseClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.PhaseAt(tt.now))
		})
	}
}

func TestElectionIDIsDecimalString(t *testing.T) {
	data, err := json.Marshal(Election{ID: 18446744073709551615})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"election_id":"18446744073709551615"`)

	var back Election
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, uint64(18446744073709551615), back.ID)
}

func TestBlockHashCoversPayload(t *testing.T) {
	b := &Block{Height: 1, TxID: "tx", Kind: KindVoteCast, Caller: "bob", Payload: json.RawMessage(`{"a":1}`)}
	b.Hash = b.CalculateHash()
	require.Len(t, b.Hash, 32)
	require.True(t, b.HashValid())

	b.Payload = json.RawMessage(`{"a":2}`)
	require.False(t, b.HashValid())
}
