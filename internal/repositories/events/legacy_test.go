package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/arbor/pkg/models"
)

func TestParsePID(t *testing.T) {
	tests := []struct {
		name     string
		entityID string
		want     int64
		ok       bool
	}{
		{name: "Numeric", entityID: "4242", want: 4242, ok: true},
		{name: "Zero", entityID: "0", want: 0, ok: true},
		{name: "Negative", entityID: "-1", want: -1, ok: true},
		{name: "Empty", entityID: "", ok: false},
		{name: "NonNumeric", entityID: "proc-1", ok: false},
		{name: "TrailingJunk", entityID: "42abc", ok: false},
		{name: "Float", entityID: "4.2", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid, ok := parsePID(tt.entityID)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, pid)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	pid := int64(100)
	ppid := int64(7)
	stale := "stale"

	rows := normalize([]models.EndpointEvent{
		{UniquePID: &pid, UniquePPID: &ppid},
		{UniquePID: &pid, ParentEntityID: &stale},
		{},
	})

	require.Len(t, rows, 3)

	assert.Equal(t, "100", rows[0].EntityID)
	require.NotNil(t, rows[0].ParentEntityID)
	assert.Equal(t, "7", *rows[0].ParentEntityID)

	// A missing unique_ppid clears any stray parent value rather than
	// leaving the legacy column text in place.
	assert.Equal(t, "100", rows[1].EntityID)
	assert.Nil(t, rows[1].ParentEntityID)

	assert.Empty(t, rows[2].EntityID)
	assert.Nil(t, rows[2].ParentEntityID)
}

func TestLegacyStore_NonNumericIDs(t *testing.T) {
	// Non-numeric entity IDs cannot match legacy rows; every operation
	// reports "unknown entity" without touching the database. A nil DB
	// proves no query runs.
	repo := NewLegacyRepository(nil, nil)
	store := repo.ForEndpoint("ep-1")
	ctx := context.Background()

	lifecycle, err := store.LifecycleEvents(ctx, "proc-1")
	require.NoError(t, err)
	assert.Empty(t, lifecycle)

	relatedRows, err := store.RelatedEvents(ctx, "proc-1", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, relatedRows)

	children, err := store.Children(ctx, "proc-1", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, children)

	counts, total, err := store.CategoryCounts(ctx, "proc-1")
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.Zero(t, total)

	batch, err := store.LifecycleEventsForEntities(ctx, []string{"proc-1", "also-bad"})
	require.NoError(t, err)
	assert.Empty(t, batch)
}
