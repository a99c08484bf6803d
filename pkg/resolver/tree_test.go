package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/arbor/pkg/models"
)

// treeStore builds a small family: grandparent <- parent <- origin, origin
// with two children and a handful of related events.
func treeStore() *fakeStore {
	store := &fakeStore{}
	store.events = append(store.events,
		startEvent("grandparent", "", 0),
		startEvent("parent", "grandparent", time.Minute),
		startEvent("origin", "parent", 2*time.Minute),
		startEvent("child-a", "origin", 3*time.Minute),
		startEvent("child-b", "origin", 4*time.Minute),
		relatedEvent("origin", models.CategoryDNS, "e1", 5*time.Minute),
		relatedEvent("origin", models.CategoryFile, "e2", 6*time.Minute),
		relatedEvent("child-a", models.CategoryRegistry, "e3", 7*time.Minute),
	)
	return store
}

func defaultTreeParams() TreeParams {
	return TreeParams{Ancestors: 200, Generations: 3, Children: 10, Events: 100}
}

func TestService_Tree(t *testing.T) {
	ctx := context.Background()

	t.Run("ComposesAllBranches", func(t *testing.T) {
		svc := newTestService(treeStore())

		tree, err := svc.Tree(ctx, "origin", defaultTreeParams(), "")
		require.NoError(t, err)

		assert.Equal(t, "origin", tree.EntityID)
		require.Len(t, tree.Lifecycle, 1)
		assert.Equal(t, "origin", tree.Lifecycle[0].EntityID)

		// Ancestry: origin, parent, grandparent.
		require.Len(t, tree.Ancestry.Ancestors, 3)
		assert.Equal(t, "origin", tree.Ancestry.Ancestors[0].EntityID)
		assert.Equal(t, "parent", tree.Ancestry.Ancestors[1].EntityID)
		assert.Equal(t, "grandparent", tree.Ancestry.Ancestors[2].EntityID)
		assert.Nil(t, tree.Ancestry.NextAncestor)

		require.Len(t, tree.Children.ChildNodes, 2)

		require.Len(t, tree.RelatedEvents.Events, 2)
		assert.Nil(t, tree.RelatedEvents.NextEvent)
	})

	t.Run("StatsAttachedPerNode", func(t *testing.T) {
		svc := newTestService(treeStore())

		tree, err := svc.Tree(ctx, "origin", defaultTreeParams(), "")
		require.NoError(t, err)

		// Top-level stats are the origin's.
		require.NotNil(t, tree.Stats)
		assert.Equal(t, 2, tree.Stats.Total)
		assert.Equal(t, 1, tree.Stats.ByCategory[models.CategoryDNS])
		assert.Equal(t, 1, tree.Stats.ByCategory[models.CategoryNetwork])
		assert.Equal(t, 1, tree.Stats.ByCategory[models.CategoryFile])

		for _, node := range tree.Ancestry.Ancestors {
			require.NotNil(t, node.Stats, "missing stats on ancestor %s", node.EntityID)
		}
		for _, node := range tree.Children.ChildNodes {
			require.NotNil(t, node.Stats, "missing stats on child %s", node.EntityID)
			if node.EntityID == "child-a" {
				assert.Equal(t, 1, node.Stats.Total)
			} else {
				assert.Zero(t, node.Stats.Total)
			}
		}
	})

	t.Run("UnknownEntity", func(t *testing.T) {
		svc := newTestService(treeStore())

		tree, err := svc.Tree(ctx, "never-seen", defaultTreeParams(), "")
		require.NoError(t, err)
		assert.Empty(t, tree.Lifecycle)
		assert.Empty(t, tree.Ancestry.Ancestors)
		assert.Empty(t, tree.Children.ChildNodes)
		assert.Empty(t, tree.RelatedEvents.Events)
		require.NotNil(t, tree.Stats)
		assert.Zero(t, tree.Stats.Total)
	})

	t.Run("BranchLimitsApply", func(t *testing.T) {
		svc := newTestService(treeStore())

		tree, err := svc.Tree(ctx, "origin", TreeParams{
			Ancestors:   1,
			Generations: 1,
			Children:    1,
			Events:      1,
		}, "")
		require.NoError(t, err)

		require.Len(t, tree.Ancestry.Ancestors, 2) // origin + 1 ancestor
		require.NotNil(t, tree.Ancestry.NextAncestor)
		assert.Equal(t, "grandparent", *tree.Ancestry.NextAncestor)

		require.Len(t, tree.Children.ChildNodes, 1)
		require.NotNil(t, tree.Children.NextChild)

		require.Len(t, tree.RelatedEvents.Events, 1)
		require.NotNil(t, tree.RelatedEvents.NextEvent)
	})

	t.Run("InvalidBranchLimit", func(t *testing.T) {
		svc := newTestService(treeStore())

		_, err := svc.Tree(ctx, "origin", TreeParams{
			Ancestors:   0,
			Generations: 3,
			Children:    10,
			Events:      100,
		}, "")
		require.Error(t, err)
	})
}
