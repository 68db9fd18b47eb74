package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRoute struct {
	ID       int64
	TargetID int64
	Order    int
}

var testSpec = Spec[testRoute]{
	TargetID: func(r testRoute) int64 { return r.TargetID },
	Order:    func(r testRoute) int { return r.Order },
	NewRow: func(targetID int64, order int) testRoute {
		return testRoute{TargetID: targetID, Order: order}
	},
}

func targetsOf(rows []testRoute) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.TargetID)
	}
	return ids
}

func TestReconcileAddsEverythingToEmptyCollection(t *testing.T) {
	result := Reconcile(nil, []int64{10, 20, 30}, testSpec)

	require.Len(t, result.Added, 3)
	assert.Empty(t, result.Kept)
	assert.Empty(t, result.Removed)

	assert.Equal(t, []int64{10, 20, 30}, targetsOf(result.Added))
	assert.Equal(t, 1, result.Added[0].Order)
	assert.Equal(t, 2, result.Added[1].Order)
	assert.Equal(t, 3, result.Added[2].Order)
}

func TestReconcileKeepsExistingRowsUntouched(t *testing.T) {
	existing := []testRoute{
		{ID: 1, TargetID: 10, Order: 1},
		{ID: 2, TargetID: 20, Order: 2},
		{ID: 3, TargetID: 30, Order: 3},
	}

	// Existing orders {1,2,3} for {A,B,C}; new set {B,C,D}: B and C retain
	// their original rows and orders, D continues from max+1.
	result := Reconcile(existing, []int64{20, 30, 40}, testSpec)

	require.Len(t, result.Kept, 2)
	assert.Equal(t, int64(2), result.Kept[0].ID)
	assert.Equal(t, 2, result.Kept[0].Order)
	assert.Equal(t, int64(3), result.Kept[1].ID)
	assert.Equal(t, 3, result.Kept[1].Order)

	require.Len(t, result.Removed, 1)
	assert.Equal(t, int64(1), result.Removed[0].ID)

	require.Len(t, result.Added, 1)
	assert.Equal(t, int64(40), result.Added[0].TargetID)
	assert.Equal(t, 4, result.Added[0].Order)
}

func TestReconcileIsIdempotent(t *testing.T) {
	existing := []testRoute{
		{ID: 1, TargetID: 10, Order: 1},
		{ID: 2, TargetID: 20, Order: 2},
	}

	first := Reconcile(existing, []int64{10, 20, 30}, testSpec)
	assert.True(t, first.Changed())

	second := Reconcile(first.Rows(), []int64{10, 20, 30}, testSpec)
	assert.False(t, second.Changed())
	assert.Len(t, second.Kept, 3)
}

func TestReconcileCompleteness(t *testing.T) {
	existing := []testRoute{
		{ID: 1, TargetID: 10, Order: 1},
		{ID: 2, TargetID: 20, Order: 2},
	}

	cases := []struct {
		name    string
		targets []int64
		want    []int64
	}{
		{"disjoint set", []int64{30, 40}, []int64{30, 40}},
		{"overlap", []int64{20, 30}, []int64{20, 30}},
		{"empty clears", nil, nil},
		{"duplicates folded", []int64{30, 30, 10, 30}, []int64{10, 30}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Reconcile(existing, tc.targets, testSpec)

			got := targetsOf(result.Rows())
			assert.ElementsMatch(t, tc.want, got)
		})
	}
}

func TestReconcileDuplicateTargetsFoldedBeforeNumbering(t *testing.T) {
	result := Reconcile(nil, []int64{10, 10, 20, 10}, testSpec)

	require.Len(t, result.Added, 2)
	assert.Equal(t, int64(10), result.Added[0].TargetID)
	assert.Equal(t, 1, result.Added[0].Order)
	assert.Equal(t, int64(20), result.Added[1].TargetID)
	assert.Equal(t, 2, result.Added[1].Order)
}

func TestReconcileUnorderedMembership(t *testing.T) {
	membershipSpec := Spec[testRoute]{
		TargetID: func(r testRoute) int64 { return r.TargetID },
		NewRow: func(targetID int64, order int) testRoute {
			return testRoute{TargetID: targetID, Order: order}
		},
	}

	existing := []testRoute{{ID: 1, TargetID: 10}}
	result := Reconcile(existing, []int64{10, 20}, membershipSpec)

	require.Len(t, result.Added, 1)
	assert.Equal(t, 0, result.Added[0].Order)
	assert.Len(t, result.Kept, 1)
	assert.Empty(t, result.Removed)
}

func TestReconcileEmptyTargetsRemovesAll(t *testing.T) {
	existing := []testRoute{
		{ID: 1, TargetID: 10, Order: 1},
		{ID: 2, TargetID: 20, Order: 2},
	}

	result := Reconcile(existing, []int64{}, testSpec)

	assert.Empty(t, result.Kept)
	assert.Empty(t, result.Added)
	assert.Len(t, result.Removed, 2)
}
