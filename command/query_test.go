package command

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCardAcceptsBareSelector(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("a", CreateOptions{Metric: "temp"}))
	require.NoError(t, db.Create("b", CreateOptions{Metric: "hum"}))

	n, err := db.Card("")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestCardWithFilter(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("a", CreateOptions{Metric: "temp"}))
	require.NoError(t, db.Create("b", CreateOptions{Metric: "hum"}))

	n, err := db.Card(`temp`)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestAddBulkRejectsNaN(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("k", CreateOptions{}))
	_, err := db.AddBulk("k", BulkPayload{Timestamps: []int64{1, 2}, Values: []float64{1, math.NaN()}}, AddOptions{})
	require.Error(t, err)
}

func TestAddBulkRejectsInf(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("k", CreateOptions{}))
	_, err := db.AddBulk("k", BulkPayload{Timestamps: []int64{1}, Values: []float64{math.Inf(1)}}, AddOptions{})
	require.Error(t, err)
}

// TestResolveSelectorReusesPlanner locks in that Database holds one
// long-lived *query.Planner instead of constructing a fresh (and thus
// empty) regex cache on every call (§2).
func TestResolveSelectorReusesPlanner(t *testing.T) {
	db := newTestDB()
	require.NoError(t, db.Create("a", CreateOptions{Metric: "temp"}))

	_, err := db.resolveSelector(`{__name__=~"te.*"}`)
	require.NoError(t, err)
	planner := db.planner

	_, err = db.resolveSelector(`{__name__=~"te.*"}`)
	require.NoError(t, err)
	require.Same(t, planner, db.planner)
}
