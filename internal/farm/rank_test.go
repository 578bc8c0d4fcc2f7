package farm

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmzap/internal/model"
)

var evalTime = time.Unix(1_700_000_000, 0)

func stream(chefID, lpID string, shares int64) model.IncentiveStream {
	return model.IncentiveStream{
		ChefID:      chefID,
		LpID:        lpID,
		RewardCoin:  "REWARD",
		TotalShares: big.NewInt(shares),
		StartTime:   evalTime.Add(-24 * time.Hour).Unix(),
		EndTime:     evalTime.Add(30 * 24 * time.Hour).Unix(),
		Status:      model.StreamStatusActive,
	}
}

func chefIDs(candidates []Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Stream.ChefID)
	}
	return out
}

func TestFilterSameLpDifferentChef(t *testing.T) {
	source := model.IncentiveStream{ChefID: "0", LpID: "A"}
	streams := []model.IncentiveStream{
		stream("1", "A", 100),
		stream("2", "A", 50),
		stream("3", "B", 0),
	}

	candidates := Filter(source, streams, evalTime)
	Sort(candidates)
	assert.Equal(t, []string{"1", "2"}, chefIDs(candidates))
}

func TestFilterRejectsEachPredicate(t *testing.T) {
	source := model.IncentiveStream{ChefID: "7", LpID: "42"}

	sameChef := stream("007", "42", 10)
	otherLp := stream("8", "43", 10)
	inactive := stream("9", "42", 10)
	inactive.Status = "ENDED"
	expired := stream("10", "42", 10)
	expired.EndTime = evalTime.Unix()
	valid := stream("11", "0042", 10)
	lowerStatus := stream("12", "42", 10)
	lowerStatus.Status = "active"

	candidates := Filter(source, []model.IncentiveStream{sameChef, otherLp, inactive, expired, valid, lowerStatus}, evalTime)
	assert.ElementsMatch(t, []string{"11", "12"}, chefIDs(candidates))
}

func TestSortYieldThenSharesThenChef(t *testing.T) {
	candidates := []Candidate{
		{Stream: stream("5", "A", 10)},
		{Stream: stream("4", "A", 10), Yield: decimal.NewNullDecimal(decimal.NewFromFloat(0.1))},
		{Stream: stream("3", "A", 90), Yield: decimal.NewNullDecimal(decimal.NewFromFloat(0.5))},
		{Stream: stream("2", "A", 20), Yield: decimal.NewNullDecimal(decimal.NewFromFloat(0.1))},
		{Stream: stream("10", "A", 10)},
		{Stream: stream("9", "A", 10)},
	}

	Sort(candidates)
	assert.Equal(t, []string{"3", "2", "4", "5", "9", "10"}, chefIDs(candidates))
}

func TestSortIsStableUnderRepeatedEvaluation(t *testing.T) {
	source := model.IncentiveStream{ChefID: "0", LpID: "A"}
	streams := []model.IncentiveStream{
		stream("3", "A", 50),
		stream("1", "A", 50),
		stream("2", "A", 100),
	}

	first := Filter(source, streams, evalTime)
	Sort(first)
	for i := 0; i < 5; i++ {
		again := Filter(source, streams, evalTime)
		Sort(again)
		require.Equal(t, chefIDs(first), chefIDs(again))
	}
	assert.Equal(t, []string{"2", "1", "3"}, chefIDs(first))
}

func TestSelectionReconcile(t *testing.T) {
	var sel Selection
	candidates := []Candidate{{Stream: stream("1", "A", 1)}, {Stream: stream("2", "A", 1)}}

	assert.Equal(t, "", sel.Reconcile(candidates))

	sel.Select("02")
	assert.Equal(t, "2", sel.Reconcile(candidates))

	// Re-sorting does not lose the selection.
	candidates[0], candidates[1] = candidates[1], candidates[0]
	assert.Equal(t, "2", sel.Reconcile(candidates))

	// The target expired and vanished.
	assert.Equal(t, "", sel.Reconcile(candidates[1:]))
	assert.Equal(t, "", sel.ChefID())
}
