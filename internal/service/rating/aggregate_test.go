package rating

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

func TestNextScenario(t *testing.T) {
	agg := model.DoctorRating{}

	agg = Next(agg, 5)
	assert.Equal(t, 1, agg.Count)
	assert.Equal(t, "5.00", agg.Average.StringFixed(2))

	agg = Next(agg, 3)
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, "4.00", agg.Average.StringFixed(2))

	agg = Next(agg, 4)
	assert.Equal(t, 3, agg.Count)
	assert.Equal(t, "4.00", agg.Average.StringFixed(2))
}

func TestNextRoundsHalfUp(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    string
	}{
		{"two thirds", []int{5, 5, 4}, "4.67"},
		{"one third", []int{5, 4, 4}, "4.33"},
		{"exact half cent", []int{5, 5, 5, 5, 5, 5, 3, 4}, "4.63"},
		{"single low", []int{1}, "1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := model.DoctorRating{}
			for _, r := range tt.ratings {
				agg = Next(agg, r)
			}
			assert.Equal(t, len(tt.ratings), agg.Count)
			assert.Equal(t, tt.want, agg.Average.StringFixed(2))
		})
	}
}

func TestNextHasNoDrift(t *testing.T) {
	agg := model.DoctorRating{}
	var sum int64
	for i := 0; i < 1000; i++ {
		r := i%5 + 1
		sum += int64(r)
		agg = Next(agg, r)
	}
	want := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(1000), 2)
	assert.True(t, want.Equal(agg.Average), "got %s want %s", agg.Average, want)
	assert.Equal(t, sum, agg.Sum)
}

func TestScore(t *testing.T) {
	a := Score(decimal.RequireFromString("5.0"), 1)
	b := Score(decimal.RequireFromString("4.9"), 100)

	assert.Equal(t, "4.17", a.Round(2).String())
	assert.Equal(t, "4.857", b.Round(3).String())
	assert.True(t, b.GreaterThan(a))

	// A doctor without ratings scores the prior mean
	assert.True(t, Score(decimal.Zero, 0).Equal(PriorMean))
}

func TestClampTopN(t *testing.T) {
	assert.Equal(t, DefaultTopN, ClampTopN(0))
	assert.Equal(t, DefaultTopN, ClampTopN(-4))
	assert.Equal(t, 7, ClampTopN(7))
	assert.Equal(t, MaxTopN, ClampTopN(1000))
}
