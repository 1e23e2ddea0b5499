package rating

import (
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

const (
	// PriorWeight is how many virtual ratings of PriorMean every doctor
	// starts with when ranked.
	PriorWeight = 5

	DefaultTopN = 3
	MaxTopN     = 50
)

var PriorMean = decimal.RequireFromString("4.0")

// Next folds one rating into an aggregate. The average is recomputed from
// the exact running sum and rounded half-up to two decimals, so repeated
// updates never accumulate rounding drift.
func Next(cur model.DoctorRating, rating int) model.DoctorRating {
	if cur.Count <= 0 {
		return model.DoctorRating{
			DoctorID: cur.DoctorID,
			Count:    1,
			Sum:      int64(rating),
			Average:  decimal.NewFromInt(int64(rating)).Round(2),
		}
	}

	count := cur.Count + 1
	sum := cur.Sum + int64(rating)
	return model.DoctorRating{
		DoctorID: cur.DoctorID,
		Count:    count,
		Sum:      sum,
		Average:  decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(count)), 2),
	}
}

// Score is the Bayesian ranking score (avg*count + 4.0*5) / (count + 5).
func Score(avg decimal.Decimal, count int) decimal.Decimal {
	weighted := avg.Mul(decimal.NewFromInt(int64(count))).
		Add(PriorMean.Mul(decimal.NewFromInt(PriorWeight)))
	return weighted.Div(decimal.NewFromInt(int64(count + PriorWeight)))
}

// ClampTopN normalises a requested ranking size.
func ClampTopN(n int) int {
	switch {
	case n <= 0:
		return DefaultTopN
	case n > MaxTopN:
		return MaxTopN
	default:
		return n
	}
}

func snapshot(d *model.Doctor) model.DoctorRating {
	return model.DoctorRating{
		DoctorID: d.UserID,
		Count:    d.RatingCount,
		Sum:      d.RatingSum,
		Average:  d.RatingAverage,
	}
}
