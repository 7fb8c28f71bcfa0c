package scraper

import (
	"math"
	"sort"

	"ChainPull/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// SelectNearTheMoney picks, for calls and then puts, the depth strikes
// nearest to price at or below it and the depth nearest strictly above it.
// A short side is topped up from the other one. Contracts come back in order
// of distance from price; ties keep their input order.
func SelectNearTheMoney(contracts []models.OptionContract, price float64, depth int) []models.OptionContract {
	out := make([]models.OptionContract, 0, 4*depth)
	for _, typ := range []string{models.OptionTypeCall, models.OptionTypePut} {
		out = append(out, selectSide(contracts, typ, price, depth)...)
	}
	return out
}

func selectSide(contracts []models.OptionContract, typ string, price float64, depth int) []models.OptionContract {
	var sorted []models.OptionContract
	for _, c := range contracts {
		if c.Type == typ {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(price-sorted[i].StrikePrice) < math.Abs(price-sorted[j].StrikePrice)
	})

	var below, above int
	for _, c := range sorted {
		if c.StrikePrice <= price {
			below++
		} else {
			above++
		}
	}
	takeBelow := min(depth, below)
	takeAbove := min(depth, above)
	if takeBelow < depth {
		takeAbove = min(above, takeAbove+depth-takeBelow)
	}
	if takeAbove < depth {
		takeBelow = min(below, takeBelow+depth-takeAbove)
	}

	out := make([]models.OptionContract, 0, takeBelow+takeAbove)
	for _, c := range sorted {
		if c.StrikePrice <= price {
			if takeBelow == 0 {
				continue
			}
			takeBelow--
		} else {
			if takeAbove == 0 {
				continue
			}
			takeAbove--
		}
		out = append(out, c)
	}
	return out
}

// ImpliedVolatilities returns the positive IVs of the given contracts.
func ImpliedVolatilities(contracts []models.OptionContract) []float64 {
	ivs := make([]float64, 0, len(contracts))
	for _, c := range contracts {
		if c.ImpliedVolatility > 0 {
			ivs = append(ivs, c.ImpliedVolatility)
		}
	}
	return ivs
}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// Median averages the two middle values for even-length input.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
