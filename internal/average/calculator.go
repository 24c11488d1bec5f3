package average

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/haskel/cubetime/internal/solve"
)

const (
	// DefaultTrimFraction is the share of solves trimmed from each end.
	DefaultTrimFraction = 0.05
	// DefaultMinTrim is the least number of solves trimmed from each end.
	DefaultMinTrim = 1
)

// Calculator applies the trimmed-mean rules. The zero value is not usable;
// construct one with NewCalculator.
type Calculator struct {
	trimFraction float64
	minTrim      int
	plusTwo      time.Duration
}

// NewCalculator creates a calculator. Out of range parameters fall back to
// the defaults.
func NewCalculator(trimFraction float64, minTrim int, plusTwo time.Duration) *Calculator {
	if trimFraction < 0 || trimFraction >= 0.5 {
		trimFraction = DefaultTrimFraction
	}
	if minTrim < 0 {
		minTrim = DefaultMinTrim
	}
	if plusTwo <= 0 {
		plusTwo = solve.DefaultPlusTwo
	}
	return &Calculator{
		trimFraction: trimFraction,
		minTrim:      minTrim,
		plusTwo:      plusTwo,
	}
}

// DefaultCalculator returns a calculator using competition defaults.
func DefaultCalculator() *Calculator {
	return NewCalculator(DefaultTrimFraction, DefaultMinTrim, solve.DefaultPlusTwo)
}

// PlusTwo returns the +2 increment this calculator applies.
func (c *Calculator) PlusTwo() time.Duration {
	return c.plusTwo
}

// TrimCount returns how many solves are trimmed from each end of n solves.
// At least one solve is always left to count.
func (c *Calculator) TrimCount(n int) int {
	if n < MinCompetitionSolves {
		return 0
	}
	trim := int(math.Round(float64(n) * c.trimFraction))
	if trim < c.minTrim {
		trim = c.minTrim
	}
	if limit := (n - 1) / 2; trim > limit {
		trim = limit
	}
	return trim
}

// Label names an average over n solves, e.g. "ao5".
func Label(n int) string {
	return fmt.Sprintf("ao%d", n)
}

// Compute returns the trimmed average of solves, labelled by group size.
func (c *Calculator) Compute(solves []solve.Solve) (*CalculatedAverage, error) {
	return c.ComputeLabeled(Label(len(solves)), solves)
}

// ComputeLabeled is Compute with an explicit label. Fewer than
// MinCompetitionSolves solves yield the Current snapshot instead of an average.
func (c *Calculator) ComputeLabeled(label string, solves []solve.Solve) (*CalculatedAverage, error) {
	if len(solves) == 0 {
		return nil, ErrEmptyGroup
	}
	if len(solves) < MinCompetitionSolves {
		return Current(solves), nil
	}

	n := len(solves)
	results := make([]solve.Result, n)
	dnfs := 0
	for i, s := range solves {
		results[i] = solve.EffectiveTime(s, c.plusTwo)
		if results[i].DNF {
			dnfs++
		}
	}

	trim := c.TrimCount(n)
	result := &CalculatedAverage{
		Label:        label,
		Considered:   cloneSolves(solves),
		Trimmed:      []solve.Solve{},
		TotalPenalty: solve.None,
	}

	// DNFs sort last, so more DNFs than the worst-end trim means one is counted.
	if dnfs > trim {
		result.TotalPenalty = solve.DNF
		return result, nil
	}

	// Stable order keeps the earliest of tied solves at the front, so ties
	// resolve the same way on every call.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return compareResults(results[a], results[b])
	})

	trimmed := make([]bool, n)
	for _, idx := range order[:trim] {
		trimmed[idx] = true
	}
	for _, idx := range order[n-trim:] {
		trimmed[idx] = true
	}

	var sum time.Duration
	counted := 0
	for i, s := range solves {
		if trimmed[i] {
			result.Trimmed = append(result.Trimmed, s)
			continue
		}
		sum += results[i].Time
		counted++
	}

	avg := sum / time.Duration(counted)
	result.Average = &avg
	return result, nil
}

// Mean returns the untrimmed arithmetic mean of solves. Any DNF makes the
// mean a DNF, reported with a nil duration and dnf set.
func (c *Calculator) Mean(solves []solve.Solve) (mean *time.Duration, dnf bool, err error) {
	if len(solves) == 0 {
		return nil, false, ErrEmptyGroup
	}

	var sum time.Duration
	for _, s := range solves {
		r := solve.EffectiveTime(s, c.plusTwo)
		if r.DNF {
			return nil, true, nil
		}
		sum += r.Time
	}

	m := sum / time.Duration(len(solves))
	return &m, false, nil
}

// Best returns the fastest scored result among solves.
func (c *Calculator) Best(solves []solve.Solve) (solve.Result, bool) {
	if len(solves) == 0 {
		return solve.Result{}, false
	}
	best := solve.EffectiveTime(solves[0], c.plusTwo)
	for _, s := range solves[1:] {
		if r := solve.EffectiveTime(s, c.plusTwo); r.Less(best) {
			best = r
		}
	}
	return best, true
}

func compareResults(a, b solve.Result) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
