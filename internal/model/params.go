package model

import "time"

// Weights holds the weekly objective's weighted-sum coefficients. The
// magnitudes enforce the tier order: tardiness dominates everything,
// then weekend production, span, changeovers, overtime, odd lots, load
// imbalance, and finally the early-day tie-break.
type Weights struct {
	Tardiness      float64 // per pair short, scaled by priority multiplier
	WeekendPair    float64 // per pair produced on a weekend day
	SpanDay        float64 // per day of first-to-last production span
	Changeover     float64 // per (model, day) active cell
	OvertimeMinute float64 // per minute of overtime-tier load
	OddLot         float64 // per day quantity that is not a clean multiple
	ImbalanceMin   float64 // per minute of max-min weekday load spread
	EarlyDay       float64 // per (day index × lot) tie-break
}

// Params carries every tunable the optimizers read. Callers pass it
// explicitly; there is no package-level configuration.
type Params struct {
	LotStep          int     // production granularity in pairs
	CleanLotMultiple int     // quantities that are multiples of this avoid the odd-lot penalty
	MinLotPairs      int     // global minimum lot on an active day
	Efficiency       float64 // capacity derating for changeovers and meal breaks
	Contiguity       float64 // daily-scheduler packing derating on throughput ceilings
	StreamsPerHead   int     // concurrent operation streams a crew member supports
	MaquilaLeadDays  int     // external lead time forced as minimum span for maquila models
	WeeklyTimeout    time.Duration
	DailyTimeout     time.Duration
	Blocks           []TimeBlock
	Weights          Weights
}

// DefaultParams returns the reference factory tuning.
func DefaultParams() Params {
	return Params{
		LotStep:          50,
		CleanLotMultiple: 100,
		MinLotPairs:      100,
		Efficiency:       0.90,
		Contiguity:       0.80,
		StreamsPerHead:   3,
		MaquilaLeadDays:  3,
		WeeklyTimeout:    60 * time.Second,
		DailyTimeout:     120 * time.Second,
		Blocks:           DefaultBlocks(),
		Weights: Weights{
			Tardiness:      100000,
			WeekendPair:    1000,
			SpanDay:        800,
			Changeover:     600,
			OvertimeMinute: 5,
			OddLot:         200,
			ImbalanceMin:   3,
			EarlyDay:       1,
		},
	}
}

// PriorityMultiplier maps a discrete priority level to the tardiness
// weight multiplier applied to that model.
func PriorityMultiplier(level int) float64 {
	switch level {
	case 2:
		return 2.0
	case 3:
		return 5.0
	default:
		return 1.0
	}
}
