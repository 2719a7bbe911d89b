// Package weekly allocates pair quantities per model per day for one
// planning week. The backend is a deterministic engine: a constructive
// pass that never violates a hard constraint, then bounded
// local-improvement moves scored against the weighted objective.
package weekly

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/calzaplan/calzaplan/internal/compile"
	"github.com/calzaplan/calzaplan/internal/model"
)

// InfeasibleError is fatal: the problem as posed has no solution and
// the caller must relax constraints and retry.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("weekly plan infeasible: %s", e.Reason)
}

// problem is the preprocessed, read-only optimization input.
type problem struct {
	models     []model.Model
	days       []model.Day
	capacities map[model.ResourceKind]int
	compiled   *compile.Compiled
	params     model.Params

	effVol    []int     // effective volume per model
	minLot    []int     // active-day minimum, rounded down to lot step
	secPair   []float64 // total seconds per pair
	resSec    []map[model.ResourceKind]float64
	opsCount  []int
	dayCeil   [][]int // per model per day throughput ceiling, lot-rounded
	frozen    [][]int // committed avance pairs per (model, day)
	regCapSec []float64
	otCapSec  []float64
}

// solution is a mutable quantity matrix over non-frozen cells.
type solution struct {
	qty [][]int // [model][day] pairs
}

func (s *solution) clone() *solution {
	out := &solution{qty: make([][]int, len(s.qty))}
	for i, row := range s.qty {
		out.qty[i] = append([]int(nil), row...)
	}
	return out
}

// Optimize builds the weekly pair allocation. Infeasibility is fatal; a
// feasible-but-time-bounded result is returned with status FEASIBLE.
func Optimize(ctx context.Context, models []model.Model, days []model.Day, capacities map[model.ResourceKind]int, compiled *compile.Compiled, params model.Params) (*model.WeeklySchedule, *model.WeeklySummary, error) {
	start := time.Now()
	if len(models) == 0 {
		return nil, nil, fmt.Errorf("weekly optimize: no order lines matched to catalog")
	}
	if len(days) == 0 {
		return nil, nil, fmt.Errorf("weekly optimize: empty day calendar")
	}
	if len(capacities) == 0 {
		return nil, nil, fmt.Errorf("weekly optimize: empty resource capacities")
	}
	if compiled == nil {
		compiled = compile.Compile(nil, nil, models, days, params.Blocks, 0)
	}

	p, err := buildProblem(models, days, capacities, compiled, params)
	if err != nil {
		return nil, nil, err
	}

	sol := construct(p)

	deadline := start.Add(params.WeeklyTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	status := improve(ctx, p, sol, deadline)

	schedule := buildSchedule(p, sol)
	summary := buildSummary(p, sol, status, time.Since(start))
	return schedule, summary, nil
}

func buildProblem(models []model.Model, days []model.Day, capacities map[model.ResourceKind]int, compiled *compile.Compiled, params model.Params) (*problem, error) {
	p := &problem{
		models:     models,
		days:       days,
		capacities: capacities,
		compiled:   compiled,
		params:     params,
		effVol:     make([]int, len(models)),
		minLot:     make([]int, len(models)),
		secPair:    make([]float64, len(models)),
		resSec:     make([]map[model.ResourceKind]float64, len(models)),
		opsCount:   make([]int, len(models)),
		dayCeil:    make([][]int, len(models)),
		frozen:     make([][]int, len(models)),
		regCapSec:  make([]float64, len(days)),
		otCapSec:   make([]float64, len(days)),
	}

	for d, day := range days {
		p.regCapSec[d] = float64(day.RegularMinutes*60*day.RegularHeadcount) * params.Efficiency
		p.otCapSec[d] = float64(day.OvertimeMinutes*60*day.OvertimeHeadcount) * params.Efficiency
	}

	for i, m := range models {
		p.effVol[i] = compiled.EffectiveVolume(m)
		p.secPair[i] = m.TotalSecondsPerPair()
		p.opsCount[i] = len(m.Operations)

		min := m.MinLot
		if min <= 0 {
			min = params.MinLotPairs
		}
		min = (min / params.LotStep) * params.LotStep
		if min < params.LotStep {
			min = params.LotStep
		}
		p.minLot[i] = min

		res := make(map[model.ResourceKind]float64)
		for _, op := range m.Operations {
			if op.Resource == model.ResourceMaquila {
				continue
			}
			res[op.Resource] += op.SecondsPerPair() * float64(op.Persons())
		}
		p.resSec[i] = res

		p.dayCeil[i] = make([]int, len(days))
		p.frozen[i] = make([]int, len(days))
		bottleneck := m.BottleneckRate()
		for d, day := range days {
			ceil := math.MaxInt32
			if bottleneck > 0 {
				c := bottleneck * float64(day.TotalMinutes()) / 60.0 * params.Contiguity
				ceil = (int(c) / params.LotStep) * params.LotStep
			}
			p.dayCeil[i][d] = ceil
			if compiled.Frozen(m.ID, d) {
				p.frozen[i][d] = compiled.Avance[m.ID][d]
			}
		}

		if avance := compiled.AvancePairs(m.ID); avance > p.effVol[i] {
			return nil, &InfeasibleError{Reason: fmt.Sprintf(
				"model %s: recorded progress %d exceeds effective volume %d", m.ID, avance, p.effVol[i])}
		}
	}
	return p, nil
}

// orderModels returns model indices in sequence-respecting order:
// topological layers first, then priority multiplier, volume and id.
func orderModels(p *problem) []int {
	idx := make(map[string]int, len(p.models))
	for i, m := range p.models {
		idx[m.ID] = i
	}
	depth := make([]int, len(p.models))
	// Sequences are acyclic after compilation; a few passes settle depths.
	for pass := 0; pass < len(p.models)+1; pass++ {
		for _, sp := range p.compiled.Sequences {
			b, okB := idx[sp.Before]
			a, okA := idx[sp.After]
			if okB && okA && depth[a] < depth[b]+1 {
				depth[a] = depth[b] + 1
			}
		}
	}

	order := make([]int, len(p.models))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		i, j := order[x], order[y]
		if depth[i] != depth[j] {
			return depth[i] < depth[j]
		}
		mi := p.compiled.Multiplier(p.models[i].ID)
		mj := p.compiled.Multiplier(p.models[j].ID)
		if mi != mj {
			return mi > mj
		}
		if p.effVol[i] != p.effVol[j] {
			return p.effVol[i] > p.effVol[j]
		}
		return p.models[i].ID < p.models[j].ID
	})
	return order
}

// produced sums committed avance plus planned quantities for a model.
func produced(p *problem, s *solution, i int) int {
	total := 0
	for d := range p.days {
		total += p.frozen[i][d] + s.qty[i][d]
	}
	return total
}

// seqStartDay returns the earliest day index the model may produce on
// given its sequence obligations, or len(days) when a predecessor never
// completes.
func seqStartDay(p *problem, s *solution, i int) int {
	start := 0
	for _, sp := range p.compiled.Sequences {
		if sp.After != p.models[i].ID {
			continue
		}
		b := -1
		for j, m := range p.models {
			if m.ID == sp.Before {
				b = j
				break
			}
		}
		if b < 0 {
			continue
		}
		cum := 0
		done := len(p.days)
		for d := range p.days {
			cum += p.frozen[b][d] + s.qty[b][d]
			if cum >= p.effVol[b] {
				done = d
				break
			}
		}
		if done > start {
			start = done
		}
	}
	return start
}

// construct performs the greedy feasible allocation: models in sequence
// order, earliest allowed weekdays first, weekend days as a last resort.
func construct(p *problem) *solution {
	s := &solution{qty: make([][]int, len(p.models))}
	for i := range p.models {
		s.qty[i] = make([]int, len(p.days))
	}

	for _, i := range orderModels(p) {
		remaining := p.effVol[i] - p.compiled.AvancePairs(p.models[i].ID)
		remaining = (remaining / p.params.LotStep) * p.params.LotStep
		if remaining <= 0 {
			continue
		}

		candidates := dayOrder(p)
		startDay := seqStartDay(p, s, i)

		for _, d := range candidates {
			if remaining <= 0 {
				break
			}
			if d < startDay {
				continue
			}
			fit := maxFit(p, s, i, d)
			chunk := remaining
			if chunk > fit {
				chunk = fit
			}
			chunk = (chunk / p.params.LotStep) * p.params.LotStep
			if chunk < p.minLot[i] {
				continue
			}
			s.qty[i][d] += chunk
			remaining -= chunk
		}

		// Residue below the minimum lot tops up already-active days.
		if remaining > 0 {
			for _, d := range candidates {
				if remaining <= 0 {
					break
				}
				if s.qty[i][d] == 0 || d < startDay {
					continue
				}
				fit := maxFit(p, s, i, d)
				chunk := remaining
				if chunk > fit {
					chunk = fit
				}
				chunk = (chunk / p.params.LotStep) * p.params.LotStep
				if chunk <= 0 {
					continue
				}
				s.qty[i][d] += chunk
				remaining -= chunk
			}
		}
	}
	return s
}

// dayOrder lists day indices weekdays-first, each group in calendar order.
func dayOrder(p *problem) []int {
	order := make([]int, 0, len(p.days))
	for d, day := range p.days {
		if !day.Weekend {
			order = append(order, d)
		}
	}
	for d, day := range p.days {
		if day.Weekend {
			order = append(order, d)
		}
	}
	return order
}

// maxFit computes how many additional pairs of model i fit on day d
// without violating any hard constraint. Result is not lot-rounded.
func maxFit(p *problem, s *solution, i, d int) int {
	mID := p.models[i].ID
	if !p.compiled.DayAllowed(mID, d) || p.compiled.Frozen(mID, d) {
		return 0
	}
	if p.secPair[i] <= 0 {
		return 0
	}

	// Per-model throughput ceiling.
	fit := p.dayCeil[i][d] - s.qty[i][d]
	if fit <= 0 {
		return 0
	}

	// Two-tier day capacity in seconds.
	load := dayLoadSec(p, s, d)
	free := p.regCapSec[d] + p.otCapSec[d] - load
	if pairs := int(free / p.secPair[i]); pairs < fit {
		fit = pairs
	}

	// Per-resource-type daily capacity.
	for kind, perPair := range p.resSec[i] {
		cap, ok := p.capacities[kind]
		if !ok {
			return 0 // operation needs a pool the factory does not have
		}
		used := resourceLoadSec(p, s, kind, d)
		capSec := float64(cap * p.days[d].TotalMinutes() * 60)
		if pairs := int((capSec - used) / perPair); pairs < fit {
			fit = pairs
		}
	}

	// Concurrency ceiling: operation streams a crew can run at once.
	if s.qty[i][d] == 0 {
		streams := 0
		for j := range p.models {
			if s.qty[j][d] > 0 || p.frozen[j][d] > 0 {
				streams += p.opsCount[j]
			}
		}
		limit := p.params.StreamsPerHead * p.days[d].TotalHeadcount()
		if streams+p.opsCount[i] > limit {
			return 0
		}
	}

	if fit < 0 {
		fit = 0
	}
	return fit
}

func dayLoadSec(p *problem, s *solution, d int) float64 {
	var load float64
	for i := range p.models {
		load += float64(s.qty[i][d]) * p.secPair[i]
	}
	return load
}

func resourceLoadSec(p *problem, s *solution, kind model.ResourceKind, d int) float64 {
	var load float64
	for i := range p.models {
		if perPair, ok := p.resSec[i][kind]; ok {
			load += float64(s.qty[i][d]) * perPair
		}
	}
	return load
}
