// Package daily expands one day's model quotas into per-operation,
// per-time-block pair quantities. The fill is a forward block-by-block
// simulation: packing each block as early as possible realizes the
// early-start objective, and every cap is enforced before a pair is
// placed, so the result never violates a hard constraint.
package daily

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/calzaplan/calzaplan/internal/model"
)

// Quota is one model's target for the day, with the block subset the
// constraint compiler allows it to run in.
type Quota struct {
	Model  model.Model
	Pairs  int
	Blocks model.BlockSet
}

const (
	StatusOK    = "OK"
	StatusEmpty = "EMPTY"
)

// scheduler carries the shared per-block capacity state for one day.
type scheduler struct {
	day        string
	blocks     []model.TimeBlock
	capacities map[model.ResourceKind]int
	headcount  int

	chunk    int                              // interleave granularity of the block fill
	crewSec  []float64                        // used crew seconds per block
	resSec   map[model.ResourceKind][]float64 // used pool seconds per block
	robotSec map[string][]float64             // used robot seconds per block

	result *model.DayResult
}

// Schedule runs the daily fill. Invalid day inputs degrade to an empty
// schedule with a warning; unplaceable quota surfaces as tardiness.
// Infeasibility is never fatal at the day level.
func Schedule(ctx context.Context, dayName string, quotas []Quota, capacities map[model.ResourceKind]int, headcount int, params model.Params) *model.DayResult {
	result := &model.DayResult{Day: dayName, Status: StatusOK, Headcount: headcount}

	if len(params.Blocks) == 0 {
		return degrade(result, "empty time-block grid")
	}
	if headcount <= 0 {
		return degrade(result, "no crew available")
	}
	if len(quotas) == 0 {
		return degrade(result, "no model quotas matched to catalog")
	}
	if ctx.Err() != nil {
		return degrade(result, fmt.Sprintf("cancelled: %v", ctx.Err()))
	}

	s := &scheduler{
		day:        dayName,
		blocks:     params.Blocks,
		capacities: capacities,
		headcount:  headcount,
		chunk:      params.LotStep,
		crewSec:    make([]float64, len(params.Blocks)),
		resSec:     make(map[model.ResourceKind][]float64),
		robotSec:   make(map[string][]float64),
		result:     result,
	}

	ordered := make([]Quota, len(quotas))
	copy(ordered, quotas)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Model.ID < ordered[j].Model.ID })

	var plans []*modelPlan
	for _, q := range ordered {
		if plan := s.prepare(q); plan != nil {
			plans = append(plans, plan)
		}
	}

	for b := range s.blocks {
		for _, plan := range plans {
			s.fillBlock(plan, b)
		}
	}

	for _, plan := range plans {
		s.finish(plan)
	}

	s.aggregate()
	if len(result.Entries) == 0 {
		result.Status = StatusEmpty
	}
	return result
}

func degrade(result *model.DayResult, warning string) *model.DayResult {
	result.Status = StatusEmpty
	result.Warnings = append(result.Warnings, warning)
	return result
}

// opPlan is the working state for one operation of one model. Robot
// operations carry one quantity row per eligible robot.
type opPlan struct {
	op     model.Operation
	rows   []*model.BlockEntry // one row, or one per robot
	robots []string
	cum    int // pairs processed through the current block
}

type modelPlan struct {
	quota Quota
	ops   []*opPlan
}

// prepare validates one quota and lays out its entry rows. Quotas that
// cannot run at all are recorded as warnings and full tardiness.
func (s *scheduler) prepare(q Quota) *modelPlan {
	ops := q.quotaOps()
	if q.Pairs <= 0 {
		return nil
	}
	if len(ops) == 0 {
		s.result.Warnings = append(s.result.Warnings,
			fmt.Sprintf("model %s has no schedulable operations, %d pairs dropped", q.Model.ID, q.Pairs))
		s.addTardy(q.Model.ID, q.Pairs)
		return nil
	}

	plan := &modelPlan{quota: q}
	for _, op := range ops {
		if op.RatePairsHr <= 0 {
			s.result.Warnings = append(s.result.Warnings,
				fmt.Sprintf("model %s fraction %d has no rate, %d pairs dropped", q.Model.ID, op.Fraction, q.Pairs))
			s.addTardy(q.Model.ID, q.Pairs)
			return nil
		}
		p := &opPlan{op: op}
		if op.Resource == model.ResourceRobot {
			if len(op.Robots) == 0 {
				s.result.Warnings = append(s.result.Warnings,
					fmt.Sprintf("model %s fraction %d needs a robot but lists none, %d pairs dropped", q.Model.ID, op.Fraction, q.Pairs))
				s.addTardy(q.Model.ID, q.Pairs)
				return nil
			}
			p.robots = append([]string(nil), op.Robots...)
			sort.Strings(p.robots)
			for _, robot := range p.robots {
				p.rows = append(p.rows, s.newRow(q.Model.ID, op, robot))
			}
		} else {
			p.rows = append(p.rows, s.newRow(q.Model.ID, op, ""))
		}
		plan.ops = append(plan.ops, p)
	}
	return plan
}

// quotaOps returns the model's operations in fraction order, excluding
// subcontracted steps, which consume no internal capacity.
func (q Quota) quotaOps() []model.Operation {
	var ops []model.Operation
	for _, op := range q.Model.SortedOperations() {
		if op.Resource == model.ResourceMaquila {
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

func (s *scheduler) newRow(modelID string, op model.Operation, robot string) *model.BlockEntry {
	return &model.BlockEntry{
		Model:     modelID,
		Fraction:  op.Fraction,
		Operation: op.Description,
		Resource:  op.Resource,
		Rate:      op.RatePairsHr,
		Headcount: op.Persons(),
		Robot:     robot,
		Pairs:     make([]int, len(s.blocks)),
	}
}

// fillBlock places pairs into block b in small interleaved chunks:
// operations take turns in fraction order so downstream steps share the
// block's crew with upstream ones instead of starving behind them.
func (s *scheduler) fillBlock(plan *modelPlan, b int) {
	if !plan.quota.Blocks.Has(b) {
		return
	}
	chunk := s.chunk
	if chunk <= 0 {
		chunk = 50
	}
	for {
		progress := 0
		for k, p := range plan.ops {
			// Precedence headroom: an operation may not outpace the one
			// before it; the first is bounded by the day quota.
			upstream := plan.quota.Pairs
			if k > 0 {
				upstream = plan.ops[k-1].cum
			}
			want := upstream - p.cum
			if want > chunk {
				want = chunk
			}
			if want > 0 {
				progress += s.takeOp(p, b, want)
			}
		}
		if progress == 0 {
			return
		}
	}
}

// takeOp places up to want pairs of one operation into block b,
// honoring rate, crew, pool and robot caps. Returns the pairs placed.
func (s *scheduler) takeOp(p *opPlan, b, want int) int {
	block := s.blocks[b]
	blockSec := float64(block.Seconds())
	secPair := p.op.SecondsPerPair()
	persons := float64(p.op.Persons())

	// Crew seconds cover all operation work in the block.
	if fit := int((float64(s.headcount)*blockSec - s.crewSec[b]) / (secPair * persons)); fit < want {
		want = fit
	}
	if want <= 0 {
		return 0
	}

	// Rate limit per block for one stream, robot or manual alike.
	rateCap := int(p.op.RatePairsHr * float64(block.Minutes) / 60.0)

	if p.op.Resource == model.ResourceRobot {
		taken := 0
		for i, robot := range p.robots {
			if want <= 0 {
				break
			}
			fit := int((blockSec - s.robotUsedSec(robot, b)) / secPair)
			if left := rateCap - p.rows[i].Pairs[b]; fit > left {
				fit = left
			}
			if fit > want {
				fit = want
			}
			if fit <= 0 {
				continue
			}
			p.rows[i].Pairs[b] += fit
			p.cum += fit
			want -= fit
			taken += fit
			s.crewSec[b] += float64(fit) * secPair * persons
			s.addRobotSec(robot, b, float64(fit)*secPair)
		}
		return taken
	}

	if left := rateCap - p.rows[0].Pairs[b]; want > left {
		want = left
	}
	poolSec := s.poolSec(p.op.Resource, b)
	if fit := int((float64(s.poolCapacity(p.op.Resource))*blockSec - poolSec) / secPair); fit < want {
		want = fit
	}
	if want <= 0 {
		return 0
	}

	p.rows[0].Pairs[b] += want
	p.cum += want
	s.crewSec[b] += float64(want) * secPair * persons
	s.addPoolSec(p.op.Resource, b, float64(want)*secPair)
	return want
}

// finish trims every operation down to the completed flow (the last
// operation's total), removing surplus from the latest blocks so the
// precedence invariant is preserved, then records entries and tardiness.
func (s *scheduler) finish(plan *modelPlan) {
	target := plan.quota.Pairs
	if n := len(plan.ops); n > 0 {
		target = plan.ops[n-1].cum
	}

	for _, p := range plan.ops {
		surplus := p.cum - target
		for i := len(p.rows) - 1; i >= 0 && surplus > 0; i-- {
			row := p.rows[i]
			for b := len(s.blocks) - 1; b >= 0 && surplus > 0; b-- {
				cut := row.Pairs[b]
				if cut > surplus {
					cut = surplus
				}
				if cut == 0 {
					continue
				}
				row.Pairs[b] -= cut
				surplus -= cut
				secPair := p.op.SecondsPerPair()
				s.crewSec[b] -= float64(cut) * secPair * float64(p.op.Persons())
				if row.Robot != "" {
					s.addRobotSec(row.Robot, b, -float64(cut)*secPair)
				} else {
					s.addPoolSec(p.op.Resource, b, -float64(cut)*secPair)
				}
			}
		}
		for _, row := range p.rows {
			total := 0
			for _, q := range row.Pairs {
				total += q
			}
			row.Total = total
			if total > 0 {
				s.result.Entries = append(s.result.Entries, *row)
			}
		}
	}

	s.result.Pairs += target
	if short := plan.quota.Pairs - target; short > 0 {
		s.addTardy(plan.quota.Model.ID, short)
	}
}

// addTardy records shortfall both day-wide and per model.
func (s *scheduler) addTardy(modelID string, pairs int) {
	s.result.Tardiness += pairs
	if s.result.ModelTardiness == nil {
		s.result.ModelTardiness = make(map[string]int)
	}
	s.result.ModelTardiness[modelID] += pairs
}

func (s *scheduler) aggregate() {
	for b, block := range s.blocks {
		pairs := 0
		for _, e := range s.result.Entries {
			pairs += e.Pairs[b]
		}
		head := 0.0
		if sec := block.Seconds(); sec > 0 {
			head = s.crewSec[b] / float64(sec)
		}
		s.result.Blocks = append(s.result.Blocks, model.BlockAggregate{
			Block:     b,
			Pairs:     pairs,
			Headcount: math.Round(head*100) / 100,
		})
	}
}

func (s *scheduler) poolCapacity(kind model.ResourceKind) int {
	return s.capacities[kind]
}

func (s *scheduler) poolSec(kind model.ResourceKind, b int) float64 {
	if used, ok := s.resSec[kind]; ok {
		return used[b]
	}
	return 0
}

func (s *scheduler) addPoolSec(kind model.ResourceKind, b int, sec float64) {
	if _, ok := s.resSec[kind]; !ok {
		s.resSec[kind] = make([]float64, len(s.blocks))
	}
	s.resSec[kind][b] += sec
}

func (s *scheduler) robotUsedSec(robot string, b int) float64 {
	if used, ok := s.robotSec[robot]; ok {
		return used[b]
	}
	return 0
}

func (s *scheduler) addRobotSec(robot string, b int, sec float64) {
	if _, ok := s.robotSec[robot]; !ok {
		s.robotSec[robot] = make([]float64, len(s.blocks))
	}
	s.robotSec[robot][b] += sec
}
