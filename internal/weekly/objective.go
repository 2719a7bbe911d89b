package weekly

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/calzaplan/calzaplan/internal/model"
)

// feasible reports whether the full quantity matrix satisfies every
// hard constraint. Frozen avance cells are committed history and do not
// consume capacity.
func feasible(p *problem, s *solution) bool {
	for i := range p.models {
		mID := p.models[i].ID
		for d := range p.days {
			q := s.qty[i][d]
			if q < 0 || q%p.params.LotStep != 0 {
				return false
			}
			if q == 0 {
				continue
			}
			if q < p.minLot[i] {
				return false
			}
			if !p.compiled.DayAllowed(mID, d) || p.compiled.Frozen(mID, d) {
				return false
			}
			if q > p.dayCeil[i][d] {
				return false
			}
		}
	}

	for d := range p.days {
		if dayLoadSec(p, s, d) > p.regCapSec[d]+p.otCapSec[d]+1e-6 {
			return false
		}
		for kind, cap := range p.capacities {
			if kind == model.ResourceMaquila {
				continue
			}
			capSec := float64(cap * p.days[d].TotalMinutes() * 60)
			if resourceLoadSec(p, s, kind, d) > capSec+1e-6 {
				return false
			}
		}
		streams := 0
		for i := range p.models {
			if s.qty[i][d] > 0 || p.frozen[i][d] > 0 {
				streams += p.opsCount[i]
			}
		}
		if streams > p.params.StreamsPerHead*p.days[d].TotalHeadcount() {
			return false
		}
	}

	for _, sp := range p.compiled.Sequences {
		b, a := -1, -1
		for j, m := range p.models {
			if m.ID == sp.Before {
				b = j
			}
			if m.ID == sp.After {
				a = j
			}
		}
		if b < 0 || a < 0 {
			continue
		}
		cum := 0
		for d := range p.days {
			cum += p.frozen[b][d] + s.qty[b][d]
			if s.qty[a][d] > 0 && cum < p.effVol[b] {
				return false
			}
		}
	}
	return true
}

// objective evaluates the weighted sum. Lower is better; tiers are
// separated by weight magnitude so tardiness always dominates.
func objective(p *problem, s *solution) float64 {
	w := p.params.Weights
	var total float64

	for i := range p.models {
		mID := p.models[i].ID
		tard := p.effVol[i] - produced(p, s, i)
		if tard > 0 {
			total += float64(tard) * w.Tardiness * p.compiled.Multiplier(mID)
		}

		first, last := -1, -1
		active := 0
		for d := range p.days {
			q := s.qty[i][d] + p.frozen[i][d]
			if q == 0 {
				continue
			}
			if first == -1 {
				first = d
			}
			last = d
			active++
		}
		if first != -1 {
			span := last - first
			if p.compiled.Maquila[mID] > 0 && span < p.params.MaquilaLeadDays {
				span = p.params.MaquilaLeadDays
			}
			total += float64(span) * w.SpanDay
			total += float64(active) * w.Changeover
		}

		for d := range p.days {
			q := s.qty[i][d]
			if q == 0 {
				continue
			}
			if p.days[d].Weekend {
				total += float64(q) * w.WeekendPair
			}
			if q%p.params.CleanLotMultiple != 0 {
				total += w.OddLot
			}
			total += float64(d) * float64(q/p.params.LotStep) * w.EarlyDay
		}
	}

	maxLoad, minLoad := 0.0, math.MaxFloat64
	sawWeekday := false
	for d, day := range p.days {
		load := dayLoadSec(p, s, d)
		if over := load - p.regCapSec[d]; over > 0 {
			total += over / 60.0 * w.OvertimeMinute
		}
		if day.Weekend || d < p.compiled.ReoptimizeFrom {
			continue
		}
		sawWeekday = true
		if load > maxLoad {
			maxLoad = load
		}
		if load < minLoad {
			minLoad = load
		}
	}
	if sawWeekday && maxLoad > minLoad {
		total += (maxLoad - minLoad) / 60.0 * w.ImbalanceMin
	}
	return total
}

// improve runs deterministic first-improvement sweeps: move one lot
// step, or a whole day cell, between days of the same model. Returns
// OPTIMAL when a sweep finds nothing better, FEASIBLE on deadline.
func improve(ctx context.Context, p *problem, s *solution, deadline time.Time) string {
	best := objective(p, s)

	for sweep := 0; sweep < 64; sweep++ {
		if time.Now().After(deadline) || ctx.Err() != nil {
			return "FEASIBLE"
		}
		improved := false

		for i := range p.models {
			for a := range p.days {
				if s.qty[i][a] == 0 {
					continue
				}
				for b := range p.days {
					if a == b {
						continue
					}
					for _, amount := range moveAmounts(p, i, s.qty[i][a]) {
						if time.Now().After(deadline) || ctx.Err() != nil {
							return "FEASIBLE"
						}
						s.qty[i][a] -= amount
						s.qty[i][b] += amount
						if feasible(p, s) {
							if obj := objective(p, s); obj < best-1e-9 {
								best = obj
								improved = true
								break
							}
						}
						s.qty[i][a] += amount
						s.qty[i][b] -= amount
					}
				}
			}
		}
		if !improved {
			return "OPTIMAL"
		}
	}
	return "FEASIBLE"
}

// moveAmounts proposes transfer sizes: a single lot step and the whole
// cell, deduplicated.
func moveAmounts(p *problem, _ int, cell int) []int {
	if cell <= 0 {
		return nil
	}
	if cell == p.params.LotStep {
		return []int{cell}
	}
	return []int{p.params.LotStep, cell}
}

func buildSchedule(p *problem, s *solution) *model.WeeklySchedule {
	schedule := &model.WeeklySchedule{}
	order := make([]int, len(p.models))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(x, y int) bool { return p.models[order[x]].ID < p.models[order[y]].ID })

	for d, day := range p.days {
		for _, i := range order {
			pairs := s.qty[i][d] + p.frozen[i][d]
			if pairs == 0 {
				continue
			}
			workSec := float64(pairs) * p.secPair[i]
			headcount := 0
			if day.TotalMinutes() > 0 {
				headcount = int(math.Ceil(workSec / float64(day.TotalMinutes()*60)))
			}
			schedule.Rows = append(schedule.Rows, model.WeeklyRow{
				Day:       day.Name,
				Factory:   p.models[i].Factory,
				Model:     p.models[i].ID,
				Pairs:     pairs,
				Headcount: headcount,
				Hours:     workSec / 3600.0,
			})
		}
	}
	return schedule
}

func buildSummary(p *problem, s *solution, status string, wall time.Duration) *model.WeeklySummary {
	summary := &model.WeeklySummary{
		Status:    status,
		Objective: objective(p, s),
		WallTime:  wall,
	}

	for d, day := range p.days {
		load := dayLoadSec(p, s, d)
		capSec := p.regCapSec[d] + p.otCapSec[d]
		needed := 0
		if day.RegularMinutes > 0 {
			needed = int(math.Ceil(load / float64(day.RegularMinutes*60)))
		}
		util := 0.0
		if capSec > 0 {
			util = load / capSec * 100.0
		}
		overtime := 0.0
		if over := load - p.regCapSec[d]; over > 0 {
			overtime = over / 3600.0
		}
		pairs := 0
		for i := range p.models {
			pairs += s.qty[i][d] + p.frozen[i][d]
		}
		summary.Days = append(summary.Days, model.DaySummary{
			Day:                day.Name,
			Pairs:              pairs,
			HeadcountNeeded:    needed,
			HeadcountAvailable: day.TotalHeadcount(),
			Utilization:        util,
			OvertimeHours:      overtime,
		})
	}

	order := make([]int, len(p.models))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(x, y int) bool { return p.models[order[x]].ID < p.models[order[y]].ID })

	for _, i := range order {
		prod := produced(p, s, i)
		tard := p.effVol[i] - prod
		if tard < 0 {
			tard = 0
		}
		first, last := -1, -1
		active := 0
		for d := range p.days {
			if s.qty[i][d]+p.frozen[i][d] > 0 {
				if first == -1 {
					first = d
				}
				last = d
				active++
			}
		}
		span := 0
		if first != -1 {
			span = last - first
		}
		complete := 100.0
		if p.effVol[i] > 0 {
			complete = float64(prod) / float64(p.effVol[i]) * 100.0
		}
		summary.Models = append(summary.Models, model.ModelSummary{
			Model:      p.models[i].ID,
			Volume:     p.effVol[i],
			Produced:   prod,
			Tardiness:  tard,
			Complete:   complete,
			SpanDays:   span,
			ActiveDays: active,
		})
	}
	return summary
}
