// Package compile reduces raw business-rule records and production
// progress into the solver-ready parameters both optimizers consume.
// Compile is a pure function: same inputs, same output, no hidden state.
package compile

import (
	"fmt"
	"sort"

	"github.com/calzaplan/calzaplan/internal/model"
)

// SequencePair is an ordered production obligation: Before must complete
// its full effective volume before After may produce.
type SequencePair struct {
	Before string
	After  string
}

// Compiled is the immutable reduction of all active constraints plus
// progress-to-date.
type Compiled struct {
	// PriorityMult multiplies the tardiness weight per model (default 1.0).
	PriorityMult map[string]float64
	// Maquila is the per-model pair count fulfilled off-site.
	Maquila map[string]int
	// Override replaces a model's target volume outright.
	Override map[string]int
	// AllowedDays restricts a model to a day-index set; a missing entry
	// means every day is allowed.
	AllowedDays map[string]map[int]bool
	// AllowedBlocks restricts a (model, day) to a time-block subset.
	AllowedBlocks map[string]map[int]model.BlockSet
	// Sequences holds the surviving ordered pairs.
	Sequences []SequencePair
	// Avance maps model → day index → pairs already produced.
	Avance map[string]map[int]int
	// FrozenDays marks per-model days whose production is committed.
	FrozenDays map[string]map[int]bool
	// ReoptimizeFrom freezes every day index below it, for all models.
	ReoptimizeFrom int
	// Warnings collects human-readable notes for skipped rules.
	Warnings []string
}

// EffectiveVolume is the model's optimization target after the maquila
// deduction and any volume override.
func (c *Compiled) EffectiveVolume(m model.Model) int {
	v := m.Volume
	if ov, ok := c.Override[m.ID]; ok {
		v = ov
	}
	v -= c.Maquila[m.ID]
	if v < 0 {
		v = 0
	}
	return v
}

// Multiplier returns the model's tardiness-weight multiplier.
func (c *Compiled) Multiplier(modelID string) float64 {
	if m, ok := c.PriorityMult[modelID]; ok {
		return m
	}
	return 1.0
}

// DayAllowed reports whether the model may produce on the day index.
// Frozen days are handled separately by Frozen.
func (c *Compiled) DayAllowed(modelID string, day int) bool {
	set, ok := c.AllowedDays[modelID]
	if !ok {
		return true
	}
	return set[day]
}

// Frozen reports whether the (model, day) cell is committed and excluded
// from re-optimization.
func (c *Compiled) Frozen(modelID string, day int) bool {
	if day < c.ReoptimizeFrom {
		return true
	}
	return c.FrozenDays[modelID][day]
}

// Blocks returns the allowed block subset for a (model, day), or the
// full grid when unrestricted.
func (c *Compiled) Blocks(modelID string, day, numBlocks int) model.BlockSet {
	if byDay, ok := c.AllowedBlocks[modelID]; ok {
		if s, ok := byDay[day]; ok {
			return s
		}
	}
	return model.AllBlocks(numBlocks)
}

// AvancePairs sums recorded progress for a model across frozen days.
func (c *Compiled) AvancePairs(modelID string) int {
	total := 0
	for _, p := range c.Avance[modelID] {
		total += p
	}
	return total
}

type compiler struct {
	out      *Compiled
	modelIDs map[string]bool
	days     []model.Day
	blocks   []model.TimeBlock
}

// Compile routes every active constraint to its handler, applies
// progress freezing, and validates sequence pairs. Unresolvable rules
// are skipped with a warning, never an error.
func Compile(constraints []model.Constraint, progress model.Progress, models []model.Model, days []model.Day, blocks []model.TimeBlock, reoptimizeFrom int) *Compiled {
	c := &compiler{
		out: &Compiled{
			PriorityMult:   make(map[string]float64),
			Maquila:        make(map[string]int),
			Override:       make(map[string]int),
			AllowedDays:    make(map[string]map[int]bool),
			AllowedBlocks:  make(map[string]map[int]model.BlockSet),
			Avance:         make(map[string]map[int]int),
			FrozenDays:     make(map[string]map[int]bool),
			ReoptimizeFrom: reoptimizeFrom,
		},
		modelIDs: make(map[string]bool, len(models)),
		days:     days,
		blocks:   blocks,
	}
	for _, m := range models {
		c.modelIDs[m.ID] = true
	}

	for _, r := range constraints {
		if !r.Active {
			continue
		}
		c.route(r)
	}
	c.validateSequences()
	c.applyProgress(progress)
	return c.out
}

func (c *compiler) warnf(format string, args ...any) {
	c.out.Warnings = append(c.out.Warnings, fmt.Sprintf(format, args...))
}

// targets resolves the constraint's model field, expanding the wildcard
// to every ordered model. Returns nil (with a warning) for unknown ids.
func (c *compiler) targets(r model.Constraint) []string {
	if r.Model == "*" {
		ids := make([]string, 0, len(c.modelIDs))
		for id := range c.modelIDs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	}
	if !c.modelIDs[r.Model] {
		c.warnf("constraint %s: model %q not in this week's order, skipped", r.ID, r.Model)
		return nil
	}
	return []string{r.Model}
}

func (c *compiler) route(r model.Constraint) {
	switch r.Kind {
	case model.KindPriority:
		c.priority(r)
	case model.KindMaquila:
		c.maquila(r)
	case model.KindMaterialDelay:
		c.materialDelay(r)
	case model.KindDay:
		c.dayPin(r)
	case model.KindSequence:
		c.sequence(r)
	case model.KindVolume:
		c.volume(r)
	default:
		c.warnf("constraint %s: unknown kind %q, skipped", r.ID, r.Kind)
	}
}

func (c *compiler) priority(r model.Constraint) {
	if r.Params.Level < 1 || r.Params.Level > 3 {
		c.warnf("constraint %s: priority level %d outside 1..3, skipped", r.ID, r.Params.Level)
		return
	}
	for _, id := range c.targets(r) {
		c.out.PriorityMult[id] = model.PriorityMultiplier(r.Params.Level)
	}
}

func (c *compiler) maquila(r model.Constraint) {
	if r.Params.Pairs <= 0 {
		c.warnf("constraint %s: maquila pairs %d not positive, skipped", r.ID, r.Params.Pairs)
		return
	}
	for _, id := range c.targets(r) {
		c.out.Maquila[id] += r.Params.Pairs
	}
}

func (c *compiler) materialDelay(r model.Constraint) {
	from := model.DayIndex(c.days, r.Params.AvailableFrom)
	if from < 0 {
		c.warnf("constraint %s: unknown day %q, skipped", r.ID, r.Params.AvailableFrom)
		return
	}
	allowed := make(map[int]bool, len(c.days)-from)
	for d := from; d < len(c.days); d++ {
		allowed[d] = true
	}

	var firstDayBlocks model.BlockSet
	restrictFirst := false
	if r.Params.Hour != "" {
		minute, err := model.ParseClock(r.Params.Hour)
		if err != nil {
			c.warnf("constraint %s: %v, hour ignored", r.ID, err)
		} else {
			restrictFirst = true
			firstDayBlocks = model.BlocksFrom(c.blocks, minute)
		}
	}

	for _, id := range c.targets(r) {
		if restrictFirst {
			if firstDayBlocks.Empty() {
				// No block starts late enough: the whole first day is out.
				delete(allowed, from)
			} else {
				if c.out.AllowedBlocks[id] == nil {
					c.out.AllowedBlocks[id] = make(map[int]model.BlockSet)
				}
				c.out.AllowedBlocks[id][from] = firstDayBlocks
			}
		}
		c.intersectDays(id, allowed)
	}
}

func (c *compiler) dayPin(r model.Constraint) {
	var allowed map[int]bool
	switch {
	case len(r.Params.AllowDays) > 0:
		allowed = make(map[int]bool, len(r.Params.AllowDays))
		for _, name := range r.Params.AllowDays {
			idx := model.DayIndex(c.days, name)
			if idx < 0 {
				c.warnf("constraint %s: unknown day %q ignored", r.ID, name)
				continue
			}
			allowed[idx] = true
		}
	case len(r.Params.ExcludeDays) > 0:
		allowed = make(map[int]bool, len(c.days))
		for d := range c.days {
			allowed[d] = true
		}
		for _, name := range r.Params.ExcludeDays {
			idx := model.DayIndex(c.days, name)
			if idx < 0 {
				c.warnf("constraint %s: unknown day %q ignored", r.ID, name)
				continue
			}
			delete(allowed, idx)
		}
	default:
		c.warnf("constraint %s: day constraint without day lists, skipped", r.ID)
		return
	}

	for _, id := range c.targets(r) {
		c.intersectDays(id, allowed)
	}
}

// intersectDays narrows the model's allowed-day set; multiple
// constraints for the same model intersect.
func (c *compiler) intersectDays(modelID string, allowed map[int]bool) {
	existing, ok := c.out.AllowedDays[modelID]
	if !ok {
		set := make(map[int]bool, len(allowed))
		for d := range allowed {
			set[d] = true
		}
		c.out.AllowedDays[modelID] = set
		return
	}
	for d := range existing {
		if !allowed[d] {
			delete(existing, d)
		}
	}
}

func (c *compiler) sequence(r model.Constraint) {
	before, after := r.Params.Before, r.Params.After
	if before == "" || after == "" {
		c.warnf("constraint %s: sequence needs both endpoints, skipped", r.ID)
		return
	}
	if !c.modelIDs[before] {
		c.warnf("constraint %s: sequence model %q not in this week's order, skipped", r.ID, before)
		return
	}
	if !c.modelIDs[after] {
		c.warnf("constraint %s: sequence model %q not in this week's order, skipped", r.ID, after)
		return
	}
	if before == after {
		c.warnf("constraint %s: sequence endpoints are the same model, skipped", r.ID)
		return
	}
	c.out.Sequences = append(c.out.Sequences, SequencePair{Before: before, After: after})
}

func (c *compiler) volume(r model.Constraint) {
	if r.Params.Volume < 0 {
		c.warnf("constraint %s: negative volume override, skipped", r.ID)
		return
	}
	for _, id := range c.targets(r) {
		c.out.Override[id] = r.Params.Volume
	}
}

// validateSequences runs Kahn's algorithm over the sequence graph; when
// it stalls, the pairs sitting on a cycle are dropped. A pair is on a
// cycle exactly when its After can reach its Before, so acyclic pairs
// hanging off a cycle survive.
func (c *compiler) validateSequences() {
	if len(c.out.Sequences) == 0 {
		return
	}

	inDegree := make(map[string]int)
	forward := make(map[string][]string)
	for _, p := range c.out.Sequences {
		if _, ok := inDegree[p.Before]; !ok {
			inDegree[p.Before] = 0
		}
		inDegree[p.After]++
		forward[p.Before] = append(forward[p.Before], p.After)
	}

	var queue []string
	for n, d := range inDegree {
		if d == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	resolved := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		resolved++
		for _, next := range forward[n] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if resolved == len(inDegree) {
		return
	}

	kept := c.out.Sequences[:0]
	for _, p := range c.out.Sequences {
		if reaches(forward, p.After, p.Before) {
			c.warnf("sequence %s -> %s participates in a cycle, dropped", p.Before, p.After)
			continue
		}
		kept = append(kept, p)
	}
	c.out.Sequences = kept
}

// reaches reports whether a path from start to goal exists in the
// sequence graph.
func reaches(forward map[string][]string, start, goal string) bool {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == goal {
			return true
		}
		for _, next := range forward[n] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// applyProgress records avance pairs and freezes the days they landed on.
func (c *compiler) applyProgress(progress model.Progress) {
	ids := make([]string, 0, len(progress))
	for id := range progress {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !c.modelIDs[id] {
			c.warnf("progress for model %q not in this week's order, ignored", id)
			continue
		}
		for _, day := range c.days {
			pairs := progress[id][day.Name]
			if pairs <= 0 {
				continue
			}
			idx := model.DayIndex(c.days, day.Name)
			if c.out.Avance[id] == nil {
				c.out.Avance[id] = make(map[int]int)
				c.out.FrozenDays[id] = make(map[int]bool)
			}
			c.out.Avance[id][idx] += pairs
			c.out.FrozenDays[id][idx] = true
		}
		for name := range progress[id] {
			if model.DayIndex(c.days, name) < 0 {
				c.warnf("progress for model %q references unknown day %q, ignored", id, name)
			}
		}
	}
}
