// Package assign staffs a day's schedule with named workers and robots.
// The algorithm is a forward simulation, not an optimizer: the cascade
// commits workers to tasks block by block, the relay phase covers
// leftovers with direct assignments or a single swap per task, and a
// safety-net sweep guarantees no worker ever holds two blocks at once.
package assign

import (
	"sort"

	"github.com/calzaplan/calzaplan/internal/model"
)

// task is the unit of staffing: one schedule entry's block quantities,
// except that a two-person entry splits into two parallel tasks.
type task struct {
	id       int
	entry    model.BlockEntry
	pairs    []int  // this task's share of the entry quantities
	robot    string // required robot, "" for manual work
	eligible int    // workers on the roster who could ever staff it

	assignee []string // worker id per block, "" when uncovered
}

func (t *task) active(b int) bool { return t.pairs[b] > 0 }

// remainingSpan is the set of active blocks from b onward.
func (t *task) remainingSpan(from int) model.BlockSet {
	var s model.BlockSet
	for b := from; b < len(t.pairs); b++ {
		if t.pairs[b] > 0 {
			s.Add(b)
		}
	}
	return s
}

// uncovered is the set of active blocks with no assignee.
func (t *task) uncovered() model.BlockSet {
	var s model.BlockSet
	for b := range t.pairs {
		if t.pairs[b] > 0 && t.assignee[b] == "" {
			s.Add(b)
		}
	}
	return s
}

func (t *task) lastActive() int {
	last := -1
	for b, q := range t.pairs {
		if q > 0 {
			last = b
		}
	}
	return last
}

// workerState tracks one worker through the simulation. The busy bitset
// makes the no-overlap invariant mechanically checkable.
type workerState struct {
	w         model.Worker
	busy      model.BlockSet
	committed *task
	lastEnd   int
	lastModel string
	hasWorked bool
}

type assigner struct {
	day       string
	numBlocks int
	tasks     []*task
	workers   []*workerState
	robotBusy map[string]model.BlockSet
}

// Assign staffs the day's schedule. The input schedule is read-only;
// the result carries per-worker rows, timelines and the unassigned list.
func Assign(day *model.DayResult, roster []model.Worker) *model.AssignmentResult {
	result := &model.AssignmentResult{Day: day.Day}
	if len(day.Entries) == 0 {
		return result
	}

	a := &assigner{
		day:       day.Day,
		numBlocks: len(day.Entries[0].Pairs),
		robotBusy: make(map[string]model.BlockSet),
	}
	a.buildWorkers(roster, day.Day)
	a.buildTasks(day.Entries)

	a.cascade()
	a.relay()
	a.safetyNet()

	a.emit(result, day)
	return result
}

func (a *assigner) buildWorkers(roster []model.Worker, day string) {
	for _, w := range roster {
		if !w.AvailableOn(day) {
			continue
		}
		a.workers = append(a.workers, &workerState{w: w, lastEnd: -1})
	}
	sort.Slice(a.workers, func(i, j int) bool { return a.workers[i].w.ID < a.workers[j].w.ID })
}

func (a *assigner) buildTasks(entries []model.BlockEntry) {
	id := 0
	for _, e := range entries {
		copies := 1
		if e.Headcount >= 2 {
			copies = 2
		}
		for c := 0; c < copies; c++ {
			pairs := make([]int, len(e.Pairs))
			for b, q := range e.Pairs {
				share := q / copies
				if c == 0 {
					share += q % copies
				}
				pairs[b] = share
			}
			t := &task{
				id:       id,
				entry:    e,
				pairs:    pairs,
				robot:    e.Robot,
				assignee: make([]string, len(e.Pairs)),
			}
			for _, w := range a.workers {
				if a.canStaff(w, t) {
					t.eligible++
				}
			}
			a.tasks = append(a.tasks, t)
			id++
		}
	}
}

// canStaff checks static eligibility: resource skill and, for robot
// work, the driving permission for the task's robot.
func (a *assigner) canStaff(w *workerState, t *task) bool {
	if !w.w.CanUse(t.entry.Resource) {
		return false
	}
	if t.robot != "" && !w.w.CanDrive(t.robot) {
		return false
	}
	return true
}

// needyOrder sorts tasks most-constrained-first: fewest eligible
// workers, then fraction order, then model id, then task id.
func needyOrder(tasks []*task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].eligible != tasks[j].eligible {
			return tasks[i].eligible < tasks[j].eligible
		}
		if tasks[i].entry.Fraction != tasks[j].entry.Fraction {
			return tasks[i].entry.Fraction < tasks[j].entry.Fraction
		}
		if tasks[i].entry.Model != tasks[j].entry.Model {
			return tasks[i].entry.Model < tasks[j].entry.Model
		}
		return tasks[i].id < tasks[j].id
	})
}

// cascade walks the blocks in order, releasing workers whose task span
// has ended and committing free workers to needy tasks for the task's
// entire remaining span.
func (a *assigner) cascade() {
	for b := 0; b < a.numBlocks; b++ {
		// Release workers whose committed span ended before this block.
		for _, w := range a.workers {
			if w.committed != nil && w.committed.lastActive() < b {
				w.lastEnd = w.committed.lastActive()
				w.lastModel = w.committed.entry.Model
				w.committed = nil
			}
		}

		needy := make([]*task, 0)
		for _, t := range a.tasks {
			if t.active(b) && t.assignee[b] == "" {
				needy = append(needy, t)
			}
		}
		needyOrder(needy)

		for _, t := range needy {
			span := t.remainingSpan(b)
			if best := a.bestCandidate(t, span, b); best != nil {
				a.commit(best, t, span)
			}
		}
	}
}

// bestCandidate scores free, eligible, non-overlapping workers for the
// task span. Higher is better; ties break on worker id.
func (a *assigner) bestCandidate(t *task, span model.BlockSet, b int) *workerState {
	var best *workerState
	var bestScore float64
	for _, w := range a.workers {
		if w.committed != nil || !a.canStaff(w, t) {
			continue
		}
		if w.busy.Overlaps(span) {
			continue
		}
		if t.robot != "" && a.robotBusy[t.robot].Overlaps(span) {
			continue
		}
		s := a.score(w, t, b)
		if best == nil || s > bestScore {
			best, bestScore = w, s
		}
	}
	return best
}

// score ranks cascade continuity first (freed exactly at this block is
// highest, widening idle gaps lower, never-worked lowest after block
// zero), then same-model continuity, then efficiency.
func (a *assigner) score(w *workerState, t *task, b int) float64 {
	var s float64
	switch {
	case w.hasWorked:
		gap := float64(b - 1 - w.lastEnd)
		s = 1000 - gap*100
	case b == 0:
		s = 1000
	default:
		s = 0
	}
	if w.lastModel != "" && w.lastModel == t.entry.Model {
		s += 50
	}
	s += w.w.Efficiency * 10
	return s
}

// commit binds the worker to the task for the whole span and reserves
// the robot, when one is required, for the same blocks.
func (a *assigner) commit(w *workerState, t *task, span model.BlockSet) {
	for b := 0; b < a.numBlocks; b++ {
		if span.Has(b) {
			t.assignee[b] = w.w.ID
		}
	}
	w.busy |= span
	w.committed = t
	w.hasWorked = true
	if t.robot != "" {
		a.robotBusy[t.robot] |= span
	}
}

// relay covers tasks the cascade left short: a direct assignment when a
// worker freed up late, otherwise at most one swap per task, where an
// idle worker takes over a committed worker's task so the committed
// worker can move onto the uncovered one.
func (a *assigner) relay() {
	pending := make([]*task, 0)
	for _, t := range a.tasks {
		if !t.uncovered().Empty() {
			pending = append(pending, t)
		}
	}
	needyOrder(pending)

	for _, t := range pending {
		gap := t.uncovered()
		if gap.Empty() {
			continue // a previous swap may have covered it
		}
		if w := a.directWorker(t, gap); w != nil {
			a.claim(w, t, gap)
			continue
		}
		a.trySwap(t, gap)
	}
}

// directWorker finds an eligible worker whose booked blocks do not
// touch the uncovered span.
func (a *assigner) directWorker(t *task, gap model.BlockSet) *workerState {
	for _, w := range a.workers {
		if !a.canStaff(w, t) || w.busy.Overlaps(gap) {
			continue
		}
		if t.robot != "" && a.robotBusy[t.robot].Overlaps(gap) {
			continue
		}
		return w
	}
	return nil
}

// claim books a worker onto the uncovered blocks of a task.
func (a *assigner) claim(w *workerState, t *task, gap model.BlockSet) {
	for b := 0; b < a.numBlocks; b++ {
		if gap.Has(b) {
			t.assignee[b] = w.w.ID
		}
	}
	w.busy |= gap
	w.hasWorked = true
	if t.robot != "" {
		a.robotBusy[t.robot] |= gap
	}
}

// trySwap searches for a busy worker B who is eligible for the
// uncovered task and holds some other task's span that a free worker A
// could take over. Donor spans are found by scanning task assignments,
// not by the cascade's committed pointer, which is cleared once a span
// ends. Both substitutions must be jointly feasible; B's overlap is
// computed excluding the span being transferred away.
func (a *assigner) trySwap(t *task, gap model.BlockSet) {
	for _, b := range a.workers {
		if !a.canStaff(b, t) {
			continue
		}
		if t.robot != "" && a.robotBusy[t.robot].Overlaps(gap) {
			continue
		}
		for _, donor := range a.tasks {
			if donor == t {
				continue
			}
			donated := spanHeldBy(donor, b)
			if donated.Empty() {
				continue
			}
			if (b.busy &^ donated).Overlaps(gap) {
				continue
			}
			for _, other := range a.workers {
				if other == b || !a.canStaff(other, donor) {
					continue
				}
				if other.busy.Overlaps(donated) {
					continue
				}
				// Execute: A inherits B's span on the donor task, B
				// takes the gap. A required robot stays with the donor
				// task; only the driver changes.
				for blk := 0; blk < a.numBlocks; blk++ {
					if donated.Has(blk) {
						donor.assignee[blk] = other.w.ID
					}
				}
				other.busy |= donated
				other.hasWorked = true
				b.busy &^= donated
				if b.committed == donor {
					b.committed = nil
				}
				a.claim(b, t, gap)
				return
			}
		}
	}
}

// spanHeldBy is the set of active blocks on a task assigned to the
// worker.
func spanHeldBy(t *task, w *workerState) model.BlockSet {
	var s model.BlockSet
	for b, id := range t.assignee {
		if id == w.w.ID && t.pairs[b] > 0 {
			s.Add(b)
		}
	}
	return s
}

// emit materializes the simulation state into per-operator rows, one
// aggregate "SIN ASIGNAR" row when coverage is incomplete, per-worker
// timelines and the unassigned task list.
func (a *assigner) emit(result *model.AssignmentResult, day *model.DayResult) {
	timeline := make(map[string][]model.TimelineEntry)

	for _, t := range a.tasks {
		perOp := make(map[string][]int)
		for b, q := range t.pairs {
			if q == 0 {
				continue
			}
			op := t.assignee[b]
			if op == "" {
				op = model.UnassignedOperator
			}
			if perOp[op] == nil {
				perOp[op] = make([]int, len(t.pairs))
			}
			perOp[op][b] = q
			if op != model.UnassignedOperator {
				timeline[op] = append(timeline[op], model.TimelineEntry{
					Block:    b,
					Model:    t.entry.Model,
					Fraction: t.entry.Fraction,
					Robot:    t.robot,
					Pairs:    q,
				})
			}
		}

		ops := make([]string, 0, len(perOp))
		for op := range perOp {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			pairs := perOp[op]
			total := 0
			for _, q := range pairs {
				total += q
			}
			result.Rows = append(result.Rows, model.AssignedRow{
				Model:     t.entry.Model,
				Fraction:  t.entry.Fraction,
				Operation: t.entry.Operation,
				Resource:  t.entry.Resource,
				Operator:  op,
				Robot:     t.robot,
				Pairs:     pairs,
				Total:     total,
				Pending:   day.ModelTardiness[t.entry.Model],
			})
		}

		if gap := t.uncovered(); !gap.Empty() {
			var blocks []int
			pairs := 0
			for b := 0; b < a.numBlocks; b++ {
				if gap.Has(b) {
					blocks = append(blocks, b)
					pairs += t.pairs[b]
				}
			}
			result.Unassigned = append(result.Unassigned, model.UnassignedTask{
				Model:    t.entry.Model,
				Fraction: t.entry.Fraction,
				Robot:    t.robot,
				Blocks:   blocks,
				Pairs:    pairs,
				Partial:  len(blocks) < len(gapUnion(t)),
			})
		}
	}

	workers := make([]string, 0, len(timeline))
	for id := range timeline {
		workers = append(workers, id)
	}
	sort.Strings(workers)
	for _, id := range workers {
		entries := timeline[id]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Block != entries[j].Block {
				return entries[i].Block < entries[j].Block
			}
			if entries[i].Model != entries[j].Model {
				return entries[i].Model < entries[j].Model
			}
			return entries[i].Fraction < entries[j].Fraction
		})
		result.Timelines = append(result.Timelines, model.OperatorTimeline{Worker: id, Entries: entries})
	}
}

// gapUnion lists the task's active blocks, covered or not.
func gapUnion(t *task) []int {
	var blocks []int
	for b, q := range t.pairs {
		if q > 0 {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// safetyNet discards the later-processed side of any double booking
// that slipped through cross-task relay side effects.
func (a *assigner) safetyNet() {
	type claimKey struct {
		worker string
		block  int
	}
	seen := make(map[claimKey]int)
	for _, t := range a.tasks {
		for b, id := range t.assignee {
			if id == "" || t.pairs[b] == 0 {
				continue
			}
			key := claimKey{worker: id, block: b}
			if _, taken := seen[key]; taken {
				t.assignee[b] = ""
				continue
			}
			seen[key] = t.id
		}
	}
}
