package weekly

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calzaplan/calzaplan/internal/compile"
	"github.com/calzaplan/calzaplan/internal/model"
)

func testWeek(weekend bool) []model.Day {
	days := []model.Day{
		{Name: "Lun", RegularMinutes: 570, RegularHeadcount: 20},
		{Name: "Mar", RegularMinutes: 570, RegularHeadcount: 20},
		{Name: "Mie", RegularMinutes: 570, RegularHeadcount: 20},
		{Name: "Jue", RegularMinutes: 570, RegularHeadcount: 20},
		{Name: "Vie", RegularMinutes: 570, RegularHeadcount: 20},
	}
	if weekend {
		days = append(days, model.Day{Name: "Sab", RegularMinutes: 300, RegularHeadcount: 10, Weekend: true})
	}
	return days
}

func testCapacities() map[model.ResourceKind]int {
	return map[model.ResourceKind]int{
		model.ResourceMesa:  12,
		model.ResourcePlana: 8,
		model.ResourcePoste: 4,
		model.ResourceRobot: 2,
	}
}

func simpleModel(id string, volume int) model.Model {
	return model.Model{
		ID:     id,
		Volume: volume,
		Operations: []model.Operation{
			{Fraction: 1, Description: "preparado", Resource: model.ResourceMesa, RatePairsHr: 100},
			{Fraction: 2, Description: "costura", Resource: model.ResourcePlana, RatePairsHr: 120},
		},
	}
}

func compiled(t *testing.T, cons []model.Constraint, progress model.Progress, models []model.Model, days []model.Day) *compile.Compiled {
	t.Helper()
	return compile.Compile(cons, progress, models, days, model.DefaultBlocks(), 0)
}

func optimize(t *testing.T, models []model.Model, days []model.Day, c *compile.Compiled) (*model.WeeklySchedule, *model.WeeklySummary) {
	t.Helper()
	sched, summary, err := Optimize(context.Background(), models, days, testCapacities(), c, model.DefaultParams())
	require.NoError(t, err)
	return sched, summary
}

func TestScenarioSingleModelAmpleCapacity(t *testing.T) {
	models := []model.Model{simpleModel("M1", 500)}
	days := testWeek(false)

	sched, summary := optimize(t, models, days, compiled(t, nil, nil, models, days))

	total := 0
	for _, r := range sched.Rows {
		assert.Equal(t, "M1", r.Model)
		assert.Zero(t, r.Pairs%50)
		total += r.Pairs
	}
	assert.Equal(t, 500, total)

	require.Len(t, summary.Models, 1)
	assert.Equal(t, 0, summary.Models[0].Tardiness)
	assert.Equal(t, 500, summary.Models[0].Produced)
	assert.Contains(t, []string{"OPTIMAL", "FEASIBLE"}, summary.Status)
}

func TestVolumeClosureProperty(t *testing.T) {
	models := []model.Model{
		simpleModel("M1", 500),
		simpleModel("M2", 1200),
		simpleModel("M3", 350),
	}
	days := testWeek(true)

	sched, summary := optimize(t, models, days, compiled(t, nil, nil, models, days))

	for _, ms := range summary.Models {
		produced := 0
		for _, r := range sched.Rows {
			if r.Model == ms.Model {
				produced += r.Pairs
			}
		}
		assert.Equal(t, ms.Volume, produced+ms.Tardiness,
			"closure for %s", ms.Model)
		assert.GreaterOrEqual(t, ms.Tardiness, 0)
	}
}

func TestLotStepAndMinimumLot(t *testing.T) {
	models := []model.Model{simpleModel("M1", 730)}
	days := testWeek(false)

	sched, _ := optimize(t, models, days, compiled(t, nil, nil, models, days))

	for _, r := range sched.Rows {
		assert.Zero(t, r.Pairs%50, "lot step on %s", r.Day)
		assert.GreaterOrEqual(t, r.Pairs, 100, "minimum lot on %s", r.Day)
	}
	// 730 is not a lot-step multiple: 30 pairs stay tardy.
	total := 0
	for _, r := range sched.Rows {
		total += r.Pairs
	}
	assert.Equal(t, 700, total)
}

func TestScenarioMaquilaDeduction(t *testing.T) {
	models := []model.Model{simpleModel("M1", 500)}
	days := testWeek(false)
	cons := []model.Constraint{
		{ID: "m1", Kind: model.KindMaquila, Model: "M1", Active: true, Params: model.ConstraintParams{Pairs: 100}},
	}

	sched, summary := optimize(t, models, days, compiled(t, cons, nil, models, days))

	total := 0
	for _, r := range sched.Rows {
		total += r.Pairs
	}
	assert.Equal(t, 400, total)
	assert.Equal(t, 400, summary.Models[0].Volume)
	assert.Equal(t, 0, summary.Models[0].Tardiness)
}

func TestScenarioMaterialDelayBlocksMonday(t *testing.T) {
	models := []model.Model{simpleModel("M1", 500)}
	days := testWeek(false)
	cons := []model.Constraint{
		{ID: "d1", Kind: model.KindMaterialDelay, Model: "M1", Active: true,
			Params: model.ConstraintParams{AvailableFrom: "Mar"}},
	}

	sched, summary := optimize(t, models, days, compiled(t, cons, nil, models, days))

	assert.Zero(t, sched.Pairs("M1", "Lun"))
	assert.Equal(t, 0, summary.Models[0].Tardiness)
}

func TestSequenceOrdersProduction(t *testing.T) {
	models := []model.Model{simpleModel("A", 1500), simpleModel("B", 400)}
	days := testWeek(false)
	cons := []model.Constraint{
		{ID: "s1", Kind: model.KindSequence, Active: true,
			Params: model.ConstraintParams{Before: "A", After: "B"}},
	}

	sched, summary := optimize(t, models, days, compiled(t, cons, nil, models, days))

	for _, ms := range summary.Models {
		assert.Equal(t, 0, ms.Tardiness, ms.Model)
	}

	// B may only produce once A's cumulative covers its full volume.
	cumA := 0
	for _, day := range days {
		cumA += sched.Pairs("A", day.Name)
		if sched.Pairs("B", day.Name) > 0 {
			assert.GreaterOrEqual(t, cumA, 1500, "B produced on %s before A finished", day.Name)
		}
	}
}

func TestResourceCapacityProperty(t *testing.T) {
	models := []model.Model{
		simpleModel("M1", 2000),
		simpleModel("M2", 2000),
		simpleModel("M3", 2000),
	}
	days := testWeek(true)
	caps := testCapacities()

	sched, _, err := Optimize(context.Background(), models, days, caps, compiled(t, nil, nil, models, days), model.DefaultParams())
	require.NoError(t, err)

	secPerPair := map[string]map[model.ResourceKind]float64{}
	for _, m := range models {
		res := map[model.ResourceKind]float64{}
		for _, op := range m.Operations {
			res[op.Resource] += op.SecondsPerPair()
		}
		secPerPair[m.ID] = res
	}

	for _, day := range days {
		for kind, cap := range caps {
			var used float64
			for _, r := range sched.Rows {
				if r.Day == day.Name {
					used += float64(r.Pairs) * secPerPair[r.Model][kind]
				}
			}
			limit := float64(cap * day.TotalMinutes() * 60)
			assert.LessOrEqual(t, used, limit+1e-6, "resource %s on %s", kind, day.Name)
		}
	}
}

func TestWeekendAvoidedWhenWeekSuffices(t *testing.T) {
	models := []model.Model{simpleModel("M1", 600)}
	days := testWeek(true)

	sched, _ := optimize(t, models, days, compiled(t, nil, nil, models, days))
	assert.Zero(t, sched.Pairs("M1", "Sab"))
}

func TestFrozenProgressKeptInPlan(t *testing.T) {
	models := []model.Model{simpleModel("M1", 500)}
	days := testWeek(false)
	progress := model.Progress{"M1": {"Lun": 150}}

	sched, summary := optimize(t, models, days, compiled(t, nil, progress, models, days))

	assert.Equal(t, 150, sched.Pairs("M1", "Lun"))
	assert.Equal(t, 500, summary.Models[0].Produced)
	assert.Equal(t, 0, summary.Models[0].Tardiness)
}

func TestProgressBeyondVolumeIsInfeasible(t *testing.T) {
	models := []model.Model{simpleModel("M1", 500)}
	days := testWeek(false)
	progress := model.Progress{"M1": {"Lun": 600}}

	_, _, err := Optimize(context.Background(), models, days, testCapacities(),
		compiled(t, nil, progress, models, days), model.DefaultParams())
	require.Error(t, err)
	var infeasible *InfeasibleError
	assert.ErrorAs(t, err, &infeasible)
}

func TestEmptyInputsAreFatal(t *testing.T) {
	models := []model.Model{simpleModel("M1", 500)}
	days := testWeek(false)
	params := model.DefaultParams()

	_, _, err := Optimize(context.Background(), nil, days, testCapacities(), nil, params)
	assert.Error(t, err)

	_, _, err = Optimize(context.Background(), models, nil, testCapacities(), nil, params)
	assert.Error(t, err)

	_, _, err = Optimize(context.Background(), models, days, nil, nil, params)
	assert.Error(t, err)
}

func TestDeterministicAcrossRuns(t *testing.T) {
	models := []model.Model{
		simpleModel("M1", 900),
		simpleModel("M2", 650),
	}
	days := testWeek(true)
	c := compiled(t, nil, nil, models, days)

	first, _ := optimize(t, models, days, c)
	second, _ := optimize(t, models, days, c)
	assert.Equal(t, first, second)
}
