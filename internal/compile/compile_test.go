package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calzaplan/calzaplan/internal/model"
)

func week() []model.Day {
	names := []string{"Lun", "Mar", "Mie", "Jue", "Vie"}
	days := make([]model.Day, len(names))
	for i, n := range names {
		days[i] = model.Day{Name: n, RegularMinutes: 570, RegularHeadcount: 20}
	}
	return days
}

func orderModels(ids ...string) []model.Model {
	out := make([]model.Model, len(ids))
	for i, id := range ids {
		out[i] = model.Model{ID: id, Volume: 500}
	}
	return out
}

func TestPriorityLevels(t *testing.T) {
	cons := []model.Constraint{
		{ID: "c1", Kind: model.KindPriority, Model: "A", Active: true, Params: model.ConstraintParams{Level: 3}},
		{ID: "c2", Kind: model.KindPriority, Model: "B", Active: true, Params: model.ConstraintParams{Level: 2}},
		{ID: "c3", Kind: model.KindPriority, Model: "C", Active: false, Params: model.ConstraintParams{Level: 3}},
	}
	c := Compile(cons, nil, orderModels("A", "B", "C"), week(), model.DefaultBlocks(), 0)

	assert.Equal(t, 5.0, c.Multiplier("A"))
	assert.Equal(t, 2.0, c.Multiplier("B"))
	assert.Equal(t, 1.0, c.Multiplier("C")) // inactive constraint ignored
	assert.Empty(t, c.Warnings)
}

func TestMaquilaDeduction(t *testing.T) {
	cons := []model.Constraint{
		{ID: "m1", Kind: model.KindMaquila, Model: "A", Active: true, Params: model.ConstraintParams{Pairs: 100}},
	}
	models := orderModels("A")
	c := Compile(cons, nil, models, week(), model.DefaultBlocks(), 0)

	assert.Equal(t, 100, c.Maquila["A"])
	assert.Equal(t, 400, c.EffectiveVolume(models[0]))
}

func TestVolumeOverride(t *testing.T) {
	cons := []model.Constraint{
		{ID: "v1", Kind: model.KindVolume, Model: "A", Active: true, Params: model.ConstraintParams{Volume: 250}},
	}
	models := orderModels("A")
	c := Compile(cons, nil, models, week(), model.DefaultBlocks(), 0)
	assert.Equal(t, 250, c.EffectiveVolume(models[0]))
}

func TestMaterialDelayDayFloor(t *testing.T) {
	cons := []model.Constraint{
		{ID: "d1", Kind: model.KindMaterialDelay, Model: "A", Active: true,
			Params: model.ConstraintParams{AvailableFrom: "Mar"}},
	}
	c := Compile(cons, nil, orderModels("A"), week(), model.DefaultBlocks(), 0)

	assert.False(t, c.DayAllowed("A", 0)) // Lun
	for d := 1; d < 5; d++ {
		assert.True(t, c.DayAllowed("A", d))
	}
}

func TestMaterialDelayHourRestrictsFirstDay(t *testing.T) {
	blocks := model.DefaultBlocks()
	cons := []model.Constraint{
		{ID: "d1", Kind: model.KindMaterialDelay, Model: "A", Active: true,
			Params: model.ConstraintParams{AvailableFrom: "Mar", Hour: "10:00"}},
	}
	c := Compile(cons, nil, orderModels("A"), week(), blocks, 0)

	got := c.Blocks("A", 1, len(blocks))
	assert.False(t, got.Has(0))
	assert.False(t, got.Has(2))
	assert.True(t, got.Has(3)) // 10:00 block
	assert.True(t, got.Has(9))

	// Other days keep the full grid.
	assert.Equal(t, model.AllBlocks(len(blocks)), c.Blocks("A", 2, len(blocks)))
}

func TestMaterialDelayHourPastShiftExcludesDay(t *testing.T) {
	cons := []model.Constraint{
		{ID: "d1", Kind: model.KindMaterialDelay, Model: "A", Active: true,
			Params: model.ConstraintParams{AvailableFrom: "Mar", Hour: "22:00"}},
	}
	c := Compile(cons, nil, orderModels("A"), week(), model.DefaultBlocks(), 0)

	assert.False(t, c.DayAllowed("A", 0))
	assert.False(t, c.DayAllowed("A", 1)) // no block starts at or after 22:00
	assert.True(t, c.DayAllowed("A", 2))
}

func TestDayPinIntersection(t *testing.T) {
	cons := []model.Constraint{
		{ID: "p1", Kind: model.KindDay, Model: "A", Active: true,
			Params: model.ConstraintParams{AllowDays: []string{"Lun", "Mar", "Mie"}}},
		{ID: "p2", Kind: model.KindDay, Model: "A", Active: true,
			Params: model.ConstraintParams{ExcludeDays: []string{"Lun"}}},
	}
	c := Compile(cons, nil, orderModels("A"), week(), model.DefaultBlocks(), 0)

	assert.False(t, c.DayAllowed("A", 0))
	assert.True(t, c.DayAllowed("A", 1))
	assert.True(t, c.DayAllowed("A", 2))
	assert.False(t, c.DayAllowed("A", 3))
}

func TestSequenceValidation(t *testing.T) {
	cons := []model.Constraint{
		{ID: "s1", Kind: model.KindSequence, Active: true, Params: model.ConstraintParams{Before: "A", After: "B"}},
		{ID: "s2", Kind: model.KindSequence, Active: true, Params: model.ConstraintParams{Before: "A", After: "Z"}},
	}
	c := Compile(cons, nil, orderModels("A", "B"), week(), model.DefaultBlocks(), 0)

	require.Len(t, c.Sequences, 1)
	assert.Equal(t, SequencePair{Before: "A", After: "B"}, c.Sequences[0])
	require.Len(t, c.Warnings, 1)
	assert.Contains(t, c.Warnings[0], "Z")
}

func TestSequenceCycleDropped(t *testing.T) {
	cons := []model.Constraint{
		{ID: "s1", Kind: model.KindSequence, Active: true, Params: model.ConstraintParams{Before: "A", After: "B"}},
		{ID: "s2", Kind: model.KindSequence, Active: true, Params: model.ConstraintParams{Before: "B", After: "A"}},
		{ID: "s3", Kind: model.KindSequence, Active: true, Params: model.ConstraintParams{Before: "A", After: "C"}},
	}
	c := Compile(cons, nil, orderModels("A", "B", "C"), week(), model.DefaultBlocks(), 0)

	require.Len(t, c.Sequences, 1)
	assert.Equal(t, "C", c.Sequences[0].After)
	assert.NotEmpty(t, c.Warnings)
}

func TestUnknownKindAndModelWarn(t *testing.T) {
	cons := []model.Constraint{
		{ID: "x1", Kind: model.ConstraintKind("TURBO"), Model: "A", Active: true},
		{ID: "x2", Kind: model.KindMaquila, Model: "NOPE", Active: true, Params: model.ConstraintParams{Pairs: 50}},
	}
	c := Compile(cons, nil, orderModels("A"), week(), model.DefaultBlocks(), 0)

	require.Len(t, c.Warnings, 2)
	assert.Contains(t, c.Warnings[0], "TURBO")
	assert.Contains(t, c.Warnings[1], "NOPE")
	assert.Empty(t, c.Maquila)
}

func TestWildcardTarget(t *testing.T) {
	cons := []model.Constraint{
		{ID: "w1", Kind: model.KindPriority, Model: "*", Active: true, Params: model.ConstraintParams{Level: 2}},
	}
	c := Compile(cons, nil, orderModels("A", "B"), week(), model.DefaultBlocks(), 0)
	assert.Equal(t, 2.0, c.Multiplier("A"))
	assert.Equal(t, 2.0, c.Multiplier("B"))
}

func TestProgressFreezesDays(t *testing.T) {
	progress := model.Progress{
		"A": {"Lun": 100, "Mar": 50},
		"Q": {"Lun": 10},
	}
	c := Compile(nil, progress, orderModels("A"), week(), model.DefaultBlocks(), 0)

	assert.True(t, c.Frozen("A", 0))
	assert.True(t, c.Frozen("A", 1))
	assert.False(t, c.Frozen("A", 2))
	assert.Equal(t, 150, c.AvancePairs("A"))
	require.Len(t, c.Warnings, 1)
	assert.Contains(t, c.Warnings[0], "Q")
}

func TestReoptimizeFromFreezesPrefix(t *testing.T) {
	c := Compile(nil, nil, orderModels("A"), week(), model.DefaultBlocks(), 2)
	assert.True(t, c.Frozen("A", 0))
	assert.True(t, c.Frozen("A", 1))
	assert.False(t, c.Frozen("A", 2))
}

func TestCompileIdempotent(t *testing.T) {
	cons := []model.Constraint{
		{ID: "c1", Kind: model.KindPriority, Model: "A", Active: true, Params: model.ConstraintParams{Level: 3}},
		{ID: "m1", Kind: model.KindMaquila, Model: "B", Active: true, Params: model.ConstraintParams{Pairs: 100}},
		{ID: "d1", Kind: model.KindMaterialDelay, Model: "A", Active: true,
			Params: model.ConstraintParams{AvailableFrom: "Mie", Hour: "08:00"}},
		{ID: "s1", Kind: model.KindSequence, Active: true, Params: model.ConstraintParams{Before: "A", After: "B"}},
	}
	progress := model.Progress{"B": {"Lun": 50}}

	first := Compile(cons, progress, orderModels("A", "B"), week(), model.DefaultBlocks(), 1)
	second := Compile(cons, progress, orderModels("A", "B"), week(), model.DefaultBlocks(), 1)
	assert.Equal(t, first, second)
}
