package model

import "fmt"

// Day is one calendar entry of the planning week.
type Day struct {
	Name              string `yaml:"name"`
	RegularMinutes    int    `yaml:"regular_minutes"`
	RegularHeadcount  int    `yaml:"regular_headcount"`
	OvertimeMinutes   int    `yaml:"overtime_minutes,omitempty"`
	OvertimeHeadcount int    `yaml:"overtime_headcount,omitempty"`
	Weekend           bool   `yaml:"weekend,omitempty"`
}

// TotalMinutes is regular plus overtime shift length.
func (d Day) TotalMinutes() int {
	return d.RegularMinutes + d.OvertimeMinutes
}

// TotalHeadcount is the full crew including overtime staff.
func (d Day) TotalHeadcount() int {
	return d.RegularHeadcount + d.OvertimeHeadcount
}

// DayIndex resolves a day name against the calendar, -1 when absent.
func DayIndex(days []Day, name string) int {
	for i, d := range days {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// TimeBlock is one fixed subdivision of the working day.
type TimeBlock struct {
	Index   int
	Start   int // minutes from midnight
	Minutes int
}

// Seconds is the block length in seconds.
func (b TimeBlock) Seconds() int { return b.Minutes * 60 }

// DefaultBlocks is the reference ten-block grid: four hours from 07:00,
// a 70-minute block, a 30-minute meal gap, a second 70-minute block, and
// three closing hours. 620 working minutes in total.
func DefaultBlocks() []TimeBlock {
	starts := []struct{ start, mins int }{
		{7 * 60, 60}, {8 * 60, 60}, {9 * 60, 60}, {10 * 60, 60},
		{11 * 60, 70},
		{12*60 + 40, 70},
		{13*60 + 50, 60}, {14*60 + 50, 60}, {15*60 + 50, 60}, {16*60 + 50, 60},
	}
	blocks := make([]TimeBlock, len(starts))
	for i, s := range starts {
		blocks[i] = TimeBlock{Index: i, Start: s.start, Minutes: s.mins}
	}
	return blocks
}

// BlockSet is a bitset over block indices. The reference grid has ten
// blocks, so sixteen bits is plenty.
type BlockSet uint16

func (s BlockSet) Has(i int) bool     { return s&(1<<uint(i)) != 0 }
func (s *BlockSet) Add(i int)         { *s |= 1 << uint(i) }
func (s *BlockSet) Remove(i int)      { *s &^= 1 << uint(i) }
func (s BlockSet) Empty() bool        { return s == 0 }
func (s BlockSet) Overlaps(o BlockSet) bool { return s&o != 0 }

// AllBlocks returns the set containing blocks [0, n).
func AllBlocks(n int) BlockSet {
	if n >= 16 {
		n = 16
	}
	return BlockSet(1<<uint(n)) - 1
}

// BlocksFrom returns the subset of blocks whose clock start is at or
// after startMinute.
func BlocksFrom(blocks []TimeBlock, startMinute int) BlockSet {
	var s BlockSet
	for _, b := range blocks {
		if b.Start >= startMinute {
			s.Add(b.Index)
		}
	}
	return s
}

// ParseClock parses "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}
