// Package rating implements the performance-score and point-delta model
// together with the discrete rank ladder derived from cumulative points.
package rating

import (
	"fmt"
	"sort"
	"strings"
)

// Rank is the coarse ladder level.
type Rank int

// Ranks in ascending order.
const (
	Bronze Rank = iota
	Silver
	Gold
	Platinum
	Master
)

var rankNames = [...]string{"Bronze", "Silver", "Gold", "Platinum", "Master"}

func (r Rank) String() string {
	if r < Bronze || r > Master {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

// Tier is the sub-level within a rank. III is the lowest, I the highest.
type Tier int

const (
	TierI   Tier = 1
	TierII  Tier = 2
	TierIII Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierI:
		return "I"
	case TierII:
		return "II"
	case TierIII:
		return "III"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Grade is a (rank, tier) pair, the full ladder position.
type Grade struct {
	Rank Rank
	Tier Tier
}

// String renders the display form, e.g. "Gold II".
func (g Grade) String() string {
	return g.Rank.String() + " " + g.Tier.String()
}

// ladderIndex orders grades from Bronze III (0) to Master I (14).
func (g Grade) ladderIndex() int {
	return int(g.Rank)*3 + (3 - int(g.Tier))
}

// Before reports whether g sits below other on the ladder.
func (g Grade) Before(other Grade) bool {
	return g.ladderIndex() < other.ladderIndex()
}

// allGrades lists every grade in ladder order.
func allGrades() []Grade {
	grades := make([]Grade, 0, 15)
	for r := Bronze; r <= Master; r++ {
		for _, t := range []Tier{TierIII, TierII, TierI} {
			grades = append(grades, Grade{Rank: r, Tier: t})
		}
	}
	return grades
}

// Step binds a grade to the minimum point total required to hold it.
type Step struct {
	Grade     Grade
	Threshold int
}

// Ladder is the immutable threshold table. Safe for concurrent reads.
type Ladder struct {
	steps []Step // ascending by threshold, complete Bronze III .. Master I
}

// NewLadder validates and builds a ladder. Every grade must be present,
// the lowest threshold must be zero, and thresholds must be strictly
// increasing along the grade order.
func NewLadder(steps []Step) (Ladder, error) {
	want := allGrades()
	if len(steps) != len(want) {
		return Ladder{}, fmt.Errorf("%w: got %d steps, want %d", ErrBadLadder, len(steps), len(want))
	}
	ordered := make([]Step, len(steps))
	copy(ordered, steps)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Grade.ladderIndex() < ordered[j].Grade.ladderIndex()
	})
	for i, s := range ordered {
		if s.Grade != want[i] {
			return Ladder{}, fmt.Errorf("%w: missing step for %s", ErrBadLadder, want[i])
		}
	}
	if ordered[0].Threshold != 0 {
		return Ladder{}, fmt.Errorf("%w: lowest threshold must be 0, got %d", ErrBadLadder, ordered[0].Threshold)
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Threshold <= ordered[i-1].Threshold {
			return Ladder{}, fmt.Errorf("%w: threshold for %s (%d) not above %s (%d)",
				ErrBadLadder, ordered[i].Grade, ordered[i].Threshold, ordered[i-1].Grade, ordered[i-1].Threshold)
		}
	}
	return Ladder{steps: ordered}, nil
}

// DefaultLadder returns the stock threshold table.
func DefaultLadder() Ladder {
	thresholds := []int{0, 100, 200, 350, 525, 750, 1000, 1300, 1600, 2000, 2500, 3000, 3600, 4300, 5100}
	grades := allGrades()
	steps := make([]Step, len(grades))
	for i, g := range grades {
		steps[i] = Step{Grade: g, Threshold: thresholds[i]}
	}
	l, err := NewLadder(steps)
	if err != nil {
		panic("rating: default ladder invalid: " + err.Error())
	}
	return l
}

// GradeFor returns the grade whose threshold is the greatest value <= points.
// Zero (or negative) points always map to Bronze III.
func (l Ladder) GradeFor(points int) Grade {
	if points <= 0 {
		return Grade{Rank: Bronze, Tier: TierIII}
	}
	grade := l.steps[0].Grade
	for _, s := range l.steps {
		if s.Threshold > points {
			break
		}
		grade = s.Grade
	}
	return grade
}

// Steps returns a copy of the threshold table in ladder order.
func (l Ladder) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// ParseGrade parses a display string such as "Gold II".
func ParseGrade(s string) (Grade, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return Grade{}, fmt.Errorf("%w: %q", ErrBadGrade, s)
	}
	var g Grade
	found := false
	for r := Bronze; r <= Master; r++ {
		if strings.EqualFold(parts[0], r.String()) {
			g.Rank = r
			found = true
			break
		}
	}
	if !found {
		return Grade{}, fmt.Errorf("%w: unknown rank %q", ErrBadGrade, parts[0])
	}
	switch strings.ToUpper(parts[1]) {
	case "I":
		g.Tier = TierI
	case "II":
		g.Tier = TierII
	case "III":
		g.Tier = TierIII
	default:
		return Grade{}, fmt.Errorf("%w: unknown tier %q", ErrBadGrade, parts[1])
	}
	return g, nil
}

// ParseThresholds builds a ladder from a display-keyed map, the shape the
// configuration file uses ("Silver II": 525).
func ParseThresholds(thresholds map[string]int) (Ladder, error) {
	steps := make([]Step, 0, len(thresholds))
	for key, threshold := range thresholds {
		g, err := ParseGrade(key)
		if err != nil {
			return Ladder{}, err
		}
		steps = append(steps, Step{Grade: g, Threshold: threshold})
	}
	return NewLadder(steps)
}
