// Package stage holds the kanban lifecycle ordering and the forward-only rule
// applied when an open position's stage is recorded.
package stage

import (
	"fmt"
	"strings"
)

// Stage is a kanban lifecycle stage. Its integer value is its progress rank.
type Stage int8

const (
	Unset Stage = iota - 1
	Watch
	SetupWatch
	FlipWatch
	EnterNow
	JustEntered
	Hold
	Trim
	Exit
	Archive
)

var stageNames = [...]string{
	Watch:       "watch",
	SetupWatch:  "setup_watch",
	FlipWatch:   "flip_watch",
	EnterNow:    "enter_now",
	JustEntered: "just_entered",
	Hold:        "hold",
	Trim:        "trim",
	Exit:        "exit",
	Archive:     "archive",
}

// All lists every stage in rank order.
func All() []Stage {
	return []Stage{Watch, SetupWatch, FlipWatch, EnterNow, JustEntered, Hold, Trim, Exit, Archive}
}

// Rank is the stage's position in progress order, 0..8. Unset ranks -1.
func (s Stage) Rank() int {
	return int(s)
}

func (s Stage) Valid() bool {
	return s >= Watch && s <= Archive
}

func (s Stage) String() string {
	if !s.Valid() {
		return ""
	}
	return stageNames[s]
}

// Parse maps a stage name onto a Stage. Blank input is Unset without error;
// an unrecognized name is an error.
func Parse(raw string) (Stage, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return Unset, nil
	}
	for s, n := range stageNames {
		if n == name {
			return Stage(s), nil
		}
	}
	return Unset, fmt.Errorf("unknown kanban stage %q", raw)
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// -----------------------------------------------------------------------------

// Reconcile returns the stage that must be recorded. Once an open position has
// reached just_entered, a proposal ranking below the previous stage is refused
// and the previous stage is kept, so noisy inputs cannot walk the lifecycle
// backwards. archive never blocks a fresh proposal.
func Reconcile(proposed, previous Stage, hasOpenPosition bool) Stage {
	if !hasOpenPosition || !proposed.Valid() || !previous.Valid() {
		return proposed
	}
	if previous == Archive {
		return proposed
	}
	if previous.Rank() >= JustEntered.Rank() && proposed.Rank() < previous.Rank() {
		return previous
	}
	return proposed
}

// -----------------------------------------------------------------------------

// Direction is the trade side implied by a market-state label.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// DeriveDirection reads the side from labels such as HTF_BULL_LTF_PULLBACK.
// BULL is checked first.
func DeriveDirection(label string) Direction {
	if strings.Contains(label, "BULL") {
		return DirectionLong
	}
	if strings.Contains(label, "BEAR") {
		return DirectionShort
	}
	return DirectionNone
}
