package merge

// Action is what the decision engine asks the executor to do.
type Action int

const (
	ActionNone Action = iota
	ActionMerge
)

func (a Action) String() string {
	if a == ActionMerge {
		return "merge"
	}
	return "none"
}

// Decision is the pure result of classifying one group.
type Decision struct {
	Action  Action
	Pair    [2]string
	Outcome Outcome
}

// Decide classifies a group by size. Exactly two ids merge; three or more are
// ambiguous and skipped; fewer than two have nothing to merge with.
func Decide(group Group) Decision {
	count := len(group.IDs)
	switch {
	case count == 2:
		return Decision{
			Action:  ActionMerge,
			Pair:    [2]string{group.IDs[0], group.IDs[1]},
			Outcome: Merged(group.Name),
		}
	case count > 2:
		return Decision{Action: ActionNone, Outcome: SkippedTooMany(group.Name, count)}
	default:
		return Decision{Action: ActionNone, Outcome: SkippedTooFew(group.Name, count)}
	}
}
