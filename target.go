package main

// TapOutcome is the result of a resolved tap.
type TapOutcome int

const (
	TapContinue TapOutcome = iota
	TapWin
	TapItemPickup
)

func (o TapOutcome) String() string {
	switch o {
	case TapContinue:
		return "continue"
	case TapWin:
		return "win"
	case TapItemPickup:
		return "item-pickup"
	}
	return "unknown"
}

// assignTargets builds the elimination cycle for an ordered member list:
// player i targets player i+1 mod N, a single N-cycle.
func assignTargets(memberIDs []string) map[string]string {
	targets := make(map[string]string, len(memberIDs))
	n := len(memberIDs)
	for i, id := range memberIDs {
		targets[id] = memberIDs[(i+1)%n]
	}
	return targets
}

// contractCycle removes tapped from the cycle: the tapper inherits the
// tapped player's target. Returns true when the cycle closed on the tapper
// itself, i.e. the tapper is the sole survivor.
func contractCycle(targets map[string]string, tapperID, tappedID string) bool {
	targets[tapperID] = targets[tappedID]
	delete(targets, tappedID)
	return targets[tapperID] == tapperID
}
