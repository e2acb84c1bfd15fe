package debate

import "time"

// Round derives the current round from the argument-message count.
// One round is a pair of alternating argument posts; the function counts
// history, it does not enforce alternation.
func Round(argumentCount int) int {
	return argumentCount/2 + 1
}

// Phase derives the debate status. The archived flag is the only stored
// state; active vs voting is recomputed from the argument count and the
// settlement deadline on every read.
//
// endTime is the mirrored arena's unix deadline, or 0 when no arena exists.
func Phase(argumentCount int, endTime int64, archived bool, now time.Time) string {
	if archived {
		return PhaseArchived
	}
	if Round(argumentCount) > MaxRounds {
		return PhaseVoting
	}
	if endTime > 0 && now.Unix() >= endTime {
		return PhaseVoting
	}
	return PhaseActive
}

// CountArguments counts argument-type messages in a log.
func CountArguments(messages []Message) int {
	n := 0
	for i := range messages {
		if messages[i].Type == TypeArgument {
			n++
		}
	}
	return n
}

// countArgumentsBy counts argument-type messages posted by one agent.
func countArgumentsBy(messages []Message, agentID string) int {
	n := 0
	for i := range messages {
		if messages[i].Type == TypeArgument && messages[i].AgentID == agentID {
			n++
		}
	}
	return n
}
