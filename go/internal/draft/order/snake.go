// Package order implements snake draft turn order.
package order

// Drafter returns the draft slot (1..participantCount) on the clock for a
// 1-based pick number. Odd rounds run 1..N, even rounds run N..1.
// It returns 0 for a pick number or participant count below 1.
func Drafter(pickNumber, participantCount int) int {
	if pickNumber < 1 || participantCount < 1 {
		return 0
	}
	position := (pickNumber - 1) % participantCount
	if Round(pickNumber, participantCount)%2 == 1 {
		return position + 1
	}
	return participantCount - position
}

// Round returns the 1-based round a pick number falls in.
func Round(pickNumber, participantCount int) int {
	if pickNumber < 1 || participantCount < 1 {
		return 0
	}
	return (pickNumber + participantCount - 1) / participantCount
}

// PickInRound returns the 1-based position of a pick within its round.
func PickInRound(pickNumber, participantCount int) int {
	if pickNumber < 1 || participantCount < 1 {
		return 0
	}
	return (pickNumber-1)%participantCount + 1
}

// TotalPicks is the number of picks that completes a draft.
func TotalPicks(participantCount, rounds int) int {
	if participantCount < 1 || rounds < 1 {
		return 0
	}
	return participantCount * rounds
}

// Sequence returns the slot on the clock for every pick of a draft, indexed by
// pick number - 1.
func Sequence(participantCount, rounds int) []int {
	total := TotalPicks(participantCount, rounds)
	slots := make([]int, total)
	for pick := 1; pick <= total; pick++ {
		slots[pick-1] = Drafter(pick, participantCount)
	}
	return slots
}
