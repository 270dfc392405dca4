package domain

// EntryVolume is weight x sets x reps for a completed entry and zero otherwise.
func EntryVolume(e ExerciseEntry) int {
	if !e.Completed {
		return 0
	}
	return e.EffectiveWeight() * e.EffectiveSets() * e.EffectiveReps()
}

// Volume sums EntryVolume over entries. Live progress, the pre-completion
// summary and the persisted record all go through this function.
func Volume(entries []ExerciseEntry) int {
	total := 0
	for _, entry := range entries {
		total += EntryVolume(entry)
	}
	return total
}

// CompletedCount returns how many entries are ticked off.
func CompletedCount(entries []ExerciseEntry) int {
	n := 0
	for _, entry := range entries {
		if entry.Completed {
			n++
		}
	}
	return n
}
