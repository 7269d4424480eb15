package domain

// Evaluate decides whether the submitted answer is correct for q.
// Single-select requires the exact correct index; multi-select requires exact
// set equality with the key, so partial, superset, or subset selections are
// incorrect. Malformed input (wrong kind, out-of-range index, empty set)
// evaluates to false rather than failing: the caller's happy path stays simple
// and a bad submission can never take the session down.
func Evaluate(q Question, submitted Answer) bool {
	if submitted.Kind != q.Key.Kind {
		return false
	}
	switch q.Key.Kind {
	case AnswerSingle:
		if submitted.Index < 0 || submitted.Index >= len(q.Options) {
			return false
		}
		return submitted.Index == q.Key.Index
	case AnswerMultiple:
		if submitted.Empty() {
			return false
		}
		for _, idx := range submitted.Indices {
			if idx < 0 || idx >= len(q.Options) {
				return false
			}
		}
		return submitted.Equal(q.Key)
	default:
		return false
	}
}
