package engine

// Status is the display state of one question index in the progress map.
type Status string

const (
	StatusUnanswered Status = "unanswered"
	StatusAnswered   Status = "answered"
	StatusFlagged    Status = "flagged"
	StatusCorrect    Status = "correct"
	StatusIncorrect  Status = "incorrect"
	StatusCurrent    Status = "current"
)

// ProgressInput carries the session projections the progress map is built
// from. Correct/Incorrect are consulted only in review mode.
type ProgressInput struct {
	Total     int
	Current   int
	Answered  map[int]bool
	Flagged   map[int]bool
	Review    bool
	Correct   map[int]bool
	Incorrect map[int]bool
}

// BuildProgress derives the per-index status used for jump navigation.
// Precedence: current beats everything; in review, correctness beats the
// flag; outside review, the flag beats answered for display. The underlying
// answered/flagged sets stay untouched, so display precedence never hides
// state from the session itself.
func BuildProgress(in ProgressInput) []Status {
	statuses := make([]Status, in.Total)
	for i := 0; i < in.Total; i++ {
		statuses[i] = statusFor(in, i)
	}
	return statuses
}

func statusFor(in ProgressInput, i int) Status {
	if i == in.Current {
		return StatusCurrent
	}
	if in.Review {
		switch {
		case in.Correct[i]:
			return StatusCorrect
		case in.Incorrect[i]:
			return StatusIncorrect
		case in.Flagged[i]:
			return StatusFlagged
		}
		return StatusUnanswered
	}
	switch {
	case in.Flagged[i]:
		return StatusFlagged
	case in.Answered[i]:
		return StatusAnswered
	}
	return StatusUnanswered
}
