package domain

import "testing"

func singleQuestion() Question {
	return Question{
		Prompt:  "Which measure is robust to outliers?",
		Options: []string{"mean", "range", "median", "variance"},
		Key:     Single(2),
	}
}

func multiQuestion() Question {
	return Question{
		Prompt:  "Select all measures of spread",
		Options: []string{"range", "mean", "variance", "mode"},
		Key:     Multiple(0, 2),
	}
}

func TestEvaluateSingleSelect(t *testing.T) {
	q := singleQuestion()

	if !Evaluate(q, Single(2)) {
		t.Fatalf("expected index 2 to be correct")
	}
	for _, idx := range []int{0, 1, 3} {
		if Evaluate(q, Single(idx)) {
			t.Fatalf("expected index %d to be incorrect", idx)
		}
	}
}

func TestEvaluateMultiSelectExactSet(t *testing.T) {
	q := multiQuestion()

	if !Evaluate(q, Multiple(0, 2)) {
		t.Fatalf("expected {0,2} to be correct")
	}
	if !Evaluate(q, Multiple(2, 0)) {
		t.Fatalf("expected order-insensitive match")
	}
	// No partial credit: supersets and subsets are wrong.
	if Evaluate(q, Multiple(0, 1, 2)) {
		t.Fatalf("superset must be incorrect")
	}
	if Evaluate(q, Multiple(0)) {
		t.Fatalf("subset must be incorrect")
	}
}

func TestEvaluateMalformedInput(t *testing.T) {
	single := singleQuestion()
	multi := multiQuestion()

	cases := []struct {
		name      string
		q         Question
		submitted Answer
	}{
		{"out of range index", single, Single(9)},
		{"negative index", single, Single(-1)},
		{"kind mismatch single", single, Multiple(2)},
		{"kind mismatch multi", multi, Single(0)},
		{"empty multi", multi, Multiple()},
		{"multi with out of range member", multi, Multiple(0, 2, 11)},
		{"zero value answer", single, Answer{}},
	}
	for _, tc := range cases {
		if Evaluate(tc.q, tc.submitted) {
			t.Fatalf("%s: expected false", tc.name)
		}
	}
}
