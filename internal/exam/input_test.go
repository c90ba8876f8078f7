package exam

import "testing"

func TestValidNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"12.5", true},
		{"12", true},
		{"-3", true},
		{"-0.25", true},
		{".5", true},
		{"0", true},
		{"", false},
		{"-", false},
		{".", false},
		{"12.5.3", false},
		{"12.", false},
		{"1e3", false},
		{"--1", false},
		{"abc", false},
	}
	for _, tt := range tests {
		if got := ValidNumeric(tt.in); got != tt.want {
			t.Errorf("ValidNumeric(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCapture(t *testing.T) {
	test := mixedTest(t)

	tests := []struct {
		name  string
		q     int
		in    input
		want  Answer
		saved bool
	}{
		{"mcq selected", 0, input{selected: []string{"B"}}, ChoiceAnswer("B"), true},
		{"mcq empty", 0, input{}, nil, false},
		{"msq sorted", 1, input{selected: []string{"C", "A"}}, NewSetAnswer("A", "C"), true},
		{"msq none", 1, input{selected: []string{}}, nil, false},
		{"numeric kept as text", 2, input{text: "12.5"}, NumericAnswer("12.5"), true},
		{"numeric trimmed", 2, input{text: " 7 "}, NumericAnswer("7"), true},
		{"numeric minus only", 2, input{text: "-"}, nil, false},
		{"numeric double point", 2, input{text: "12.5.3"}, nil, false},
		{"true-false false", 3, input{selected: []string{"false"}}, BoolAnswer(false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := capture(test.Questions[tt.q], tt.in)
			if ok != tt.saved {
				t.Fatalf("saved = %v, want %v", ok, tt.saved)
			}
			if tt.saved && !sameAnswer(got, tt.want) {
				t.Errorf("answer = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func sameAnswer(a, b Answer) bool {
	sa, aok := a.(SetAnswer)
	sb, bok := b.(SetAnswer)
	if aok || bok {
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if sa[i] != sb[i] {
				return false
			}
		}
		return true
	}
	return a == b
}
