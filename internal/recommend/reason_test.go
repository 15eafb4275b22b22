package recommend

import (
	"testing"
	"time"
)

func TestMatchReason(t *testing.T) {
	sem := func(v int) *int { return &v }
	now := baseTime

	cases := []struct {
		name string
		llm  string
		in   reasonInput
		want string
	}{
		{
			name: "model reasoning wins",
			llm:  "  Directly funds senior wellness. ",
			in:   reasonInput{semantic: sem(90), funding: 100},
			want: "Directly funds senior wellness.",
		},
		{
			name: "strong semantic",
			in:   reasonInput{semantic: sem(70), funding: 10},
			want: "Strong AI semantic match with your project goals.",
		},
		{
			name: "good semantic with partial funding",
			in:   reasonInput{semantic: sem(50), funding: 50, matched: []string{"Youth"}},
			want: "Good semantic alignment with your project. Matches your focus areas: Youth. Funding range partially overlaps with your requirements.",
		},
		{
			name: "weak semantic is omitted",
			in:   reasonInput{semantic: sem(49), funding: 79.9},
			want: "Funding range partially overlaps with your requirements.",
		},
		{
			name: "deadline notice",
			in:   reasonInput{funding: 0, deadline: daysFrom(now, 14)},
			want: "Deadline approaching in 14 days.",
		},
		{
			name: "distant deadline",
			in:   reasonInput{funding: 0, deadline: daysFrom(now, 15)},
			want: ".",
		},
		{
			name: "partial day rounds up",
			in:   reasonInput{deadline: func() *time.Time { t := now.Add(36 * time.Hour); return &t }()},
			want: "Deadline approaching in 2 days.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchReason(tc.llm, tc.in, now); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
