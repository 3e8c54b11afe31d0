package scorer

import (
	"math"
	"testing"
)

func TestQualityNews_ZeroExpectedUsesDefaultRate(t *testing.T) {
	submission := int64(0)
	sample := int64(3_600_000) // one hour later

	got := QualityNews(sample, submission, 5, 0)
	want := math.Pow(1*DefaultRate, 0.8) / math.Pow(1+2, 1.8)

	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("QualityNews() = %v, want %v", got, want)
	}
}

func TestQualityNews_FiniteAndNonNegative(t *testing.T) {
	cases := []struct {
		sample, submission int64
		upvotes, expected  float64
	}{
		{1, 0, 0, 0},
		{3_600_000, 0, 100, 10},
		{3_600_000, 0, -5, 10}, // corrupt row, base clamps to zero
		{0, 0, 0, 0},           // zero age, default rate path
	}
	for _, c := range cases {
		got := QualityNews(c.sample, c.submission, c.upvotes, c.expected)
		if math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("QualityNews(%+v) = %v, want finite", c, got)
		}
		if got < 0 {
			t.Fatalf("QualityNews(%+v) = %v, want non-negative", c, got)
		}
	}
}

func TestQualityNews_FutureSubmissionClampsAge(t *testing.T) {
	got := QualityNews(0, 1000, 5, 5)
	want := QualityNews(0, 0, 5, 5)
	if got != want {
		t.Fatalf("future submission not clamped: got %v, want %v", got, want)
	}
}

func TestHackerNews_NegativeUpvotesClamped(t *testing.T) {
	got := HackerNews(3_600_000, 0, -10)
	want := HackerNews(3_600_000, 0, 0)
	if got != want {
		t.Fatalf("HackerNews(negative) = %v, want %v (clamped to zero)", got, want)
	}
}

func TestNewest_ZeroAgeIsInfinite(t *testing.T) {
	got := Newest(1000, 1000)
	if !math.IsInf(got, 1) {
		t.Fatalf("Newest(zero age) = %v, want +Inf", got)
	}
}

func TestNewest_OlderIsSmaller(t *testing.T) {
	newer := Newest(3_600_000*2, 3_600_000) // age 1h
	older := Newest(3_600_000*3, 0)         // age 3h
	if !(newer > older) {
		t.Fatalf("expected newer item to score higher: newer=%v older=%v", newer, older)
	}
}
