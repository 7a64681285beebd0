package metrics

import (
	"math"
	"testing"
)

func TestPercentile_Empty(t *testing.T) {
	got := percentile(nil, 50)
	if got != 0 {
		t.Errorf("percentile of empty slice: got %f, want 0", got)
	}
}

func TestPercentile_Single(t *testing.T) {
	got := percentile([]float64{42.0}, 99)
	if got != 42.0 {
		t.Errorf("percentile of single element: got %f, want 42.0", got)
	}
}

func TestPercentile_Known(t *testing.T) {
	// sorted: 1,2,3,4,5,6,7,8,9,10
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		p    float64
		want float64
	}{
		{50, 5},
		{90, 9},
		{95, 10},
		{99, 10},
		{10, 1},
	}
	for _, tt := range tests {
		got := percentile(sorted, tt.p)
		if got != tt.want {
			t.Errorf("percentile(%v, %.0f) = %f, want %f", sorted, tt.p, got, tt.want)
		}
	}
}

func TestSummarizeLatencies_Median(t *testing.T) {
	tests := []struct {
		name string
		vals []float64
		want float64
	}{
		{"single", []float64{1.5}, 1.5},
		{"odd", []float64{1.0, 1.2, 0.9, 1.1, 1.0}, 1.0},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"even pair", []float64{0.8, 1.2}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummarizeLatencies(tt.vals).Median
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("median of %v = %f, want %f", tt.vals, got, tt.want)
			}
		})
	}
}

func TestSummarizeLatencies_DoesNotMutate(t *testing.T) {
	vals := []float64{3, 1, 2}
	SummarizeLatencies(vals)
	if vals[0] != 3 || vals[1] != 1 || vals[2] != 2 {
		t.Errorf("input mutated: %v", vals)
	}
}

func TestSummarizeLatencies_Empty(t *testing.T) {
	if s := SummarizeLatencies(nil); s != nil {
		t.Errorf("SummarizeLatencies(nil) = %+v, want nil", s)
	}
}

func TestSummarizeLatencies_Values(t *testing.T) {
	vals := []float64{1.0, 1.2, 0.9, 1.1, 1.0}
	s := SummarizeLatencies(vals)
	if s == nil {
		t.Fatal("SummarizeLatencies returned nil")
	}
	if s.Median != 1.0 {
		t.Errorf("median = %f, want 1.0", s.Median)
	}
	if s.Min != 0.9 || s.Max != 1.2 {
		t.Errorf("min/max = %f/%f, want 0.9/1.2", s.Min, s.Max)
	}
	if s.P99 != 1.2 {
		t.Errorf("p99 = %f, want 1.2", s.P99)
	}
}

func TestThroughput(t *testing.T) {
	if got := Throughput(201, 5.2); math.Abs(got-201/5.2) > 1e-12 {
		t.Errorf("Throughput(201, 5.2) = %f", got)
	}
	if got := Throughput(100, 0); got != 0 {
		t.Errorf("Throughput with zero seconds = %f, want 0", got)
	}
	if got := Throughput(100, -1); got != 0 {
		t.Errorf("Throughput with negative seconds = %f, want 0", got)
	}
}
