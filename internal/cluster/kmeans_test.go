package cluster

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func blobs() [][]float64 {
	return [][]float64{
		{0, 0}, {0.1, 0.05}, {0.05, 0.1},
		{5, 5}, {5.1, 4.9}, {4.9, 5.05},
		{10, 0}, {10.1, 0.1}, {9.9, -0.05},
	}
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	got, err := KMeans{}.Cluster(blobs(), 3, 42)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	for g := 0; g < 3; g++ {
		base := got[g*3]
		for i := 1; i < 3; i++ {
			if got[g*3+i] != base {
				t.Fatalf("blob %d split: %v", g, got)
			}
		}
	}
	if got[0] == got[3] || got[3] == got[6] || got[0] == got[6] {
		t.Fatalf("blobs merged: %v", got)
	}
}

func TestKMeansDeterministicForSeed(t *testing.T) {
	km := KMeans{Restarts: 3}
	first, err := km.Run(blobs(), 3, 7)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := km.Run(blobs(), 3, 7)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("non-deterministic run (-first +again):\n%s", diff)
		}
	}
}

func TestKMeansIdenticalPointsDoNotPanic(t *testing.T) {
	points := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	res, err := KMeans{}.Run(points, 3, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inertia != 0 {
		t.Fatalf("expected zero inertia, got %v", res.Inertia)
	}
	for _, a := range res.Assignments {
		if a != res.Assignments[0] {
			t.Fatalf("identical points split across groups: %v", res.Assignments)
		}
	}
}

func TestKMeansRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		points [][]float64
		k      int
	}{
		{"empty", nil, 3},
		{"zero k", blobs(), 0},
		{"k exceeds points", [][]float64{{1}, {2}}, 3},
		{"ragged", [][]float64{{1, 2}, {3}}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := (KMeans{}).Cluster(tc.points, tc.k, 42); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNearestPrefersLowestIndexOnTie(t *testing.T) {
	centroids := [][]float64{{1, 0}, {-1, 0}}
	if got := nearest([]float64{0, 0}, centroids); got != 0 {
		t.Fatalf("expected tie to resolve to 0, got %d", got)
	}
}

func TestLloydKeepsEmptyCentroid(t *testing.T) {
	points := [][]float64{{0}, {0.1}, {0.2}}
	centroids := [][]float64{{0.1}, {100}}
	res := lloyd(points, centroids, 10)
	if res.Centroids[1][0] != 100 {
		t.Fatalf("empty group centroid moved: %v", res.Centroids)
	}
	for _, a := range res.Assignments {
		if a != 0 {
			t.Fatalf("unexpected assignment: %v", res.Assignments)
		}
	}
}
