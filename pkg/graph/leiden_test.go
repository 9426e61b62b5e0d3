package graph

import (
	"fmt"
	"testing"
)

func triangle(prefix string, weight float64) []Edge {
	return []Edge{
		{From: prefix + "1", To: prefix + "2", Weight: weight},
		{From: prefix + "2", To: prefix + "3", Weight: weight},
		{From: prefix + "1", To: prefix + "3", Weight: weight},
	}
}

func communityOf(assignments []Assignment) map[string]int {
	out := make(map[string]int, len(assignments))
	for _, a := range assignments {
		out[a.NodeID] = a.CommunityID
	}
	return out
}

func TestDetectCommunitiesEmptyInput(t *testing.T) {
	if got := DetectCommunities(nil, 1.0); got != nil {
		t.Fatalf("expected nil for empty edge list, got %v", got)
	}
	if got := DetectCommunities([]Edge{}, 1.0); got != nil {
		t.Fatalf("expected nil for empty edge list, got %v", got)
	}
}

func TestDetectCommunitiesIgnoresUnusableEdges(t *testing.T) {
	edges := []Edge{
		{From: "a", To: "a", Weight: 1},
		{From: "a", To: "b", Weight: 0},
		{From: "a", To: "b", Weight: -2},
		{From: "", To: "b", Weight: 1},
	}
	if got := DetectCommunities(edges, 1.0); got != nil {
		t.Fatalf("expected nil when no usable edge exists, got %v", got)
	}
}

func TestDetectCommunitiesAssignsEveryNodeExactlyOnce(t *testing.T) {
	edges := append(triangle("a", 5), triangle("b", 5)...)
	edges = append(edges, Edge{From: "a1", To: "b1", Weight: 0.1})

	assignments := DetectCommunities(edges, 1.0)

	seen := make(map[string]int)
	for _, a := range assignments {
		seen[a.NodeID]++
	}
	for _, node := range []string{"a1", "a2", "a3", "b1", "b2", "b3"} {
		if seen[node] != 1 {
			t.Errorf("node %s assigned %d times, want exactly once", node, seen[node])
		}
	}
	if len(assignments) != 6 {
		t.Errorf("got %d assignments, want 6", len(assignments))
	}
}

func TestDetectCommunitiesSeparatesWeaklyLinkedClusters(t *testing.T) {
	edges := append(triangle("a", 10), triangle("b", 10)...)
	edges = append(edges, Edge{From: "a1", To: "b1", Weight: 0.01})

	comm := communityOf(DetectCommunities(edges, 1.0))

	if comm["a1"] != comm["a2"] || comm["a2"] != comm["a3"] {
		t.Errorf("first triangle split across communities: %v", comm)
	}
	if comm["b1"] != comm["b2"] || comm["b2"] != comm["b3"] {
		t.Errorf("second triangle split across communities: %v", comm)
	}
	if comm["a1"] == comm["b1"] {
		t.Errorf("weakly linked triangles merged into one community: %v", comm)
	}
}

func TestDetectCommunitiesKeepsComponentsSeparate(t *testing.T) {
	edges := append(triangle("x", 1), triangle("y", 1)...)

	comm := communityOf(DetectCommunities(edges, 1.0))

	for _, x := range []string{"x1", "x2", "x3"} {
		for _, y := range []string{"y1", "y2", "y3"} {
			if comm[x] == comm[y] {
				t.Errorf("nodes %s and %s from separate components share community %d", x, y, comm[x])
			}
		}
	}
}

func TestDetectHierarchyEveryLevelCoversAllNodes(t *testing.T) {
	var edges []Edge
	// four dense clusters in a ring
	for c := 0; c < 4; c++ {
		edges = append(edges, triangle(fmt.Sprintf("c%d-", c), 8)...)
	}
	for c := 0; c < 4; c++ {
		edges = append(edges, Edge{
			From:   fmt.Sprintf("c%d-1", c),
			To:     fmt.Sprintf("c%d-1", (c+1)%4),
			Weight: 1,
		})
	}

	levels := DetectHierarchy(edges, 1.0)
	if len(levels) == 0 {
		t.Fatal("expected at least one hierarchy level")
	}

	for lvl, assignments := range levels {
		if len(assignments) != 12 {
			t.Errorf("level %d assigns %d nodes, want 12", lvl, len(assignments))
		}
		seen := make(map[string]struct{})
		for _, a := range assignments {
			if _, dup := seen[a.NodeID]; dup {
				t.Errorf("level %d assigns node %s more than once", lvl, a.NodeID)
			}
			seen[a.NodeID] = struct{}{}
		}
	}
}

func TestDetectHierarchyLevelsGetCoarser(t *testing.T) {
	var edges []Edge
	for c := 0; c < 4; c++ {
		edges = append(edges, triangle(fmt.Sprintf("c%d-", c), 8)...)
	}
	for c := 0; c < 4; c++ {
		edges = append(edges, Edge{
			From:   fmt.Sprintf("c%d-1", c),
			To:     fmt.Sprintf("c%d-1", (c+1)%4),
			Weight: 1,
		})
	}

	levels := DetectHierarchy(edges, 1.0)

	prev := -1
	for lvl, assignments := range levels {
		distinct := make(map[int]struct{})
		for _, a := range assignments {
			distinct[a.CommunityID] = struct{}{}
		}
		if prev != -1 && len(distinct) > prev {
			t.Errorf("level %d has %d communities, more than previous level's %d", lvl, len(distinct), prev)
		}
		prev = len(distinct)
	}
}

func TestDetectCommunitiesDefaultsResolution(t *testing.T) {
	edges := triangle("a", 1)
	got := DetectCommunities(edges, 0)
	if len(got) != 3 {
		t.Fatalf("got %d assignments, want 3", len(got))
	}
	comm := communityOf(got)
	if comm["a1"] != comm["a2"] || comm["a2"] != comm["a3"] {
		t.Errorf("triangle should form one community: %v", comm)
	}
}
