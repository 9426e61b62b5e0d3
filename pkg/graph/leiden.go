package graph

import "sort"

// Edge is one weighted undirected edge of a campaign graph. Reciprocal
// directed relationships should be collapsed into a single edge before
// detection, summing their weights.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
}

// Assignment maps one node to the community it belongs to at a given
// hierarchy level. Community ids are dense integers local to that level.
type Assignment struct {
	NodeID      string `json:"node_id"`
	CommunityID int    `json:"community_id"`
}

// DefaultResolution is the granularity used when the caller passes a
// non-positive resolution. Higher values favor more, smaller communities.
const DefaultResolution = 1.0

type neighbor struct {
	node   int
	weight float64
}

type weightedGraph struct {
	n        int
	adj      [][]neighbor
	selfLoop []float64
	strength []float64
	total    float64
}

// DetectCommunities partitions the graph spanned by edges into communities
// using iterative local-moving modularity optimization followed by
// aggregation. Every node appearing in any edge is assigned to exactly one
// community; an empty edge list yields an empty result. Nodes in separate
// connected components never share a community.
func DetectCommunities(edges []Edge, resolution float64) []Assignment {
	levels := DetectHierarchy(edges, resolution)
	if len(levels) == 0 {
		return nil
	}
	return levels[len(levels)-1]
}

// DetectHierarchy runs the full detection and returns one partition per
// aggregation level. Level 0 is the finest partition; each later level is
// a coarser aggregate of the previous one. All partitions assign every
// input node.
func DetectHierarchy(edges []Edge, resolution float64) [][]Assignment {
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	g, nodes := buildGraph(edges)
	if g == nil {
		return nil
	}

	// membership[i] is the super-node of original node i in the current
	// aggregate graph.
	membership := make([]int, len(nodes))
	for i := range membership {
		membership[i] = i
	}

	var levels [][]Assignment
	for {
		comm := make([]int, g.n)
		for i := range comm {
			comm[i] = i
		}
		localMove(g, comm, resolution)
		nComm := renumber(comm)

		// A pass that merged nothing reproduces the previous level.
		if nComm == g.n && len(levels) > 0 {
			break
		}

		level := make([]Assignment, len(nodes))
		for i, name := range nodes {
			level[i] = Assignment{NodeID: name, CommunityID: comm[membership[i]]}
		}
		levels = append(levels, level)

		if nComm == g.n || nComm == 1 {
			break
		}

		for i := range membership {
			membership[i] = comm[membership[i]]
		}
		g = aggregate(g, comm, nComm)
	}

	return levels
}

// buildGraph indexes node names and constructs the undirected adjacency
// structure. Self-referencing or non-positive-weight edges are ignored.
// Returns nil when no usable edge exists.
func buildGraph(edges []Edge) (*weightedGraph, []string) {
	index := make(map[string]int)
	var nodes []string

	idxOf := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		i := len(nodes)
		index[name] = i
		nodes = append(nodes, name)
		return i
	}

	type pair struct{ a, b int }
	weights := make(map[pair]float64)
	for _, e := range edges {
		if e.From == "" || e.To == "" || e.From == e.To || e.Weight <= 0 {
			continue
		}
		a, b := idxOf(e.From), idxOf(e.To)
		if a > b {
			a, b = b, a
		}
		weights[pair{a, b}] += e.Weight
	}
	if len(weights) == 0 {
		return nil, nil
	}

	g := &weightedGraph{
		n:        len(nodes),
		adj:      make([][]neighbor, len(nodes)),
		selfLoop: make([]float64, len(nodes)),
		strength: make([]float64, len(nodes)),
	}
	for p, w := range weights {
		g.adj[p.a] = append(g.adj[p.a], neighbor{node: p.b, weight: w})
		g.adj[p.b] = append(g.adj[p.b], neighbor{node: p.a, weight: w})
		g.strength[p.a] += w
		g.strength[p.b] += w
	}
	for i := range g.adj {
		sort.Slice(g.adj[i], func(a, b int) bool { return g.adj[i][a].node < g.adj[i][b].node })
		g.total += g.strength[i]
	}

	return g, nodes
}

// localMove greedily reassigns nodes to the neighboring community with the
// highest modularity gain until no improving move remains. Returns whether
// any node moved.
func localMove(g *weightedGraph, comm []int, resolution float64) bool {
	commTot := make([]float64, g.n)
	for i, c := range comm {
		commTot[c] += g.strength[i]
	}

	improved := false
	for changed := true; changed; {
		changed = false
		for i := 0; i < g.n; i++ {
			ci := comm[i]
			ki := g.strength[i]
			commTot[ci] -= ki

			wTo := make(map[int]float64, len(g.adj[i]))
			wTo[ci] += 0
			for _, nb := range g.adj[i] {
				wTo[comm[nb.node]] += nb.weight
			}

			best := ci
			bestGain := wTo[ci] - resolution*commTot[ci]*ki/g.total
			for c, w := range wTo {
				if c == ci {
					continue
				}
				gain := w - resolution*commTot[c]*ki/g.total
				if gain > bestGain+1e-12 {
					best, bestGain = c, gain
				}
			}

			comm[i] = best
			commTot[best] += ki
			if best != ci {
				changed = true
				improved = true
			}
		}
	}
	return improved
}

// renumber compacts community ids to 0..k-1 and returns k.
func renumber(comm []int) int {
	remap := make(map[int]int, len(comm))
	for i, c := range comm {
		id, ok := remap[c]
		if !ok {
			id = len(remap)
			remap[c] = id
		}
		comm[i] = id
	}
	return len(remap)
}

// aggregate collapses each community into a super-node, summing edge
// weights between communities and folding intra-community weight into
// self-loops.
func aggregate(g *weightedGraph, comm []int, nComm int) *weightedGraph {
	next := &weightedGraph{
		n:        nComm,
		adj:      make([][]neighbor, nComm),
		selfLoop: make([]float64, nComm),
		strength: make([]float64, nComm),
	}

	type pair struct{ a, b int }
	weights := make(map[pair]float64)
	for i := 0; i < g.n; i++ {
		ci := comm[i]
		next.selfLoop[ci] += g.selfLoop[i]
		for _, nb := range g.adj[i] {
			cj := comm[nb.node]
			if ci == cj {
				// each intra-community edge is visited from both ends
				next.selfLoop[ci] += nb.weight / 2
				continue
			}
			a, b := ci, cj
			if a > b {
				a, b = b, a
			}
			if i < nb.node {
				weights[pair{a, b}] += nb.weight
			}
		}
	}

	for p, w := range weights {
		next.adj[p.a] = append(next.adj[p.a], neighbor{node: p.b, weight: w})
		next.adj[p.b] = append(next.adj[p.b], neighbor{node: p.a, weight: w})
	}
	for i := 0; i < nComm; i++ {
		next.strength[i] = 2 * next.selfLoop[i]
		for _, nb := range next.adj[i] {
			next.strength[i] += nb.weight
		}
		next.total += next.strength[i]
	}

	return next
}
