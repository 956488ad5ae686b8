package graph

import "sort"

// ArticulationEntity is an entity whose removal disconnects the graph
type ArticulationEntity struct {
	Span      Span   `json:"span"`
	Text      string `json:"text"`
	Label     string `json:"label"`
	Neighbors int    `json:"neighbors"`
}

// BridgeRelation is a relation whose removal disconnects the graph
type BridgeRelation struct {
	Head     Span   `json:"head"`
	Tail     Span   `json:"tail"`
	HeadText string `json:"head_text"`
	TailText string `json:"tail_text"`
	Relation string `json:"relation"`
}

// FragileLabelLink is a pair of entity labels joined by very few relations
type FragileLabelLink struct {
	LabelA     string `json:"label_a"`
	LabelB     string `json:"label_b"`
	CrossEdges int    `json:"cross_edges"`
}

// BridgeReport contains bridge analysis results
type BridgeReport struct {
	ArticulationPoints []ArticulationEntity `json:"articulation_points"`
	BridgeEdges        []BridgeRelation     `json:"bridge_edges"`
	FragileLinks       []FragileLabelLink   `json:"fragile_links"`
	APCount            int                  `json:"ap_count"`
	BridgeCount        int                  `json:"bridge_count"`
}

// ComputeBridges finds articulation entities and bridge relations on the
// undirected view of g, plus label pairs linked by at most two relations
func ComputeBridges(g *Graph) *BridgeReport {
	if g == nil || g.NumNodes() == 0 {
		return &BridgeReport{}
	}

	spans := g.Spans()
	idx := make(map[Span]int, len(spans))
	for i, s := range spans {
		idx[s] = i
	}
	n := len(spans)

	// Deduplicated undirected adjacency; reverse pairs of undirected
	// relations collapse to one edge
	adj := make([][]int, n)
	type pair struct{ u, v int }
	seen := make(map[pair]bool)
	for _, e := range g.Edges() {
		u, v := idx[e.Head], idx[e.Tail]
		if u == v {
			continue
		}
		key := pair{u, v}
		if u > v {
			key = pair{v, u}
		}
		if !seen[key] {
			seen[key] = true
			adj[u] = append(adj[u], v)
			adj[v] = append(adj[v], u)
		}
	}

	disc := make([]int, n)
	low := make([]int, n)
	visited := make([]bool, n)
	isAP := make([]bool, n)
	var bridgePairs [][2]int
	counter := 1

	const noParent = -1

	// Iterative Tarjan for each connected component
	type frame struct {
		node, parent, ni int
	}

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		visited[start] = true
		disc[start] = counter
		low[start] = counter
		counter++

		stack := []frame{{start, noParent, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := top.node

			if top.ni < len(adj[node]) {
				child := adj[node][top.ni]
				top.ni++

				if child == top.parent {
					continue
				}
				if visited[child] {
					low[node] = min(low[node], disc[child])
					continue
				}

				visited[child] = true
				disc[child] = counter
				low[child] = counter
				counter++
				if node == start {
					rootChildren++
				}
				stack = append(stack, frame{child, node, 0})
				continue
			}

			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			pn := stack[len(stack)-1].node
			low[pn] = min(low[pn], low[node])
			if low[node] > disc[pn] {
				bridgePairs = append(bridgePairs, [2]int{pn, node})
			}
			if pn != start && low[node] >= disc[pn] {
				isAP[pn] = true
			}
		}

		if rootChildren >= 2 {
			isAP[start] = true
		}
	}

	report := &BridgeReport{}
	for i, s := range spans {
		if !isAP[i] {
			continue
		}
		node := g.Nodes[s]
		report.ArticulationPoints = append(report.ArticulationPoints, ArticulationEntity{
			Span:      s,
			Text:      node.Text,
			Label:     node.Label,
			Neighbors: len(adj[i]),
		})
	}

	for _, p := range bridgePairs {
		head, tail := spans[p[0]], spans[p[1]]
		// report the stored direction
		e := g.Edge(head, tail)
		if e == nil {
			head, tail = tail, head
			e = g.Edge(head, tail)
		}
		report.BridgeEdges = append(report.BridgeEdges, BridgeRelation{
			Head:     head,
			Tail:     tail,
			HeadText: g.Nodes[head].Text,
			TailText: g.Nodes[tail].Text,
			Relation: e.Relation,
		})
	}
	sort.Slice(report.BridgeEdges, func(i, j int) bool {
		a, b := report.BridgeEdges[i], report.BridgeEdges[j]
		if a.Head != b.Head {
			return a.Head.Less(b.Head)
		}
		return a.Tail.Less(b.Tail)
	})

	report.FragileLinks = fragileLabelLinks(g)
	report.APCount = len(report.ArticulationPoints)
	report.BridgeCount = len(report.BridgeEdges)
	return report
}

// fragileLabelLinks counts relations between differently labeled entities
// and keeps the label pairs with at most two
func fragileLabelLinks(g *Graph) []FragileLabelLink {
	type labelPair struct{ a, b string }
	counts := make(map[labelPair]int)
	for _, e := range g.Edges() {
		la, lb := labelOrNone(g.Nodes[e.Head].Label), labelOrNone(g.Nodes[e.Tail].Label)
		if la == lb {
			continue
		}
		key := labelPair{la, lb}
		if la > lb {
			key = labelPair{lb, la}
		}
		counts[key]++
	}

	var out []FragileLabelLink
	for p, c := range counts {
		if c <= 2 {
			out = append(out, FragileLabelLink{LabelA: p.a, LabelB: p.b, CrossEdges: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CrossEdges != out[j].CrossEdges {
			return out[i].CrossEdges < out[j].CrossEdges
		}
		if out[i].LabelA != out[j].LabelA {
			return out[i].LabelA < out[j].LabelA
		}
		return out[i].LabelB < out[j].LabelB
	})
	return out
}

func labelOrNone(label string) string {
	if label == "" {
		return "unlabeled"
	}
	return label
}
