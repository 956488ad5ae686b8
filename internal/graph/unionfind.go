package graph

// UnionFind implements union-find with path compression and union by rank
type UnionFind[K comparable] struct {
	parent map[K]K
	rank   map[K]int
	size   map[K]int
}

// NewUnionFind creates a UnionFind where each element is its own component
func NewUnionFind[K comparable](ids []K) *UnionFind[K] {
	uf := &UnionFind[K]{
		parent: make(map[K]K, len(ids)),
		rank:   make(map[K]int, len(ids)),
		size:   make(map[K]int, len(ids)),
	}
	for _, id := range ids {
		uf.parent[id] = id
		uf.size[id] = 1
	}
	return uf
}

// Find returns the root of the component containing id, with path compression
func (uf *UnionFind[K]) Find(id K) K {
	parent, ok := uf.parent[id]
	if !ok {
		return id
	}
	if parent != id {
		root := uf.Find(parent)
		uf.parent[id] = root
		return root
	}
	return id
}

// Union merges the components containing a and b. Returns true if they were separate.
func (uf *UnionFind[K]) Union(a, b K) bool {
	rootA := uf.Find(a)
	rootB := uf.Find(b)
	if rootA == rootB {
		return false
	}

	switch rankA, rankB := uf.rank[rootA], uf.rank[rootB]; {
	case rankA < rankB:
		uf.parent[rootA] = rootB
		uf.size[rootB] += uf.size[rootA]
	case rankA > rankB:
		uf.parent[rootB] = rootA
		uf.size[rootA] += uf.size[rootB]
	default:
		uf.parent[rootB] = rootA
		uf.size[rootA] += uf.size[rootB]
		uf.rank[rootA]++
	}
	return true
}

// Size returns the number of members in id's component
func (uf *UnionFind[K]) Size(id K) int {
	return uf.size[uf.Find(id)]
}

// Components returns all connected components as slices of IDs
func (uf *UnionFind[K]) Components() [][]K {
	groups := make(map[K][]K)
	for id := range uf.parent {
		root := uf.Find(id)
		groups[root] = append(groups[root], id)
	}
	result := make([][]K, 0, len(groups))
	for _, members := range groups {
		result = append(result, members)
	}
	return result
}
