package testutil

import (
	"math/rand/v2"

	"github.com/roach88/simkernel/internal/graph"
)

// Numbering hands out atom values 1, 2, 3, ... so every atom of a
// generated graph is distinct.
type Numbering struct {
	last int
}

func (n *Numbering) next() int {
	n.last++
	return n.last
}

// RandomGraph builds an arbitrary graph of distinct integer atoms nested at
// most depth levels deep.
func RandomGraph(r *rand.Rand, depth int, n *Numbering) graph.Graph[int] {
	if depth == 0 || r.IntN(4) == 0 {
		return graph.Atom(n.next())
	}
	a := RandomGraph(r, depth-1, n)
	b := RandomGraph(r, depth-1, n)
	if r.IntN(2) == 0 {
		return graph.Sequentially(a, b)
	}
	return graph.Concurrently(a, b)
}

// RandomFanoutGraph builds a graph in which no sequential prefix contains a
// concurrent node, so every atom has a single causal past.
func RandomFanoutGraph(r *rand.Rand, depth int, n *Numbering) graph.Graph[int] {
	if depth == 0 || r.IntN(5) == 0 {
		return graph.Atom(n.next())
	}
	switch r.IntN(3) {
	case 0:
		return graph.Concurrently(RandomFanoutGraph(r, depth-1, n), RandomFanoutGraph(r, depth-1, n))
	case 1:
		chain := graph.Empty[int]()
		for i := 0; i <= r.IntN(3); i++ {
			chain = graph.Sequentially(chain, graph.Atom(n.next()))
		}
		return graph.Sequentially(chain, RandomFanoutGraph(r, depth-1, n))
	default:
		return graph.Sequentially(graph.Atom(n.next()), graph.Concurrently(
			RandomFanoutGraph(r, depth-1, n),
			RandomFanoutGraph(r, depth-1, n),
		))
	}
}
