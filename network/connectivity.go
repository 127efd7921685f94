package network

import "github.com/cockroachdb/errors"

// Connectivity owns the directed graph, the cross-reference maps from
// external node ID to internal indices, and the sparse edge-flow buffer that
// is zeroed and refilled on every right-hand-side evaluation.
type Connectivity struct {
	nodes []Node
	edges []Edge

	xr  map[int]int // external node ID -> nodes index
	bxr map[int]int // external basin ID -> dense basin-state index
	bid []int       // dense basin-state index -> external ID

	exr     map[Edge]int // (from,to) -> edges index
	in, out [][]int      // nodes index -> incident edge indices

	flows []float64 // one scalar per edge
}

// New builds connectivity from the declared nodes and the edge list. Basin
// nodes receive dense state indices in node-list order. An edge referencing
// an undeclared node is a construction error.
func New(nodes []Node, edges []Edge) (*Connectivity, error) {
	c := &Connectivity{
		nodes: nodes,
		edges: edges,
		xr:    make(map[int]int, len(nodes)),
		bxr:   make(map[int]int),
		exr:   make(map[Edge]int, len(edges)),
		in:    make([][]int, len(nodes)),
		out:   make([][]int, len(nodes)),
		flows: make([]float64, len(edges)),
	}
	for i, n := range nodes {
		if _, ok := c.xr[n.ID]; ok {
			return nil, errors.Newf("network: duplicate node ID %d", n.ID)
		}
		c.xr[n.ID] = i
		if n.Type == Basin {
			c.bxr[n.ID] = len(c.bid)
			c.bid = append(c.bid, n.ID)
		}
	}
	for i, e := range edges {
		fi, ok := c.xr[e.From]
		if !ok {
			return nil, errors.Newf("network: edge (%d,%d) references undeclared node %d", e.From, e.To, e.From)
		}
		ti, ok := c.xr[e.To]
		if !ok {
			return nil, errors.Newf("network: edge (%d,%d) references undeclared node %d", e.From, e.To, e.To)
		}
		if _, ok := c.exr[e]; ok {
			return nil, errors.Newf("network: duplicate edge (%d,%d)", e.From, e.To)
		}
		c.exr[e] = i
		c.out[fi] = append(c.out[fi], i)
		c.in[ti] = append(c.in[ti], i)
	}
	return c, nil
}

// NBasin returns the number of state-bearing nodes.
func (c *Connectivity) NBasin() int { return len(c.bid) }

// NEdge returns the number of edges.
func (c *Connectivity) NEdge() int { return len(c.edges) }

// Nodes returns the node list in declaration order.
func (c *Connectivity) Nodes() []Node { return c.nodes }

// NodeByID returns the node with the given external ID.
func (c *Connectivity) NodeByID(id int) (Node, bool) {
	i, ok := c.xr[id]
	if !ok {
		return Node{}, false
	}
	return c.nodes[i], true
}

// BasinIndex translates an external basin ID to its dense state index.
func (c *Connectivity) BasinIndex(id int) (int, bool) {
	i, ok := c.bxr[id]
	return i, ok
}

// BasinID translates a dense state index back to the external ID.
func (c *Connectivity) BasinID(i int) int { return c.bid[i] }

// InEdges returns the indices of edges ending at the given node ID.
func (c *Connectivity) InEdges(id int) []int { return c.in[c.xr[id]] }

// OutEdges returns the indices of edges starting at the given node ID.
func (c *Connectivity) OutEdges(id int) []int { return c.out[c.xr[id]] }

// EdgeAt returns the edge at index i.
func (c *Connectivity) EdgeAt(i int) Edge { return c.edges[i] }

// FlowAt returns the buffered flow on edge i.
func (c *Connectivity) FlowAt(i int) float64 { return c.flows[i] }

func (c *Connectivity) edgeIndex(e Edge) int {
	i, ok := c.exr[e]
	if !ok {
		panic(errors.Newf("network: no edge (%d,%d)", e.From, e.To))
	}
	return i
}

// Flow returns the buffered flow on edge (from,to). The edge must exist.
func (c *Connectivity) Flow(from, to int) float64 {
	return c.flows[c.edgeIndex(Edge{from, to})]
}

// SetFlow writes q onto edge (from,to). The edge must exist.
func (c *Connectivity) SetFlow(from, to int, q float64) {
	c.flows[c.edgeIndex(Edge{from, to})] = q
}

// SetFlowAt writes q onto edge i.
func (c *Connectivity) SetFlowAt(i int, q float64) { c.flows[i] = q }

// ResetFlows zeroes the edge-flow buffer. Called once per RHS evaluation.
func (c *Connectivity) ResetFlows() {
	for i := range c.flows {
		c.flows[i] = 0
	}
}
