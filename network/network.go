// Package network holds the directed graph of hydrological nodes, the
// external-ID cross-reference maps and the per-edge flow buffer shared by the
// node-type formulators.
package network

import "github.com/cockroachdb/errors"

// NodeType tags which formulator owns a node.
type NodeType int

const (
	Basin NodeType = iota
	LinearLevelConnection
	TabulatedRatingCurve
	FractionalFlow
	LevelControl
	LevelBoundary
	Terminal
)

var typeNames = map[NodeType]string{
	Basin:                 "Basin",
	LinearLevelConnection: "LinearLevelConnection",
	TabulatedRatingCurve:  "TabulatedRatingCurve",
	FractionalFlow:        "FractionalFlow",
	LevelControl:          "LevelControl",
	LevelBoundary:         "LevelBoundary",
	Terminal:              "Terminal",
}

func (nt NodeType) String() string { return typeNames[nt] }

// ParseNodeType maps the node-table type string to its tag.
func ParseNodeType(s string) (NodeType, error) {
	for nt, name := range typeNames {
		if name == s {
			return nt, nil
		}
	}
	return 0, errors.Newf("network: unknown node type %q", s)
}

// Node is an immutable network element identified by its external ID.
type Node struct {
	ID   int
	Type NodeType
}

// Edge is an ordered (from,to) pair of external node IDs. Its position in the
// edge list is also the position of its scalar flow in the flow buffer.
type Edge struct {
	From, To int
}
