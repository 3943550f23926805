package dto

import "lattice.dev/lattice/graph"

type CreateNodeRequest struct {
	Label string         `json:"label" binding:"required"`
	Props map[string]any `json:"props"`
}

type NodeResponse struct {
	Ref   string         `json:"ref"`
	Label string         `json:"label"`
	Props map[string]any `json:"props,omitempty"`
}

func ToNodeResponse(n *graph.Node) NodeResponse {
	return NodeResponse{
		Ref:   string(n.Ref),
		Label: n.Label,
		Props: n.Props,
	}
}

func ToNodeResponses(nodes []*graph.Node) []NodeResponse {
	out := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ToNodeResponse(n))
	}
	return out
}
