package dto

import "lattice.dev/lattice/graph"

type RelationshipResponse struct {
	Ref   string `json:"ref"`
	Start string `json:"start"`
	End   string `json:"end"`
	Type  string `json:"type"`
}

func ToRelationshipResponse(info graph.EdgeInfo) RelationshipResponse {
	return RelationshipResponse{
		Ref:   string(info.Ref),
		Start: string(info.Start),
		End:   string(info.End),
		Type:  info.Type,
	}
}

func ToRelationshipResponses(infos []graph.EdgeInfo) []RelationshipResponse {
	out := make([]RelationshipResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, ToRelationshipResponse(info))
	}
	return out
}

// AppendRelatedRequest creates one edge per listed ref, all from the
// bound node, in order.
type AppendRelatedRequest struct {
	Others []string `json:"others" binding:"required,min=1"`
}

type SetPropertyRequest struct {
	Value any `json:"value" binding:"required"`
}

type PropertyResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
