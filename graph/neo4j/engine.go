// Package neo4j implements graph.Engine on Neo4j. Nodes carry the fixed
// :Node label with the logical label as a property, edges the fixed :REL
// type with the logical type as a property, so no dynamic labels are
// needed. Refs are element ids. Property values are stored flat on the
// entity under a reserved prefix; values Neo4j cannot store (nested
// maps) surface as engine rejections.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"lattice.dev/lattice/graph"
)

// propPrefix keeps user property keys clear of the label and type
// bookkeeping properties.
const propPrefix = "p_"

type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("neo4j URI is required")
	}
	if c.Username == "" {
		return fmt.Errorf("neo4j username is required")
	}
	return nil
}

// Engine satisfies graph.Engine, graph.NodeSource, and graph.NodeAdmin
// over one Neo4j database.
type Engine struct {
	driver   neo4j.DriverWithContext
	database string
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("neo4j config: %w", err)
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	return &Engine{driver: driver, database: database}, nil
}

// Close closes the underlying driver.
func (e *Engine) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

func engineErr(err error) error {
	return errors.Join(graph.ErrEngine, err)
}

func prefixProps(props map[string]any) map[string]any {
	prefixed := make(map[string]any, len(props))
	for k, v := range props {
		prefixed[propPrefix+k] = v
	}
	return prefixed
}

func stripProps(props map[string]any) map[string]any {
	stripped := make(map[string]any)
	for k, v := range props {
		if rest, ok := strings.CutPrefix(k, propPrefix); ok {
			stripped[rest] = v
		}
	}
	return stripped
}

// CreateNode creates a :Node vertex and returns its element id.
func (e *Engine) CreateNode(ctx context.Context, label string, props map[string]any) (graph.NodeRef, error) {
	result, err := e.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CREATE (n:Node)
			SET n.label = $label, n += $props
			RETURN elementId(n) AS id
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"label": label,
			"props": prefixProps(props),
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("no id returned")
		}
		id, _ := result.Record().Get("id")
		return id.(string), nil
	})
	if err != nil {
		return "", fmt.Errorf("creating node: %w", engineErr(err))
	}
	return graph.NodeRef(result.(string)), nil
}

// ResolveNode loads a node by element id.
func (e *Engine) ResolveNode(ctx context.Context, ref graph.NodeRef) (*graph.Node, error) {
	result, err := e.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n:Node)
			WHERE elementId(n) = $ref
			RETURN n
		`
		result, err := tx.Run(ctx, query, map[string]any{"ref": string(ref)})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		record := result.Record()
		value, _ := record.Get("n")
		data := value.(neo4j.Node)

		label, _ := data.Props["label"].(string)
		return &graph.Node{
			Ref:   ref,
			Label: label,
			Props: stripProps(data.Props),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolving node: %w", engineErr(err))
	}
	if result == nil {
		return nil, fmt.Errorf("%w: node %s", graph.ErrNotFound, ref)
	}
	return result.(*graph.Node), nil
}

// CreateEdge creates a :REL relationship between two nodes.
func (e *Engine) CreateEdge(ctx context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error) {
	result, err := e.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (s:Node), (t:Node)
			WHERE elementId(s) = $from AND elementId(t) = $to
			CREATE (s)-[r:REL {type: $type}]->(t)
			RETURN elementId(r) AS id
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"from": string(from),
			"to":   string(to),
			"type": typeName,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		id, _ := result.Record().Get("id")
		return id.(string), nil
	})
	if err != nil {
		return graph.EdgeInfo{}, fmt.Errorf("creating %s edge: %w", typeName, engineErr(err))
	}
	if result == nil {
		return graph.EdgeInfo{}, fmt.Errorf("creating %s edge: %w: node %s or %s", typeName, graph.ErrNotFound, from, to)
	}
	return graph.EdgeInfo{
		Ref:   graph.EdgeRef(result.(string)),
		Start: from,
		End:   to,
		Type:  typeName,
	}, nil
}

// DeleteEdge removes a relationship by element id.
func (e *Engine) DeleteEdge(ctx context.Context, ref graph.EdgeRef) error {
	result, err := e.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH ()-[r:REL]->()
			WHERE elementId(r) = $ref
			WITH r, elementId(r) AS id
			DELETE r
			RETURN id
		`
		result, err := tx.Run(ctx, query, map[string]any{"ref": string(ref)})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("deleting edge: %w", engineErr(err))
	}
	if result == nil {
		return fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	return nil
}

// DescribeEdge loads a relationship's endpoints and logical type.
func (e *Engine) DescribeEdge(ctx context.Context, ref graph.EdgeRef) (graph.EdgeInfo, error) {
	result, err := e.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (s:Node)-[r:REL]->(t:Node)
			WHERE elementId(r) = $ref
			RETURN elementId(s) AS start, elementId(t) AS end, r.type AS type
		`
		result, err := tx.Run(ctx, query, map[string]any{"ref": string(ref)})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		record := result.Record()
		start, _ := record.Get("start")
		end, _ := record.Get("end")
		typeName, _ := record.Get("type")
		return graph.EdgeInfo{
			Ref:   ref,
			Start: graph.NodeRef(start.(string)),
			End:   graph.NodeRef(end.(string)),
			Type:  typeName.(string),
		}, nil
	})
	if err != nil {
		return graph.EdgeInfo{}, fmt.Errorf("describing edge: %w", engineErr(err))
	}
	if result == nil {
		return graph.EdgeInfo{}, fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	return result.(graph.EdgeInfo), nil
}

// EdgeProperty reads one property off a relationship. A null value means
// the key is absent, since Neo4j never stores nulls.
func (e *Engine) EdgeProperty(ctx context.Context, ref graph.EdgeRef, key string) (any, bool, error) {
	result, err := e.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH ()-[r:REL]->()
			WHERE elementId(r) = $ref
			RETURN r[$key] AS value
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"ref": string(ref),
			"key": propPrefix + key,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
		}
		value, _ := result.Record().Get("value")
		return &value, nil
	})
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("reading edge property: %w", engineErr(err))
	}
	value := *result.(*any)
	return value, value != nil, nil
}

// SetEdgeProperty writes one property onto a relationship.
func (e *Engine) SetEdgeProperty(ctx context.Context, ref graph.EdgeRef, key string, value any) error {
	result, err := e.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH ()-[r:REL]->()
			WHERE elementId(r) = $ref
			SET r += $props
			RETURN elementId(r) AS id
		`
		result, err := tx.Run(ctx, query, map[string]any{
			"ref":   string(ref),
			"props": map[string]any{propPrefix + key: value},
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("writing edge property: %w", engineErr(err))
	}
	if result == nil {
		return fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	return nil
}

// IncidentEdges enumerates a node's relationships, optionally narrowed
// by direction and logical type.
func (e *Engine) IncidentEdges(ctx context.Context, node graph.NodeRef, dir graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error] {
	return func(yield func(graph.EdgeInfo, error) bool) {
		if _, err := e.ResolveNode(ctx, node); err != nil {
			yield(graph.EdgeInfo{}, err)
			return
		}

		var pattern string
		switch dir {
		case graph.DirectionOutbound:
			pattern = "(n:Node)-[r:REL]->(m:Node)"
		case graph.DirectionInbound:
			pattern = "(n:Node)<-[r:REL]-(m:Node)"
		default:
			pattern = "(n:Node)-[r:REL]-(m:Node)"
		}

		query := fmt.Sprintf(`
			MATCH %s
			WHERE elementId(n) = $ref AND ($type = "" OR r.type = $type)
			RETURN elementId(r) AS id,
			       elementId(startNode(r)) AS start,
			       elementId(endNode(r)) AS end,
			       r.type AS type
		`, pattern)

		result, err := e.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, map[string]any{
				"ref":  string(node),
				"type": typeName,
			})
			if err != nil {
				return nil, err
			}

			var infos []graph.EdgeInfo
			seen := make(map[string]bool)
			for result.Next(ctx) {
				record := result.Record()
				id, _ := record.Get("id")
				start, _ := record.Get("start")
				end, _ := record.Get("end")
				edgeType, _ := record.Get("type")
				if seen[id.(string)] {
					continue
				}
				seen[id.(string)] = true
				infos = append(infos, graph.EdgeInfo{
					Ref:   graph.EdgeRef(id.(string)),
					Start: graph.NodeRef(start.(string)),
					End:   graph.NodeRef(end.(string)),
					Type:  edgeType.(string),
				})
			}
			if err := result.Err(); err != nil {
				return nil, err
			}
			return infos, nil
		})
		if err != nil {
			yield(graph.EdgeInfo{}, fmt.Errorf("querying incident edges: %w", engineErr(err)))
			return
		}

		for _, info := range result.([]graph.EdgeInfo) {
			if !yield(info, nil) {
				return
			}
		}
	}
}

// Expand walks variable-length :REL paths of one logical type and
// returns each reachable node once, ordered by its shortest path length.
func (e *Engine) Expand(ctx context.Context, start graph.NodeRef, typeName string, maxDepth int) iter.Seq2[graph.NodeRef, error] {
	return func(yield func(graph.NodeRef, error) bool) {
		if _, err := e.ResolveNode(ctx, start); err != nil {
			yield("", err)
			return
		}

		query := fmt.Sprintf(`
			MATCH p = (s:Node)-[:REL*1..%d {type: $type}]->(v:Node)
			WHERE elementId(s) = $start AND v <> s
			WITH v, min(length(p)) AS depth
			RETURN elementId(v) AS id
			ORDER BY depth
		`, maxDepth)

		result, err := e.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, map[string]any{
				"start": string(start),
				"type":  typeName,
			})
			if err != nil {
				return nil, err
			}

			var refs []graph.NodeRef
			for result.Next(ctx) {
				id, _ := result.Record().Get("id")
				refs = append(refs, graph.NodeRef(id.(string)))
			}
			if err := result.Err(); err != nil {
				return nil, err
			}
			return refs, nil
		})
		if err != nil {
			yield("", fmt.Errorf("expanding from %s: %w", start, engineErr(err)))
			return
		}

		for _, ref := range result.([]graph.NodeRef) {
			if !yield(ref, nil) {
				return
			}
		}
	}
}
