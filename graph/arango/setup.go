package arango

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
)

// EnsureSchema creates the database, the node collection, one edge
// collection per declared relationship type, and the named graph tying
// them together. It is idempotent.
func (e *Engine) EnsureSchema(ctx context.Context) error {
	if err := e.ensureDatabase(ctx); err != nil {
		return err
	}
	if err := e.ensureCollections(ctx); err != nil {
		return err
	}
	return e.ensureGraph(ctx)
}

func (e *Engine) ensureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := e.client.DatabaseExists(ctx, e.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}

	if !exists {
		_, err = e.client.CreateDatabase(ctx, e.cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created",
			"database", e.cfg.Database,
			"duration_ms", time.Since(start).Milliseconds())
	}

	db, err := e.client.GetDatabase(ctx, e.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("get database: %w", err)
	}
	e.db = db

	return nil
}

func (e *Engine) ensureCollections(ctx context.Context) error {
	if e.db == nil {
		return fmt.Errorf("database not initialized, call EnsureSchema first")
	}

	if err := e.ensureCollection(ctx, nodeCollection, false); err != nil {
		return err
	}
	for _, name := range e.colNames {
		if err := e.ensureCollection(ctx, name, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ensureCollection(ctx context.Context, name string, isEdge bool) error {
	exists, err := e.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s exists: %w", name, err)
	}

	if !exists {
		props := &arangodb.CreateCollectionPropertiesV2{}
		if isEdge {
			colType := arangodb.CollectionTypeEdge
			props.Type = &colType
		} else {
			colType := arangodb.CollectionTypeDocument
			props.Type = &colType
		}

		_, err = e.db.CreateCollectionV2(ctx, name, props)
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		slog.InfoContext(ctx, "arangodb collection created",
			"collection", name,
			"is_edge", isEdge)
	}

	return nil
}

func (e *Engine) ensureGraph(ctx context.Context) error {
	if e.db == nil {
		return fmt.Errorf("database not initialized, call EnsureSchema first")
	}

	exists, err := e.db.GraphExists(ctx, graphName)
	if err != nil {
		return fmt.Errorf("check graph exists: %w", err)
	}
	if exists {
		return nil
	}

	defs := make([]arangodb.EdgeDefinition, 0, len(e.colNames))
	for _, name := range e.colNames {
		defs = append(defs, arangodb.EdgeDefinition{
			Collection: name,
			From:       []string{nodeCollection},
			To:         []string{nodeCollection},
		})
	}

	graphDef := &arangodb.GraphDefinition{
		Name:            graphName,
		EdgeDefinitions: defs,
	}

	if _, err := e.db.CreateGraph(ctx, graphName, graphDef, nil); err != nil {
		return fmt.Errorf("create graph: %w", err)
	}

	slog.InfoContext(ctx, "arangodb graph created",
		"graph", graphName,
		"edge_collections", len(defs))
	return nil
}
