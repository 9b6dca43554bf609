package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"studycore/internal/model"
)

// ResolveEntity implements the deterministic entity resolution algorithm:
// build S = {name} ∪ aliases, find every entity whose name ∈ S or whose
// aliases intersect S, and pick the one maximizing |S ∩ candidate set|,
// ties broken by oldest created_at. Returns nil, nil when no candidate
// matches. When tx is non-nil the lookup runs inside that transaction so
// callers can resolve-then-link atomically.
func (s *Store) ResolveEntity(ctx context.Context, tx pgx.Tx, name string, aliases []string) (*model.Entity, error) {
	all := unionSet(name, aliases)

	query := func(q func(context.Context, string, ...any) (pgx.Rows, error)) (pgx.Rows, error) {
		return q(ctx, `
SELECT entity_id, name, aliases, entity_type, global_summary, created_at
FROM entities
WHERE name = ANY($1::text[]) OR aliases && $1::text[]
`, all)
	}
	var rows pgx.Rows
	var err error
	if tx != nil {
		rows, err = query(tx.Query)
	} else {
		rows, err = query(s.pool.Query)
	}
	if err != nil {
		return nil, fmt.Errorf("store: resolve entity candidates: %w", err)
	}
	defer rows.Close()

	allSet := toSet(all)
	var best *model.Entity
	bestScore := -1
	for rows.Next() {
		var e model.Entity
		var entityType string
		if err := rows.Scan(&e.ID, &e.Name, &e.Aliases, &entityType, &e.GlobalSummary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan entity candidate: %w", err)
		}
		e.EntityType = model.EntityType(entityType)
		candSet := toSet(unionSet(e.Name, e.Aliases))
		score := intersectionSize(allSet, candSet)
		if score > bestScore || (score == bestScore && best != nil && e.CreatedAt.Before(best.CreatedAt)) {
			bestScore = score
			cp := e
			best = &cp
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return best, nil
}

// LinkEntityToChunk resolves or creates the entity for extracted, merges its
// alias set (never shrinking it), and upserts the (entity, chunk) link —
// leaving an existing link's relevance/context untouched on conflict.
func (s *Store) LinkEntityToChunk(ctx context.Context, chunkID string, extracted model.ExtractedEntity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin link: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entity, err := s.ResolveEntity(ctx, tx, extracted.Name, extracted.Aliases)
	if err != nil {
		return err
	}

	var entityID string
	if entity != nil {
		entityID = entity.ID
		merged := unionSet(entity.Name, append(append([]string{}, entity.Aliases...), extracted.Aliases...))
		// merged always includes entity.Name; aliases are everything else.
		newAliases := make([]string, 0, len(merged))
		for _, a := range merged {
			if a != entity.Name {
				newAliases = append(newAliases, a)
			}
		}
		if len(newAliases) > len(entity.Aliases) {
			if _, err := tx.Exec(ctx, `UPDATE entities SET aliases = $1 WHERE entity_id = $2`, newAliases, entityID); err != nil {
				return fmt.Errorf("store: update entity aliases: %w", err)
			}
		}
	} else {
		entityID = uuid.NewString()
		entityType := extracted.Type
		if entityType == "" {
			entityType = model.EntityConcept
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO entities (entity_id, name, aliases, entity_type)
VALUES ($1,$2,$3,$4)
`, entityID, extracted.Name, extracted.Aliases, string(entityType)); err != nil {
			return fmt.Errorf("store: insert entity: %w", err)
		}
	}

	relevance := extracted.Relevance
	if relevance == 0 {
		relevance = 1.0
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO entity_links (link_id, entity_id, chunk_id, relevance_score)
VALUES ($1,$2,$3,$4)
ON CONFLICT (entity_id, chunk_id) DO NOTHING
`, uuid.NewString(), entityID, chunkID, relevance); err != nil {
		return fmt.Errorf("store: insert entity link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit link: %w", err)
	}
	return nil
}

func unionSet(name string, aliases []string) []string {
	seen := map[string]struct{}{name: {}}
	out := []string{name}
	for _, a := range aliases {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func toSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

func intersectionSize(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
