package index

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgLexical implements the lexical half of the hybrid index as a token
// overlap search: chunk text is folded and tokenized once at index time into
// a text[] column, and queries match disjunctively via the && (array
// overlap) operator, scored by overlap cardinality.
type pgLexical struct{ pool *pgxpool.Pool }

// NewPostgresLexical bootstraps the lexical_chunks table and its GIN index
// on first use.
func NewPostgresLexical(ctx context.Context, pool *pgxpool.Pool) (LexicalIndex, error) {
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lexical_chunks (
  id TEXT PRIMARY KEY,
  text TEXT NOT NULL,
  tokens TEXT[] NOT NULL,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
)`); err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS lexical_chunks_tokens_idx ON lexical_chunks USING GIN (tokens)`); err != nil {
		return nil, err
	}
	return &pgLexical{pool: pool}, nil
}

func (p *pgLexical) Index(ctx context.Context, id, text string, metadata map[string]string) error {
	tokens := tokenize(text)
	md, err := metadataJSON(metadata)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO lexical_chunks (id, text, tokens, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, tokens = EXCLUDED.tokens, metadata = EXCLUDED.metadata
`, id, text, tokens, md)
	return err
}

func (p *pgLexical) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM lexical_chunks WHERE id = $1`, id)
	return err
}

func (p *pgLexical) Search(ctx context.Context, query string, k int, filter map[string]string) ([]LexicalResult, error) {
	if k <= 0 {
		k = 10
	}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	md, err := metadataJSON(filter)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, `
SELECT id, text, metadata, cardinality(ARRAY(SELECT UNNEST(tokens) INTERSECT SELECT UNNEST($1::text[]))) AS overlap
FROM lexical_chunks
WHERE tokens && $1::text[]
  AND metadata @> $2::jsonb
ORDER BY overlap DESC
LIMIT $3
`, tokens, md, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]LexicalResult, 0, k)
	for rows.Next() {
		var r LexicalResult
		var text string
		var mdRaw []byte
		var overlap int
		if err := rows.Scan(&r.ID, &text, &mdRaw, &overlap); err != nil {
			return nil, err
		}
		r.Score = float64(overlap)
		r.Snippet = snippetOf(text, 160)
		r.Metadata = decodeMetadata(mdRaw)
		out = append(out, r)
	}
	return out, rows.Err()
}

func metadataJSON(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func decodeMetadata(raw []byte) map[string]string {
	out := map[string]string{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func snippetOf(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "…"
}
