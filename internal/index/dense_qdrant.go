package index

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the caller-supplied chunk id on the point payload.
// Qdrant point ids must be UUIDs or unsigned integers, so non-UUID chunk ids
// are rehashed deterministically and the original value is kept alongside.
const payloadIDField = "_original_id"

type qdrantDense struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// NewQdrantDense opens (and lazily creates) the single logical collection
// backing the dense half of the index. The Go client speaks Qdrant's gRPC
// API, which runs on port 6334 by default; an API key may be passed as a
// DSN query parameter ("http://host:6334?api_key=...").
func NewQdrantDense(ctx context.Context, dsn, collection string, dimensions int, metric string) (DenseIndex, error) {
	if collection == "" {
		return nil, fmt.Errorf("index: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("index: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := parsed.Port()
	if portStr == "" {
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("index: invalid qdrant port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("index: create qdrant client: %w", err)
	}
	d := &qdrantDense{
		client:     client,
		collection: collection,
		dimension:  dimensions,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	if err := d.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("index: ensure collection: %w", err)
	}
	return d, nil
}

// ensureCollection creates the collection when it does not exist yet (it is
// called once, from NewQdrantDense, before any write), fixing its
// dimension and distance metric for the lifetime of the index.
func (d *qdrantDense) ensureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if d.dimension <= 0 {
		return fmt.Errorf("dimension must be > 0 to create a collection")
	}
	var distance qdrant.Distance
	switch d.metric {
	case "l2", "euclid", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	return d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(d.dimension),
			Distance: distance,
		}),
	})
}

func pointIDFor(id string) (string, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

func (d *qdrantDense) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	pointUUID, rehashed := pointIDFor(id)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if rehashed {
		payload[payloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	points := []*qdrant.PointStruct{{
		Id:      qdrant.NewIDUUID(pointUUID),
		Vectors: qdrant.NewVectorsDense(vec),
		Payload: qdrant.NewValueMap(payload),
	}}
	wait := true
	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Points:         points,
		Wait:           &wait,
	})
	return err
}

func (d *qdrantDense) Delete(ctx context.Context, id string) error {
	pointUUID, _ := pointIDFor(id)
	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointUUID)),
	})
	return err
}

func (d *qdrantDense) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]DenseResult, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for key, val := range filter {
			must = append(must, qdrant.NewMatch(key, val))
		}
		qf = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	hits, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	results := make([]DenseResult, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		metadata := make(map[string]string)
		var original string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == payloadIDField {
					original = v.GetStringValue()
					continue
				}
				metadata[k] = v.GetStringValue()
			}
		}
		if original != "" {
			id = original
		}
		results = append(results, DenseResult{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return results, nil
}

func (d *qdrantDense) Dimension() int { return d.dimension }

func (d *qdrantDense) Close() error { return d.client.Close() }
