package config

// BenchmarkConfig is one named point in the chunk_size/overlap/top_k/top_n/
// prompt_style knob space used for A/B retrieval runs. A zero ChunkSize (the
// "auto" configs) means the ingestion pipeline's configured default chunk
// budget applies rather than an explicit override.
type BenchmarkConfig struct {
	ChunkSize   int
	Overlap     int
	TopK        int
	TopN        int
	PromptStyle string
}

// DefaultBenchmarkConfigID is used whenever a request's config_id is unknown
// or omitted.
const DefaultBenchmarkConfigID = "01"

// Benchmarks is the canonical config_id -> knob-set table. Preserved
// verbatim from the declared benchmark matrix; do not renumber or rebalance
// entries when adding new ones.
var Benchmarks = map[string]BenchmarkConfig{
	"01": {ChunkSize: 0, Overlap: 0, TopK: 30, TopN: 15, PromptStyle: "light"},
	"02": {ChunkSize: 0, Overlap: 0, TopK: 30, TopN: 15, PromptStyle: "verbose"},
	"03": {ChunkSize: 0, Overlap: 0, TopK: 50, TopN: 15, PromptStyle: "light"},
	"04": {ChunkSize: 1000, Overlap: 100, TopK: 50, TopN: 20, PromptStyle: "light"},
	"05": {ChunkSize: 1500, Overlap: 150, TopK: 30, TopN: 15, PromptStyle: "verbose"},
	"06": {ChunkSize: 2500, Overlap: 250, TopK: 80, TopN: 13, PromptStyle: "verbose"},
	"07": {ChunkSize: 0, Overlap: 0, TopK: 50, TopN: 15, PromptStyle: "reasoning"},
	"08": {ChunkSize: 0, Overlap: 0, TopK: 80, TopN: 13, PromptStyle: "verbose"},
	"09": {ChunkSize: 1000, Overlap: 100, TopK: 40, TopN: 15, PromptStyle: "light"},
	"10": {ChunkSize: 1500, Overlap: 150, TopK: 50, TopN: 15, PromptStyle: "reasoning"},
	"11": {ChunkSize: 1500, Overlap: 150, TopK: 60, TopN: 15, PromptStyle: "verbose"},
}

// ResolveBenchmark looks up id, falling back to DefaultBenchmarkConfigID
// when id is unknown or empty.
func ResolveBenchmark(id string) (string, BenchmarkConfig) {
	if c, ok := Benchmarks[id]; ok {
		return id, c
	}
	return DefaultBenchmarkConfigID, Benchmarks[DefaultBenchmarkConfigID]
}
