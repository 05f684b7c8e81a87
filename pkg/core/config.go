package core

// Mode selects which shadow indexes the store maintains.
type Mode int

const (
	// ModeHybrid maintains both the vector and the lexical shadow index and
	// supports fused search. This is the default.
	ModeHybrid Mode = iota
	// ModeVector maintains only the vector shadow index.
	ModeVector
	// ModeLexical maintains only the lexical shadow index; no embedder is
	// required.
	ModeLexical
)

// String returns the mode name as persisted in the schema registry.
func (m Mode) String() string {
	switch m {
	case ModeVector:
		return "vector"
	case ModeLexical:
		return "lexical"
	default:
		return "hybrid"
	}
}

func (m Mode) hasVector() bool  { return m == ModeHybrid || m == ModeVector }
func (m Mode) hasLexical() bool { return m == ModeHybrid || m == ModeLexical }

// Config holds store configuration
type Config struct {
	// Path is the SQLite database file path (":memory:" works for tests).
	Path string

	// Table is the logical table name; shadow indexes derive their names
	// from it (vec_<table>, bm25_<table>). Must be a plain identifier.
	Table string

	// VectorDim is the embedding dimensionality. Required (positive) for
	// vector and hybrid modes.
	VectorDim int

	// Mode selects the maintained shadow indexes.
	Mode Mode

	// BatchSize bounds how many texts go to the embedding collaborator in
	// one request.
	BatchSize int

	// OverFetch multiplies the requested limit when pulling the coarse
	// candidate set, absorbing post-filter and dedup loss.
	OverFetch int

	// RRFSmoothing is the rank-offset constant of reciprocal rank fusion.
	RRFSmoothing int

	// Embedder is the store's embedding collaborator. Optional for
	// ModeLexical.
	Embedder Embedder

	// LLM optionally rewrites hybrid-search queries into keyword form.
	LLM LLM

	// Logger receives operational logging. Defaults to a no-op logger.
	Logger Logger

	// Metrics optionally records per-operation counters and latencies.
	Metrics *Metrics
}

// DefaultConfig returns the default configuration for the given database path
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		Table:        "documents",
		Mode:         ModeHybrid,
		BatchSize:    100,
		OverFetch:    2,
		RRFSmoothing: 60,
	}
}

func (c *Config) applyDefaults() {
	if c.Table == "" {
		c.Table = "documents"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.OverFetch <= 0 {
		c.OverFetch = 2
	}
	if c.RRFSmoothing <= 0 {
		c.RRFSmoothing = 60
	}
	if c.Logger == nil {
		c.Logger = NopLogger()
	}
}
