package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	lexivec "github.com/lexivec/lexivec"
	"github.com/lexivec/lexivec/pkg/core"
	"github.com/lexivec/lexivec/pkg/embedding"
	"github.com/lexivec/lexivec/pkg/llm"
)

var (
	dbPath     string
	tableName  string
	dimensions int
	modeName   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "lexivec",
	Short: "CLI tool for hybrid document retrieval over SQLite",
	Long:  `A command-line interface for a SQLite document store with combined vector and BM25 lexical search.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new document database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Document database initialized at %s (table %s, mode %s, %d dimensions)\n",
			dbPath, tableName, modeName, dimensions)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <text>...",
	Short: "Add documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		metadataStr, _ := cmd.Flags().GetString("metadata")

		metadata := map[string]any{}
		if metadataStr != "" {
			if err := json.Unmarshal([]byte(metadataStr), &metadata); err != nil {
				return fmt.Errorf("invalid metadata JSON: %w", err)
			}
		}
		// Tag the batch so it can be filtered or removed as a unit later.
		metadata["ingest_batch"] = uuid.NewString()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		ids, err := db.AddTexts(ctx, args, metadata)
		if err != nil {
			return fmt.Errorf("failed to add documents: %w", err)
		}

		fmt.Printf("Added %d documents (batch %s):", len(ids), metadata["ingest_batch"])
		for _, id := range ids {
			fmt.Printf(" %d", id)
		}
		fmt.Println()
		return nil
	},
}

var addBatchCmd = &cobra.Command{
	Use:   "batch <json-file>",
	Short: "Add documents in batch from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		var docs []core.Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}

		batch := uuid.NewString()
		for i := range docs {
			if docs[i].Metadata == nil {
				docs[i].Metadata = map[string]any{}
			}
			docs[i].Metadata["ingest_batch"] = batch
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		ids, err := db.AddDocuments(ctx, docs, nil)
		if err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}

		fmt.Printf("Successfully added %d documents (batch %s)\n", len(ids), batch)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search by vector similarity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], func(ctx context.Context, db *lexivec.DB, query string, limit int, opt *core.Options) ([]core.SearchResult, error) {
			return db.SimilaritySearch(ctx, query, limit, opt)
		})
	},
}

var keywordCmd = &cobra.Command{
	Use:   "keyword <query>",
	Short: "Search by BM25 lexical relevance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], func(ctx context.Context, db *lexivec.DB, query string, limit int, opt *core.Options) ([]core.SearchResult, error) {
			return db.KeywordSearch(ctx, query, limit, opt)
		})
	},
}

var hybridCmd = &cobra.Command{
	Use:   "hybrid <query>",
	Short: "Search with fused vector and lexical ranking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args[0], func(ctx context.Context, db *lexivec.DB, query string, limit int, opt *core.Options) ([]core.SearchResult, error) {
			return db.HybridSearch(ctx, query, limit, opt)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]...",
	Short: "Delete documents by ID or metadata filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		filterStr, _ := cmd.Flags().GetString("filter")
		if len(args) == 0 && filterStr == "" {
			return fmt.Errorf("provide document IDs or --filter")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()

		if len(args) > 0 {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid document ID %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			if err := db.DeleteByIDs(ctx, ids); err != nil {
				return fmt.Errorf("failed to delete documents: %w", err)
			}
			fmt.Printf("Deleted %d documents\n", len(ids))
			return nil
		}

		filter, err := parseFilter(filterStr)
		if err != nil {
			return err
		}
		if err := db.DeleteByFilter(ctx, filter); err != nil {
			return fmt.Errorf("failed to delete documents: %w", err)
		}
		fmt.Println("Deleted documents matching filter")
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("Are you sure you want to delete all documents in '%s'? [y/N]: ", tableName)
			var response string
			fmt.Scanln(&response)
			if response != "y" && response != "Y" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		if err := db.DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}

		fmt.Println("Store cleared successfully")
		return nil
	},
}

func runSearch(cmd *cobra.Command, query string, search func(context.Context, *lexivec.DB, string, int, *core.Options) ([]core.SearchResult, error)) error {
	limit, _ := cmd.Flags().GetInt("top-k")
	filterStr, _ := cmd.Flags().GetString("filter")
	outputJSON, _ := cmd.Flags().GetBool("json")

	var opt *core.Options
	if filterStr != "" {
		filter, err := parseFilter(filterStr)
		if err != nil {
			return err
		}
		opt = &core.Options{Filter: filter}
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	results, err := search(ctx, db, query, limit, opt)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Found %d results:\n", len(results))
	for i, result := range results {
		fmt.Printf("%d. [%d] (score: %.4f) %s\n", i+1, result.ID, result.Score, snippet(result.PageContent))
		if verbose && len(result.Metadata) > 0 {
			meta, _ := json.Marshal(result.Metadata)
			fmt.Printf("   Metadata: %s\n", meta)
		}
	}
	return nil
}

// parseFilter accepts either a JSON object or key=value,key2=value2 pairs.
func parseFilter(str string) (core.Filter, error) {
	if strings.HasPrefix(strings.TrimSpace(str), "{") {
		var filter core.Filter
		if err := json.Unmarshal([]byte(str), &filter); err != nil {
			return nil, fmt.Errorf("invalid filter JSON: %w", err)
		}
		return filter, nil
	}

	filter := core.Filter{}
	for _, pair := range strings.Split(str, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid filter pair %q", pair)
		}
		filter[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return filter, nil
}

func snippet(text string) string {
	const max = 80
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

func openDB() (*lexivec.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path not specified")
	}

	mode, err := parseMode(modeName)
	if err != nil {
		return nil, err
	}

	opts := []lexivec.Option{}

	if verbose {
		zl, err := zap.NewDevelopment()
		if err == nil {
			opts = append(opts, lexivec.WithLogger(core.NewZapLogger(zl)))
		}
	}

	embedder, dim := buildEmbedder()
	if dimensions == 0 {
		dimensions = dim
	}
	opts = append(opts, lexivec.WithEmbedder(embedder))

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if chat, err := llm.NewOpenAIChat(apiKey, ""); err == nil {
			opts = append(opts, lexivec.WithLLM(chat))
		}
	}

	db, err := lexivec.Open(lexivec.Config{
		Path:       dbPath,
		Table:      tableName,
		Dimensions: dimensions,
		Mode:       mode,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return db, nil
}

// buildEmbedder prefers the OpenAI API when a key is present and falls back
// to a deterministic local embedder so the CLI works offline.
func buildEmbedder() (core.Embedder, int) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		model := os.Getenv("LEXIVEC_EMBED_MODEL")
		e, err := embedding.NewOpenAIEmbedder(apiKey, model)
		if err == nil {
			return embedding.WithRetry(e, 0), e.Dim()
		}
		fmt.Fprintf(os.Stderr, "warning: %v, using local embedder\n", err)
	}

	dim := dimensions
	if dim == 0 {
		dim = 64
	}
	return &hashEmbedder{dim: dim}, dim
}

func parseMode(name string) (core.Mode, error) {
	switch strings.ToLower(name) {
	case "", "hybrid":
		return core.ModeHybrid, nil
	case "vector":
		return core.ModeVector, nil
	case "lexical":
		return core.ModeLexical, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want hybrid, vector or lexical)", name)
	}
}

// hashEmbedder maps tokens into a fixed-size bag-of-words vector by hashing.
// Deterministic and offline; useful for local experiments, not for quality.
type hashEmbedder struct {
	dim int
}

func (h *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.embed(text)
	}
	return vectors, nil
}

func (h *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h *hashEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		hash := fnv.New32a()
		hash.Write([]byte(token))
		vec[int(hash.Sum32()%uint32(h.dim))]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "documents.db", "Database file path")
	rootCmd.PersistentFlags().StringVarP(&tableName, "table", "t", "documents", "Table name")
	rootCmd.PersistentFlags().IntVarP(&dimensions, "dimensions", "n", 0, "Vector dimensions (0 for auto)")
	rootCmd.PersistentFlags().StringVarP(&modeName, "mode", "m", "hybrid", "Store mode (hybrid/vector/lexical)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	addCmd.Flags().String("metadata", "", "Metadata as JSON, applied to all texts")
	addCmd.AddCommand(addBatchCmd)

	for _, cmd := range []*cobra.Command{searchCmd, keywordCmd, hybridCmd} {
		cmd.Flags().Int("top-k", 10, "Number of results")
		cmd.Flags().String("filter", "", "Metadata filter (JSON object or key=value pairs)")
		cmd.Flags().Bool("json", false, "Output as JSON")
	}

	deleteCmd.Flags().String("filter", "", "Metadata filter (JSON object or key=value pairs)")
	clearCmd.Flags().Bool("force", false, "Skip confirmation prompt")

	rootCmd.AddCommand(
		initCmd,
		addCmd,
		searchCmd,
		keywordCmd,
		hybridCmd,
		deleteCmd,
		clearCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
