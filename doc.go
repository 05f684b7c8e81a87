// Package lexivec is a hybrid document retrieval store on SQLite: every
// document is indexed simultaneously for dense vector similarity search and
// sparse lexical (BM25) search, and the two signals can be queried
// independently or fused into a single ranked result set with reciprocal
// rank fusion.
//
// The store keeps three structures in lockstep — the primary row table, a
// vector shadow index and an FTS5 lexical shadow index — synchronized by
// triggers and transactional dual writes, so readers never observe a row
// present in one structure and missing from another.
//
// Quick start:
//
//	embedder, _ := embedding.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"), "")
//	db, err := lexivec.Open(lexivec.Config{
//		Path:       "docs.db",
//		Dimensions: embedder.Dim(),
//	}, lexivec.WithEmbedder(embedder))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	ids, _ := db.AddTexts(ctx, []string{"Capital of France is Paris."}, nil)
//	results, _ := db.HybridSearch(ctx, "capital of France", 4, nil)
//
// The heavy lifting lives in pkg/core; this package wires an embedding
// collaborator, an optional keyword-extraction model and the ambient
// logging/metrics into it.
package lexivec
