package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"docrag/config"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/usecase"
)

func main() {
	indexPath := flag.String("index", ".", "Path to directory holding the store")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("runs", 20, "Repetitions used to time the search")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -index ./tmp -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index state (documents, entries, model, dimension)")
		fmt.Println("  2. Similarity of the top matches to the query")
		fmt.Println("  3. Query latency over repeated runs")
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(cfg.IndexDBPath(*indexPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	m, err := usecase.Open(usecase.Deps{
		Store:     st,
		Persister: st,
		Extractor: extract.NewTextExtractor(cfg.Store.Includes),
		Chunker:   chunker.NewRecursiveChunker(cfg.Chunk.Size, cfg.Chunk.Overlap),
		Embedder:  embedder,
	}, usecase.Options{Metric: domain.Metric(cfg.Index.Metric)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading index: %v (run 'docrag rebuild')\n", err)
		os.Exit(1)
	}
	defer m.Close()

	status, _ := m.Status()
	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Documents: %d\n", status.Documents)
	fmt.Printf("Entries:   %d\n", status.Entries)
	fmt.Printf("Model:     %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d, metric %s\n", status.Dimension, status.Metric)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	res, err := m.Query(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if res.NothingIndexed || len(res.Results) == 0 {
		fmt.Println("Nothing indexed yet - run 'docrag add' first")
		os.Exit(1)
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(res.Results))

	totalScore := 0.0
	for i, r := range res.Results {
		preview := []rune(r.Chunk.Text)
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}

		similarity := r.Score
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s#%d\n", i+1, rating, similarity, r.Chunk.DocID, r.Chunk.Index)
		fmt.Printf("   %s\n\n", strings.ReplaceAll(string(preview), "\n", " "))
	}

	start := time.Now()
	for i := 0; i < *runs; i++ {
		if _, err := m.Query(ctx, *query, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
	}
	perQuery := time.Since(start) / time.Duration(max(*runs, 1))

	avgScore := totalScore / float64(len(res.Results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", res.Results[0].Score)
	fmt.Printf("  Query latency:      %s (avg of %d)\n", perQuery, *runs)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or a rebuild")
	}
}
