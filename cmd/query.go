package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var queryK int

var queryCmd = &cobra.Command{
	Use:   "query <collection> <text>",
	Short: "Find the most similar documents",
	Long: `Embeds the query text and returns the nearest documents by cosine
similarity. Each hit counts as an access: its counter is bumped and its
TTL slides.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryK, "k", 5, "number of results")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	collection, text := args[0], args[1]
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	embedder, err := a.newEmbedder(ctx)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}

	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding query: %w", err)
	}

	neighbors, err := a.store.QueryByVector(ctx, collection, vec, queryK)
	if err != nil {
		return err
	}
	if len(neighbors) == 0 {
		fmt.Println("no results")
		return nil
	}

	ids := make([]uuid.UUID, 0, len(neighbors))
	for _, n := range neighbors {
		doc, err := a.store.Get(ctx, n.ID)
		if err != nil {
			a.logger.Warn("skipping unreadable result", "id", n.ID, "error", err)
			continue
		}
		ids = append(ids, n.ID)

		fmt.Printf("%.4f  %s  [%s/%s]\n", n.Similarity, doc.ID, doc.Tier, doc.ContentType)
		fmt.Printf("        %s\n", preview(doc.Content, 120))
	}

	// Retrieval is an access event: slide TTLs on everything returned.
	if err := a.newIngestor(embedder).Touch(ctx, ids); err != nil {
		a.logger.Warn("recording access failed", "error", err)
	}
	return nil
}

func preview(content string, n int) string {
	content = strings.ReplaceAll(content, "\n", " ")
	if len(content) <= n {
		return content
	}
	return content[:n] + "..."
}
