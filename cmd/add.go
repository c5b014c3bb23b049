package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/strata-ai/strata/internal/memory"
)

var (
	addType       string
	addImportance float64
	addPermanent  bool
	addID         string
)

var addCmd = &cobra.Command{
	Use:   "add <collection> [content]",
	Short: "Ingest content into a collection",
	Long: `Scores, classifies, and stores content. Without a content argument,
reads from stdin. Long content is split into linked chunks.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addType, "type", memory.ContentProse,
		"content type (prose, code, data, doc)")
	addCmd.Flags().Float64Var(&addImportance, "importance", 0,
		"explicit importance in [0,1]")
	addCmd.Flags().BoolVar(&addPermanent, "permanent", false,
		"pin to the permanent tier")
	addCmd.Flags().StringVar(&addID, "id", "", "assign a document id (uuid)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	collection := args[0]

	var content string
	if len(args) == 2 {
		content = args[1]
	} else {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		content = string(raw)
	}

	opts := memory.IngestOptions{
		ContentType: addType,
		Importance:  addImportance,
		Permanent:   addPermanent,
	}
	if addID != "" {
		id, err := uuid.Parse(addID)
		if err != nil {
			return fmt.Errorf("parsing --id: %w", err)
		}
		opts.ID = id
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	embedder, err := a.newEmbedder(cmd.Context())
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}

	docs, err := a.newIngestor(embedder).Ingest(cmd.Context(), collection, content, opts)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		fmt.Printf("%s  tier=%s  importance=%.3f", doc.ID, doc.Tier, doc.CappedImportance())
		if doc.TTLExpiry != nil {
			fmt.Printf("  expires=%s", doc.TTLExpiry.Format("2006-01-02 15:04"))
		}
		fmt.Println()
	}
	return nil
}
