package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

var (
	searchLimit     int
	searchJSON      bool
	searchDocuments []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs hybrid search across all indexed documents.
Combines keyword (BM25) and semantic (vector) search via reciprocal
rank fusion for best results.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringSliceVar(&searchDocuments, "document", nil, "restrict the search to these document ids")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := driving.SearchOptions{
		TopK:        searchLimit,
		DocumentIDs: searchDocuments,
	}

	results, err := searchService.Search(cmd.Context(), localUser, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.Passage) error {
	type hit struct {
		PassageID    string  `json:"passage_id"`
		DocumentID   string  `json:"document_id"`
		DocumentName string  `json:"document_name"`
		Score        float64 `json:"score"`
		Content      string  `json:"content"`
	}

	hits := make([]hit, len(results))
	for i, p := range results {
		hits[i] = hit{
			PassageID:    p.ID,
			DocumentID:   p.DocumentID,
			DocumentName: p.DocumentName,
			Score:        p.Score,
			Content:      p.Content,
		}
	}

	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.Passage) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, p := range results {
		name := p.DocumentName
		if name == "" {
			name = p.DocumentID
		}

		cmd.Printf("  [%d] %s (%.4f)\n", i+1, name, p.Score)
		if len(p.PageNumbers) > 0 {
			cmd.Printf("      Pages: %s\n", formatPages(p.PageNumbers))
		}
		cmd.Printf("      %s\n", excerpt(p.Content, 160))
		cmd.Println()
	}

	return nil
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}

func excerpt(content string, limit int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= limit {
		return content
	}
	return content[:limit] + "..."
}
