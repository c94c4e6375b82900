package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/procsight/procsight/internal/search"
	"github.com/procsight/procsight/internal/storage"
)

var (
	searchLanguage string
	searchObject   string
	searchLimit    int
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over recovered code stages",
	Long: `Search builds an in-memory index over the audited code stages and runs
a keyword query against it. The query supports field scoping, boolean
operators, phrase search, wildcards, and fuzzy matching.

Examples:
  # Find stages touching HttpWebRequest
  procsight search HttpWebRequest

  # Only VB stages, in objects whose name starts with "Util"
  procsight search password --language VB --object "Util*"
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchLanguage, "language", "", "Filter by language: VB, C# or Unknown")
	searchCmd.Flags().StringVar(&searchObject, "object", "", "Filter by object name (wildcards allowed)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 15, "Maximum number of hits")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := search.New(db)
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), strings.Join(args, " "), &search.Options{
		Language: searchLanguage,
		Object:   searchObject,
		Limit:    searchLimit,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. %s / %s / %s  [%s]  (score %.2f)\n",
			i+1, r.ObjectName, r.PageName, r.StageName, r.Language, r.Score)
		for _, h := range r.Highlights {
			fmt.Printf("     %s\n", stripEmphasis(h))
		}
	}
	return nil
}

// stripEmphasis rewrites bleve's <em> highlight markers for terminals.
func stripEmphasis(s string) string {
	s = strings.ReplaceAll(s, "<em>", ">>")
	s = strings.ReplaceAll(s, "</em>", "<<")
	return strings.Join(strings.Fields(s), " ")
}
