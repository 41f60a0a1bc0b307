package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carton-db/carton/cli/internal/ui"
	"github.com/carton-db/carton/runtime/table"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a filter against the database and print matching documents",
	Long: `Select documents from a table. Filters compile to parameterized
SQL; the matching documents print as a table or as JSON.

Examples:
  carton query --table orders --filter "status = 2"
  carton query --table orders --criteria '{"amount": {"gte": 100}}' --json
  carton query --table orders --count`,
	RunE: instrumented("query", runQuery),
}

var (
	queryTable    string
	queryFilter   string
	queryCriteria string
	queryJSON     bool
	queryCount    bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryTable, "table", "t", "docs", "table name")
	queryCmd.Flags().StringVarP(&queryFilter, "filter", "f", "", "filter expression")
	queryCmd.Flags().StringVarP(&queryCriteria, "criteria", "c", "", "criteria document (JSON)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print documents as JSON")
	queryCmd.Flags().BoolVar(&queryCount, "count", false, "print the match count only")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	props, err := propertySetFor(cfg, queryTable)
	if err != nil {
		return err
	}
	c, err := resolveCriteria(queryFilter, queryCriteria)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	tbl := table.New(s, queryTable, props)

	if queryCount {
		n, err := tbl.Count(ctx, c)
		if err != nil {
			return err
		}
		ui.PrintInfo("%d document(s)", n)
		return nil
	}

	// No spinner in JSON mode, the output may be piped.
	stopSpinner := func() {}
	if !queryJSON {
		if sp, err := ui.Spinner("querying " + queryTable); err == nil {
			stopSpinner = func() { _ = sp.Stop() }
		}
	}
	docs, err := tbl.Select(ctx, c)
	stopSpinner()
	if err != nil {
		return err
	}

	if queryJSON {
		out, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(docs) == 0 {
		ui.PrintWarning("no documents matched")
		return nil
	}

	headers := append([]string{"id"}, props.Names()...)
	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		row := make([]string, 0, len(headers))
		for _, h := range headers {
			if v, ok := doc[h]; ok && v != nil {
				row = append(row, fmt.Sprintf("%v", v))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	ui.PrintTable(headers, rows)
	ui.PrintSuccess("%d document(s)", len(docs))
	return nil
}
