package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/carton-db/carton/cli/internal/ui"
	"github.com/carton-db/carton/cli/internal/watch"
	"github.com/carton-db/carton/query/criteria"
	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/query/expr"
	"github.com/carton-db/carton/query/filter"
	"github.com/carton-db/carton/runtime/property"
	"github.com/carton-db/carton/telemetry"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Compile a filter to SQL without touching a database",
	Long: `Compile a filter expression or criteria document to the SQL
carton would run, and show the bound parameters.

Examples:
  carton explain --table orders --filter "status = 2 and amount >= 100"
  carton explain --table orders --criteria '{"status": {"in": [1, 2]}}'
  carton explain --table orders --watch filter.txt`,
	RunE: instrumented("explain", runExplain),
}

var (
	explainTable    string
	explainFilter   string
	explainCriteria string
	explainInline   bool
	explainMarkdown bool
	explainWatch    string
)

func init() {
	explainCmd.Flags().StringVarP(&explainTable, "table", "t", "docs", "table name")
	explainCmd.Flags().StringVarP(&explainFilter, "filter", "f", "", "filter expression")
	explainCmd.Flags().StringVarP(&explainCriteria, "criteria", "c", "", "criteria document (JSON)")
	explainCmd.Flags().BoolVar(&explainInline, "inline", false, "also print the statement with values inlined")
	explainCmd.Flags().BoolVar(&explainMarkdown, "markdown", false, "render the output as markdown")
	explainCmd.Flags().StringVarP(&explainWatch, "watch", "w", "", "recompile a filter file on change")

	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := dialect.ForProvider(cfg.Provider)
	if err != nil {
		return err
	}
	props, err := propertySetFor(cfg, explainTable)
	if err != nil {
		return err
	}

	if explainWatch != "" {
		return watchExplain(d, props)
	}

	c, err := resolveCriteria(explainFilter, explainCriteria)
	if err != nil {
		return err
	}
	return printExplain(d, props, c)
}

// watchExplain recompiles the watched filter file on every save until
// interrupted.
func watchExplain(d dialect.Dialect, props *property.Set) error {
	w, err := watch.New(explainWatch, func() error {
		data, err := os.ReadFile(explainWatch)
		if err != nil {
			return err
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return fmt.Errorf("%s is empty", explainWatch)
		}
		c, err := filter.Parse(text)
		if err != nil {
			return err
		}
		return printExplain(d, props, c)
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ui.PrintInfo("watching %s, ctrl-c to stop", explainWatch)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	return nil
}

func printExplain(d dialect.Dialect, props *property.Set, c criteria.Criteria) error {
	where, err := criteria.Compile(c, props)
	if err != nil {
		return err
	}
	e := expr.NewBuilder().
		Text("select ").Ident(property.IDColumn).
		Text(", ").Ident(property.DocColumn).
		Text(" from ").Ident(explainTable).
		Text(" where ").Expr(where).
		Build()

	start := time.Now()
	st, err := e.Compile(d)
	if err != nil {
		return err
	}
	telemetry.RecordCompile(d.Name(), len(st.Params), time.Since(start))

	if explainMarkdown {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n```sql\n%s\n```\n", explainTable, st.Text)
		if len(st.Params) > 0 {
			b.WriteString("\n| param | value |\n|---|---|\n")
			for _, p := range st.Params {
				fmt.Fprintf(&b, "| %s | %v |\n", p.Name, p.Value)
			}
		}
		if explainInline {
			fmt.Fprintf(&b, "\n```sql\n%s\n```\n", e.String())
		}
		return ui.PrintMarkdown(b.String())
	}

	ui.PrintSection(fmt.Sprintf("%s (%s)", explainTable, d.Name()))
	ui.PrintSQL(st.Text)
	if len(st.Params) > 0 {
		fmt.Println()
		ui.PrintTable([]string{"param", "value"}, paramRows(st))
	}
	if explainInline {
		fmt.Println()
		ui.PrintSection("inlined")
		ui.PrintSQL(e.String())
	}
	return nil
}
