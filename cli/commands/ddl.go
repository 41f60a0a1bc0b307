package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carton-db/carton/cli/internal/ui"
	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/runtime/table"
)

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print CREATE TABLE statements for the configured tables",
	Long: `Render the CREATE TABLE statement for each table defined in
carton.yaml, using the configured provider's column types. With --apply
the statements run against the database.`,
	RunE: instrumented("ddl", runDDL),
}

var (
	ddlTable string
	ddlApply bool
)

func init() {
	ddlCmd.Flags().StringVarP(&ddlTable, "table", "t", "", "render one table only")
	ddlCmd.Flags().BoolVar(&ddlApply, "apply", false, "execute the statements against the database")

	rootCmd.AddCommand(ddlCmd)
}

func runDDL(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := dialect.ForProvider(cfg.Provider)
	if err != nil {
		return err
	}

	names := cfg.TableNames()
	if ddlTable != "" {
		names = []string{ddlTable}
	}
	if len(names) == 0 {
		return fmt.Errorf("no tables defined in carton.yaml")
	}

	tables := make([]*table.Table, 0, len(names))
	for _, name := range names {
		props, err := cfg.PropertySet(name)
		if err != nil {
			return err
		}
		tables = append(tables, table.New(nil, name, props))
	}

	for i, tbl := range tables {
		if i > 0 {
			fmt.Println()
		}
		ui.PrintSection(tbl.Name())
		ui.PrintSQL(tbl.CreateDDL(d))
	}

	if !ddlApply {
		return nil
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Println()
	for _, tbl := range tables {
		if err := tbl.On(s).EnsureSchema(ctx); err != nil {
			return fmt.Errorf("create %s: %w", tbl.Name(), err)
		}
		ui.PrintSuccess("created %s", tbl.Name())
	}
	return nil
}
