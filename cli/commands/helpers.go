package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/carton-db/carton/cli/internal/config"
	"github.com/carton-db/carton/query/criteria"
	"github.com/carton-db/carton/query/dialect"
	"github.com/carton-db/carton/query/expr"
	"github.com/carton-db/carton/query/filter"
	"github.com/carton-db/carton/runtime/property"
	"github.com/carton-db/carton/runtime/session"
)

// resolveCriteria turns the --filter and --criteria flags into
// criteria. --criteria takes inline JSON or the path of a JSON file.
// Both flags empty means match everything.
func resolveCriteria(filterText, criteriaJSON string) (criteria.Criteria, error) {
	switch {
	case filterText != "" && criteriaJSON != "":
		return nil, fmt.Errorf("--filter and --criteria are mutually exclusive")
	case filterText != "":
		return filter.Parse(filterText)
	case criteriaJSON != "":
		raw := []byte(criteriaJSON)
		if exists, _ := afero.Exists(config.AppFs, criteriaJSON); exists {
			data, err := afero.ReadFile(config.AppFs, criteriaJSON)
			if err != nil {
				return nil, fmt.Errorf("read criteria file: %w", err)
			}
			raw = data
		}
		var c criteria.Criteria
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("invalid criteria JSON: %w", err)
		}
		return c, nil
	default:
		return criteria.Criteria{}, nil
	}
}

// propertySetFor returns the configured property set for a table, or an
// empty set when the table is not in carton.yaml.
func propertySetFor(cfg *config.Config, tableName string) (*property.Set, error) {
	if _, ok := cfg.Tables[tableName]; !ok {
		return property.EmptySet(), nil
	}
	return cfg.PropertySet(tableName)
}

// openSession connects a session for cfg.
func openSession(ctx context.Context, cfg *config.Config) (*session.Session, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("no database URL: set --url, carton.yaml, or DATABASE_URL")
	}
	d, err := dialect.ForProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	s := session.New(d)
	if err := s.Connect(ctx, cfg.URL); err != nil {
		return nil, err
	}
	return s, nil
}

// paramRows formats statement parameters for ui.PrintTable.
func paramRows(st *expr.Statement) [][]string {
	rows := make([][]string, 0, len(st.Params))
	for _, p := range st.Params {
		rows = append(rows, []string{p.Name, fmt.Sprintf("%v", p.Value)})
	}
	return rows
}
