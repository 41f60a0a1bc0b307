package commands

import (
	"fmt"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/carton-db/carton/cli/internal/config"
	"github.com/carton-db/carton/cli/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a carton.yaml and supporting files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  instrumented("init", runInit),
}

var initYes bool

func init() {
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "accept all defaults without prompting")

	rootCmd.AddCommand(initCmd)
}

type initAnswers struct {
	Provider string
	URL      string
	Table    string
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	ui.PrintHeader("carton", "project setup")

	answers := initAnswers{
		Provider: "sqlite",
		URL:      "file:carton.db",
		Table:    "docs",
	}
	if !initYes {
		qs := []*survey.Question{
			{
				Name: "provider",
				Prompt: &survey.Select{
					Message: "Database provider:",
					Options: []string{"sqlite", "postgres", "mysql", "sqlserver"},
					Default: "sqlite",
				},
			},
			{
				Name:   "url",
				Prompt: &survey.Input{Message: "Connection string:", Default: "file:carton.db"},
			},
			{
				Name:     "table",
				Prompt:   &survey.Input{Message: "First table name:", Default: "docs"},
				Validate: survey.Required,
			},
		}
		if err := survey.Ask(qs, &answers); err != nil {
			return err
		}
	}

	if dir != "." {
		if err := config.AppFs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	cfgPath := filepath.Join(dir, "carton.yaml")
	if exists, _ := afero.Exists(config.AppFs, cfgPath); exists {
		ui.PrintWarning("config already exists: %s", cfgPath)
	} else {
		cfg := &config.Config{
			Provider: answers.Provider,
			Tables: map[string]map[string]string{
				answers.Table: {
					"name":       "string",
					"created_at": "time",
				},
			},
		}
		if err := config.Save(cfg, cfgPath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		ui.PrintSuccess("created %s", cfgPath)
	}

	envPath := filepath.Join(dir, ".env.example")
	if exists, _ := afero.Exists(config.AppFs, envPath); !exists {
		envContent := fmt.Sprintf("# Database connection string\nDATABASE_URL=%q\n", answers.URL)
		if err := afero.WriteFile(config.AppFs, envPath, []byte(envContent), 0644); err != nil {
			ui.PrintWarning("failed to create .env.example: %v", err)
		} else {
			ui.PrintSuccess("created %s", envPath)
		}
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if exists, _ := afero.Exists(config.AppFs, gitignorePath); !exists {
		gitignoreContent := `# Environment variables
.env
.env.local

# Local databases
*.db

# IDE
.idea/
.vscode/
`
		if err := afero.WriteFile(config.AppFs, gitignorePath, []byte(gitignoreContent), 0644); err != nil {
			ui.PrintWarning("failed to create .gitignore: %v", err)
		} else {
			ui.PrintSuccess("created %s", gitignorePath)
		}
	}

	fmt.Println()
	ui.PrintInfo("next steps:")
	ui.PrintList([]string{
		"copy .env.example to .env and set DATABASE_URL",
		fmt.Sprintf("edit %s to define your tables", cfgPath),
		"run: carton ddl --apply",
		fmt.Sprintf("run: carton query --table %s", answers.Table),
	})
	return nil
}
