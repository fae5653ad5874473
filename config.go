package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// JobFile is the TOML-driven definition of one migration job: the two
// connections, the table/column selection, and the run options.
type JobFile struct {
	Name    string        `toml:"name"`
	Source  ConnSpec      `toml:"source"`
	Target  ConnSpec      `toml:"target"`
	Options OptionsConfig `toml:"options"`
	Tables  []TableConfig `toml:"tables"`
}

// ConnSpec identifies a database connection by engine type and DSN.
type ConnSpec struct {
	Type string `toml:"type"`
	DSN  string `toml:"dsn"`
}

// OptionsConfig mirrors MigrationOptions in TOML form.
type OptionsConfig struct {
	BatchSize               int  `toml:"batch_size"`
	TruncateBeforeInsert    bool `toml:"truncate_before_insert"`
	SkipErrors              bool `toml:"skip_errors"`
	ValidateBeforeMigration bool `toml:"validate_before_migration"`
	CreateMissingTables     bool `toml:"create_missing_tables"`
	Workers                 int  `toml:"workers"`
}

// TableConfig selects one table. An empty destination defaults to the source
// name; columns must be listed explicitly and non-empty.
type TableConfig struct {
	Name        string            `toml:"name"`
	Schema      string            `toml:"schema"`
	Destination string            `toml:"destination"`
	Columns     []string          `toml:"columns"`
	Transforms  map[string]string `toml:"transforms"`
}

// loadJob reads a TOML job file and returns the file plus the resolved
// MigrationConfig, with defaults applied and every field validated.
func loadJob(path string) (*JobFile, *MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read job file: %w", err)
	}

	job := JobFile{
		Options: OptionsConfig{
			BatchSize:               defaultBatchSize,
			ValidateBeforeMigration: true,
			Workers:                 1,
		},
	}
	md, err := toml.Decode(string(data), &job)
	if err != nil {
		return nil, nil, fmt.Errorf("parse job file: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, nil, fmt.Errorf("unknown job file keys: %s", strings.Join(keys, ", "))
	}

	job.Name = strings.TrimSpace(job.Name)
	if job.Name == "" {
		return nil, nil, fmt.Errorf("name is required")
	}

	switch job.Source.Type {
	case "mysql", "sqlite", "mssql":
	case "":
		return nil, nil, fmt.Errorf("source.type is required (must be mysql, sqlite or mssql)")
	default:
		return nil, nil, fmt.Errorf("source.type must be one of: mysql, sqlite, mssql")
	}
	if job.Source.DSN == "" {
		return nil, nil, fmt.Errorf("source.dsn is required")
	}

	switch job.Target.Type {
	case "postgres", "mysql", "sqlite", "mssql":
	case "":
		return nil, nil, fmt.Errorf("target.type is required (must be postgres, mysql, sqlite or mssql)")
	default:
		return nil, nil, fmt.Errorf("target.type must be one of: postgres, mysql, sqlite, mssql")
	}
	if job.Target.DSN == "" {
		return nil, nil, fmt.Errorf("target.dsn is required")
	}

	if job.Options.BatchSize <= 0 {
		return nil, nil, fmt.Errorf("options.batch_size must be positive")
	}
	if job.Options.Workers <= 0 {
		return nil, nil, fmt.Errorf("options.workers must be positive")
	}

	if len(job.Tables) == 0 {
		return nil, nil, fmt.Errorf("at least one [[tables]] entry is required")
	}

	selections := make([]TableSelection, 0, len(job.Tables))
	for _, t := range job.Tables {
		if t.Name == "" {
			return nil, nil, fmt.Errorf("tables entry without a name")
		}
		sel := TableSelection{
			Name:        t.Name,
			Schema:      t.Schema,
			Destination: t.Destination,
			Selected:    true,
		}
		listed := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			listed[c] = true
			sel.Columns = append(sel.Columns, ColumnSelection{
				Name:      c,
				Selected:  true,
				Transform: t.Transforms[c],
			})
		}
		for col, expr := range t.Transforms {
			if !listed[col] {
				return nil, nil, fmt.Errorf("table %s: transform on unselected column %q", t.Name, col)
			}
			if err := validateTransform(expr); err != nil {
				return nil, nil, fmt.Errorf("table %s column %s: %w", t.Name, col, err)
			}
		}
		selections = append(selections, sel)
	}

	units, err := buildUnits(selections)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := newMigrationConfig(job.Name, job.Source.Type, job.Target.Type, units, MigrationOptions{
		BatchSize:               job.Options.BatchSize,
		TruncateBeforeInsert:    job.Options.TruncateBeforeInsert,
		SkipErrors:              job.Options.SkipErrors,
		ValidateBeforeMigration: job.Options.ValidateBeforeMigration,
		CreateMissingTables:     job.Options.CreateMissingTables,
		Workers:                 job.Options.Workers,
	})
	if err != nil {
		return nil, nil, err
	}
	return &job, cfg, nil
}
