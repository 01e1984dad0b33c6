package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ruslano69/tdtp-export/pkg/core/schema"
	"github.com/ruslano69/tdtp-export/pkg/job"
)

func newTypesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "types",
		Short: "Print the effective type mapping",
		Long:  `Types prints every logical type name the job accepts, its canonical tag and the SQL type used for NULL. Without --config the built-in mapping is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping := schema.DefaultTypeMapping()
			var columns []job.ColumnConfig

			if configPath != "" {
				cfg, err := job.LoadConfig(configPath, func(c *job.JobConfig) { c.Export.DryRun = true })
				if err != nil {
					return err
				}
				if mapping, err = cfg.TypeMapping(); err != nil {
					return err
				}
				columns = cfg.Columns
			}

			if err := pterm.DefaultTable.WithHasHeader().WithData(mappingTable(mapping)).Render(); err != nil {
				return err
			}

			if len(columns) > 0 {
				pterm.Println()
				return pterm.DefaultTable.WithHasHeader().WithData(columnsTable(mapping, columns)).Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to job YAML")
	return cmd
}

func mappingTable(mapping schema.TypeMapping) pterm.TableData {
	data := pterm.TableData{{"Logical type", "Tag", "NULL type"}}
	for _, name := range mapping.Names() {
		tag, _ := mapping.Lookup(name)
		data = append(data, []string{name, string(tag), tag.NullType().String()})
	}
	return data
}

// columnsTable показывает, как будет связана каждая колонка задания
func columnsTable(mapping schema.TypeMapping, columns []job.ColumnConfig) pterm.TableData {
	data := pterm.TableData{{"#", "Column", "Logical type", "Binds as"}}
	for i, col := range columns {
		bindsAs := "text (unknown type)"
		if tag, ok := mapping.Lookup(col.Type); ok {
			bindsAs = string(tag)
		}
		data = append(data, []string{pterm.Sprint(i + 1), col.Name, col.Type, bindsAs})
	}
	return data
}
