package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ukaji3/xltable-go/pkg/xltable"
	"github.com/ukaji3/xltable-go/pkg/xltable/models"
	"github.com/xuri/excelize/v2"
)

var tablesJSON bool

func newTablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables [input.xlsx]",
		Short: "List the tables declared in a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := xltable.ListTables(args[0])
			if err != nil {
				return err
			}

			if tablesJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tables)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTables(tables))
			return nil
		},
	}
	cmd.Flags().BoolVar(&tablesJSON, "json", false, "Print JSON instead of a listing")
	return cmd
}

// renderTables formats one box per table.
func renderTables(tables []models.TableDescriptor) string {
	if len(tables) == 0 {
		return SubtitleStyle.Render("no tables found") + "\n"
	}

	var b strings.Builder
	for _, t := range tables {
		var body strings.Builder
		body.WriteString(TitleStyle.Render(t.Name))
		body.WriteString(SubtitleStyle.Render(fmt.Sprintf("  %s!%s", t.Sheet, t.Ref)))
		body.WriteString("\n")
		for i, col := range t.Columns {
			letter, err := excelize.ColumnNumberToName(t.Start.Column + i)
			if err != nil {
				letter = "?"
			}
			body.WriteString(ColumnStyle.Render(fmt.Sprintf("%3s  %s", letter, col)))
			if i < len(t.Columns)-1 {
				body.WriteString("\n")
			}
		}
		b.WriteString(BoxStyle.Render(body.String()))
		b.WriteString("\n")
	}
	b.WriteString(SuccessStyle.Render(fmt.Sprintf("%d table(s)", len(tables))))
	b.WriteString("\n")
	return b.String()
}
