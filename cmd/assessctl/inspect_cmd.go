package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assessx/internal/exchange"
)

type inspectOutput struct {
	File         string              `json:"file"`
	Rows         int                 `json:"rows"`
	Mapping      map[string][]string `json:"mapping"`
	ColumnErrors []string            `json:"columnErrors,omitempty"`
	Templates    []inspectTemplate   `json:"templates,omitempty"`
}

type inspectTemplate struct {
	GroupID   string `json:"groupId"`
	Name      string `json:"name"`
	Rows      int    `json:"rows"`
	Sections  int    `json:"sections"`
	Questions int    `json:"questions"`
	Error     string `json:"error,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var (
		aliases string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show how a CSV or XLSX file would be imported",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup, err := loadAliases(aliases)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			out, err := inspect(filepath.Base(args[0]), f, lookup)
			if err != nil {
				return exchange.NewUserError(err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printInspect(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&aliases, "aliases", "", "YAML file of header aliases")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

// inspect reads the file, applies the default mapping and, when the column
// pass is clean, builds every template.
func inspect(name string, r io.Reader, lookup exchange.Lookup) (inspectOutput, error) {
	table, err := exchange.ReadTable(name, r)
	if err != nil {
		return inspectOutput{}, err
	}

	m := exchange.DefaultMapping(table.Header, lookup)
	out := inspectOutput{
		File:    name,
		Rows:    len(table.Rows),
		Mapping: make(map[string][]string),
	}
	for _, role := range exchange.Roles {
		if hs := m.Headers(role); len(hs) > 0 {
			out.Mapping[string(role)] = hs
		}
	}

	colErrs := exchange.ValidateColumns(table, m)
	if colErrs.Blocking() {
		out.ColumnErrors = colErrs.Messages()
		return out, nil
	}

	for _, p := range exchange.Prepare(table, m, nil) {
		t := inspectTemplate{
			GroupID:   p.GroupID,
			Name:      p.Template.Name,
			Rows:      p.Rows,
			Sections:  len(p.Template.Sections),
			Questions: p.Template.QuestionCount(),
		}
		if p.Err != nil {
			t.Error = p.Err.Error()
		}
		out.Templates = append(out.Templates, t)
	}
	return out, nil
}

func printInspect(w io.Writer, out inspectOutput) {
	fmt.Fprintf(w, "%s: %d data rows\n", out.File, out.Rows)

	fmt.Fprintln(w, "\nMapping:")
	for _, role := range exchange.Roles {
		hs := out.Mapping[string(role)]
		if len(hs) == 0 {
			fmt.Fprintf(w, "  %-20s -\n", role.Label())
			continue
		}
		fmt.Fprintf(w, "  %-20s %v\n", role.Label(), hs)
	}

	if len(out.ColumnErrors) > 0 {
		fmt.Fprintln(w, "\nColumn errors:")
		for _, msg := range out.ColumnErrors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
		return
	}

	fmt.Fprintf(w, "\nTemplates (%d):\n", len(out.Templates))
	for _, t := range out.Templates {
		name := t.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "  %-16s %-30s rows=%d sections=%d questions=%d\n",
			t.GroupID, name, t.Rows, t.Sections, t.Questions)
		if t.Error != "" {
			fmt.Fprintf(w, "    invalid: %s\n", t.Error)
		}
	}
}
