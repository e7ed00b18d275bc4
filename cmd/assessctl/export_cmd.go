package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assessx/internal/assessment"
	"github.com/JonMunkholm/assessx/internal/exchange"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		output string
		tags   []string
		kbs    []string
	)

	cmd := &cobra.Command{
		Use:   "export <template.json>",
		Short: "Convert a template document to CSV or XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			t, err := decodeTemplate(f)
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				tags = t.Tags
			}
			if len(kbs) == 0 {
				kbs = t.KBs
			}

			body, name, err := render(t, format, tags, kbs)
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if output == "" {
				output = name
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", filepath.Clean(output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv or xlsx)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default <template name>.<format>)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "tag names for the Tags column")
	cmd.Flags().StringSliceVar(&kbs, "kbs", nil, "knowledge base names")
	return cmd
}

// decodeTemplate reads a template document and runs the document pass.
func decodeTemplate(r io.Reader) (assessment.Template, error) {
	var t assessment.Template
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return t, fmt.Errorf("decode template: %w", err)
	}
	if err := exchange.ValidateTemplate(t); err != nil {
		return t, err
	}
	return t, nil
}

func render(t assessment.Template, format string, tags, kbs []string) ([]byte, string, error) {
	switch format {
	case "csv":
		return []byte(exchange.ExportCSV(t, tags, kbs)), exchange.ExportFileName(t.Name), nil
	case "xlsx":
		var buf bytes.Buffer
		if err := exchange.ExportXLSX(&buf, t, tags, kbs); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), exchange.ExportXLSXFileName(t.Name), nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}
