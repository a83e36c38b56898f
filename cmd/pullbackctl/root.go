package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/parser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	schemaFile string
	strictRows bool
	fileType   string
	debug      bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pullbackctl",
		Short:         "Parse, sample and import removal/tracking files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				config.GetLogger().SetLevel(logrus.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&schemaFile, "schema", os.Getenv("PARSER_SCHEMA_FILE"), "YAML file overriding the required headers")
	cmd.PersistentFlags().BoolVar(&strictRows, "strict", config.ParserRowPolicy() == config.RowPolicyStrict, "fail on rows missing sku or order-id")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	cmd.AddCommand(newParseCmd(), newSampleCmd(), newImportCmd())
	return cmd
}

func addTypeFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&fileType, "type", "t", "", "file type: removal or tracking")
	_ = cmd.MarkFlagRequired("type")
}

func newParser() (*parser.Parser, error) {
	schema := parser.DefaultSchema()
	if schemaFile != "" {
		loaded, err := parser.LoadSchema(schemaFile)
		if err != nil {
			return nil, err
		}
		schema = loaded
	}
	policy := parser.PolicyPermissive
	if strictRows {
		policy = parser.PolicyStrict
	}
	return parser.NewParser(schema, policy), nil
}

// parseFile reads path ("-" for stdin) as CSV/TSV, or xlsx by extension.
func parseFile(p *parser.Parser, path string, t parser.FileType) (*parser.Result, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return p.ParseXLSX(r, t)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return p.Parse(data, t)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
