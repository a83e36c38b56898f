package main

import (
	"fmt"

	"github.com/fr33d0m21/pull/parser"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var rowsOut bool
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parser.ParseFileType(fileType)
			if err != nil {
				return err
			}
			p, err := newParser()
			if err != nil {
				return err
			}
			result, err := parseFile(p, args[0], t)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rowsOut {
				return printJSON(out, result)
			}
			fmt.Fprintf(out, "type: %s\nrows: %d\nskipped: %d\n", result.Type, result.Len(), len(result.Warnings))
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "  row %d: %s\n", w.Row, w.Reason)
			}
			return nil
		},
	}
	addTypeFlag(cmd)
	cmd.Flags().BoolVar(&rowsOut, "json", false, "print the parsed rows as JSON")
	return cmd
}
