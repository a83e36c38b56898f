package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fr33d0m21/pull/parser"
	"github.com/spf13/cobra"
)

func newSampleCmd() *cobra.Command {
	var format, dir string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a sample file with the expected headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parser.ParseFileType(fileType)
			if err != nil {
				return err
			}
			data, err := parser.Sample(t, format)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, parser.SampleFileName(t, format))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	addTypeFlag(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", parser.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVarP(&dir, "out", "o", ".", "output directory")
	return cmd
}
