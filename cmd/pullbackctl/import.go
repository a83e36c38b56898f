package main

import (
	"errors"
	"path/filepath"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
	"github.com/fr33d0m21/pull/reconcile"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var storeId, uploadedBy string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a file into a store",
		Long: `Import parses FILE and ingests it into the store's removal orders.
Tracking files are matched onto the store's working lines.
With --dry-run the rows go to an empty in-memory store instead of MySQL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if storeId == "" {
				return errors.New("--store is required")
			}
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

			var repo reconcile.Repository
			if dryRun {
				repo = reconcile.NewMemoryRepository()
			} else {
				config.ConnectDatabaseWithRetry()
				db := config.GetDB()
				if db == nil {
					return errors.New("database not initialized, set DB_* env vars")
				}
				if _, err := models.GetStore(cmd.Context(), storeId); err != nil {
					return err
				}
				repo = reconcile.NewGormRepository(db)
			}

			svc := reconcile.NewService(repo, reconcile.OptionsFromEnv())
			res, err := svc.Ingest(cmd.Context(), reconcile.IngestRequest{
				StoreId:    storeId,
				FileName:   filepath.Base(args[0]),
				UploadedBy: uploadedBy,
				Result:     result,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addTypeFlag(cmd)
	cmd.Flags().StringVarP(&storeId, "store", "s", "", "store id")
	cmd.Flags().StringVar(&uploadedBy, "by", "pullbackctl", "uploader recorded on the batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "ingest into memory only")
	return cmd
}
