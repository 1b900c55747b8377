package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sca-tools/bdreport/internal/data/db"
	"github.com/sca-tools/bdreport/internal/data/model"
	"github.com/sca-tools/bdreport/internal/log"
	"github.com/sca-tools/bdreport/internal/sql"
	"github.com/sca-tools/bdreport/pkg/hub"
	"github.com/sca-tools/bdreport/pkg/report"
	"github.com/sca-tools/bdreport/pkg/types"
)

// errFlagRetrieval is the error message for when a flag cannot be retrieved.
var errFlagRetrieval = errors.New("error getting flag")

// Execute is the main entry point for the report generator.
func Execute(args []string) {
	rootCmd := newRootCmd()
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.SetArgs(args) // Set the arguments
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command for the report generator.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bdreport project_name version_name",
		Short: "bdreport generates an enhanced vulnerability report for a Black Duck project version.",
		Long: `bdreport creates a server-side report for a project version, polls until the
archive is ready, and appends CSV files enriched with matched file paths and
remediation links into the output archive.`,
		Args: cobra.ExactArgs(2),
		RunE: runReport, // Use RunE instead of Run to handle errors
		PreRunE: func(cmd *cobra.Command, args []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("%w: format: %w", errFlagRetrieval, err)
			}
			if !strings.EqualFold(format, report.FormatCSV) {
				return fmt.Errorf("unsupported output format: %s (only %s is supported)", format, report.FormatCSV)
			}
			tries, err := cmd.Flags().GetInt("tries")
			if err != nil {
				return fmt.Errorf("%w: tries: %w", errFlagRetrieval, err)
			}
			if tries < 1 {
				return fmt.Errorf("tries must be at least 1, got %d", tries)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("output-file", "f", "",
		"Output archive path (default reports_<project>_<version>.zip)")
	rootCmd.PersistentFlags().StringP("reports", "r", "",
		fmt.Sprintf("Comma-separated report kinds to request (default: all).\nValid kinds: %s",
			strings.Join(report.ValidKinds(), ", ")))
	rootCmd.PersistentFlags().StringP("format", "t", report.FormatCSV,
		"Report format (only CSV is supported)")
	rootCmd.PersistentFlags().Int("tries", report.DefaultTries, "Maximum download attempts")
	rootCmd.PersistentFlags().Int("sleep-time", int(report.DefaultSleep/time.Second),
		"Seconds to wait between download attempts")
	rootCmd.PersistentFlags().String("db-path", "",
		"Optional SQLite file to record run history in")

	rootCmd.AddCommand(newConnectCmd())

	return rootCmd
}

// runReport is the main entry point for the report pipeline.
func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := log.NewLogger(ctx)

	projectName, versionName := args[0], args[1]
	outputFile, _ := cmd.Flags().GetString("output-file") //nolint:errcheck
	kindList, _ := cmd.Flags().GetString("reports")       //nolint:errcheck
	format, _ := cmd.Flags().GetString("format")          //nolint:errcheck
	tries, _ := cmd.Flags().GetInt("tries")               //nolint:errcheck
	sleepSecs, _ := cmd.Flags().GetInt("sleep-time")      //nolint:errcheck
	dbPath, _ := cmd.Flags().GetString("db-path")         //nolint:errcheck

	kinds := splitKinds(kindList)
	categories, err := report.Categories(kinds)
	if err != nil {
		return err
	}

	cfg, err := hub.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	client := hub.New(cfg, nil, logger)

	project, err := client.ProjectByName(ctx, projectName)
	if err != nil {
		return err
	}
	version, err := client.VersionByName(ctx, project, versionName)
	if err != nil {
		return err
	}
	projectID := project.Meta.ResourceID()
	versionID := version.Meta.ResourceID()

	if outputFile == "" {
		outputFile = fmt.Sprintf("reports_%s_%s.zip", sanitize(projectName), sanitize(versionName))
	}

	requester := report.NewRequester(client, logger)
	job, err := requester.Request(ctx, &types.ReportRequest{
		ProjectID:  projectID,
		VersionID:  versionID,
		Categories: categories,
		Format:     strings.ToUpper(format),
	})
	if err != nil {
		return err
	}

	downloader := report.NewDownloader(client, logger)
	downloader.Tries = tries
	downloader.Sleep = time.Duration(sleepSecs) * time.Second
	archive, attempts, err := downloader.Download(ctx, job, outputFile)
	if err != nil {
		return fmt.Errorf("report download failed: %w", err)
	}

	lookup := report.NewHubLookup(client, logger)
	enricher := report.NewEnricher(lookup, lookup, logger, outputFile)
	stats, err := enricher.Enrich(ctx, archive, projectID, versionID)
	if err != nil {
		return fmt.Errorf("report enrichment failed: %w", err)
	}

	if dbPath != "" {
		recordRun(ctx, logger, dbPath, &model.ReportRun{
			ProjectName: projectName,
			VersionName: versionName,
			ProjectID:   projectID,
			VersionID:   versionID,
			ReportID:    report.ReportID(job.Location),
			Kinds:       model.JSONStringArray(kinds),
			Attempts:    attempts,
			OutputPath:  outputFile,
			EnrichedFiles: func() []model.EnrichedFile {
				files := make([]model.EnrichedFile, 0, len(stats))
				for _, s := range stats {
					files = append(files, model.EnrichedFile{
						Entry:                s.Entry,
						OutputEntry:          s.OutputEntry,
						Rows:                 s.Rows,
						RowsWithoutFilePaths: s.SkippedFilePaths,
					})
				}
				return files
			}(),
		})
	}

	logger.Info("enhanced report written",
		zap.String("path", outputFile),
		zap.Int("enrichedFiles", len(stats)))
	return nil
}

// splitKinds parses the comma-separated --reports value, dropping empties.
func splitKinds(list string) []string {
	if list == "" {
		return nil
	}
	var kinds []string
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// sanitize makes a project or version name safe for use in a file name.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '_'
		}
		return r
	}, s)
}

// recordRun persists the run to the optional history database. Recording is
// best-effort: a broken history file must not fail a finished report run.
func recordRun(ctx context.Context, logger types.Logger, dbPath string, run *model.ReportRun) {
	database, err := sql.NewSQLiteConnector(dbPath).Connect(ctx)
	if err != nil {
		logger.Warn("run history unavailable", zap.String("dbPath", dbPath), zap.Error(err))
		return
	}
	manager, err := db.NewGormRunManager(database)
	if err != nil {
		logger.Warn("run history unavailable", zap.String("dbPath", dbPath), zap.Error(err))
		return
	}
	if err := manager.InsertRun(ctx, run); err != nil {
		logger.Warn("could not record run history", zap.String("dbPath", dbPath), zap.Error(err))
	}
}
