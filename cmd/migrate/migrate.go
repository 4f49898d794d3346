// Package migrate provides the migrate command group, moving asset-centric
// resources into the data modeling service.
package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cognitedata/cdf-tk/internal/cdf"
	"github.com/cognitedata/cdf-tk/internal/conf"
	"github.com/cognitedata/cdf-tk/internal/logging"
	migration "github.com/cognitedata/cdf-tk/internal/migrate"
	"github.com/cognitedata/cdf-tk/internal/observability"
)

// Command creates and returns the migrate command with one subcommand per
// resource kind.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate asset-centric resources to data modeling instances",
	}
	for _, rt := range cdf.AllResourceTypes {
		cmd.AddCommand(kindCommand(settings, rt))
	}
	return cmd
}

type migrateFlags struct {
	mappingFile   string
	dataSet       string
	instanceSpace string
	ingestionView string
	viewMappings  string
	limit         int
	dryRun        bool
	skipLinking   bool
}

func kindCommand(settings *conf.Settings, rt cdf.ResourceType) *cobra.Command {
	var flags migrateFlags
	use := pluralName(rt)

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Migrate %s to data modeling instances", use),
		Long: fmt.Sprintf(`Migrates %s into data modeling instances, either driven by a CSV
mapping file or by enumerating a data set. Every conversion is recorded in a
per-run issue log; use --dry-run to validate without writing anything.`, use),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd.Context(), settings, rt, &flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.mappingFile, "mapping-file", "", "CSV file mapping legacy ids to instance ids")
	cmd.Flags().StringVar(&flags.dataSet, "data-set", "", "External id of the data set to migrate")
	cmd.Flags().StringVar(&flags.instanceSpace, "instance-space", "", "Target instance space for data set migrations")
	cmd.Flags().StringVar(&flags.ingestionView, "ingestion-view", "", "Ingestion view name overriding the built-in default")
	cmd.Flags().StringVar(&flags.viewMappings, "view-mappings", "", "YAML file with additional ingestion view definitions")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Maximum number of resources to migrate, 0 for all")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Convert and validate without writing anything")
	cmd.Flags().BoolVar(&flags.skipLinking, "skip-linking", false, "Skip pending instance id linking")

	return cmd
}

func pluralName(rt cdf.ResourceType) string {
	switch rt {
	case cdf.ResourceTypeAsset:
		return "assets"
	case cdf.ResourceTypeEvent:
		return "events"
	case cdf.ResourceTypeTimeSeries:
		return "timeseries"
	case cdf.ResourceTypeFile:
		return "files"
	case cdf.ResourceTypeSequence:
		return "sequences"
	default:
		panic(fmt.Sprintf("unhandled resource type %d", int(rt)))
	}
}

func buildSelector(rt cdf.ResourceType, flags *migrateFlags) (migration.DataSelector, error) {
	switch {
	case flags.mappingFile != "" && flags.dataSet != "":
		return nil, fmt.Errorf("--mapping-file and --data-set are mutually exclusive")
	case flags.mappingFile != "":
		return migration.NewMappingFileSelector(rt, flags.mappingFile), nil
	case flags.dataSet != "":
		return &migration.DataSetSelector{
			Kind:              rt,
			DataSetExternalId: flags.dataSet,
			InstanceSpace:     flags.instanceSpace,
			IngestionView:     flags.ingestionView,
		}, nil
	default:
		return nil, fmt.Errorf("either --mapping-file or --data-set is required")
	}
}

func runMigration(ctx context.Context, settings *conf.Settings, rt cdf.ResourceType, flags *migrateFlags, out io.Writer) error {
	if settings.CDF.Project == "" {
		return fmt.Errorf("a CDF project is required, set --project or cdf.project")
	}
	if settings.CDF.Cluster == "" && settings.CDF.BaseURL == "" {
		return fmt.Errorf("a CDF cluster is required, set --cluster or cdf.cluster")
	}

	selector, err := buildSelector(rt, flags)
	if err != nil {
		return err
	}

	registry := migration.DefaultMappings()
	if flags.viewMappings != "" {
		custom, err := migration.LoadViewMappings(flags.viewMappings)
		if err != nil {
			return err
		}
		registry = registry.With(custom...)
	}

	client := cdf.NewClient(cdf.ClientConfig{
		BaseURL:           settings.CDF.APIBaseURL(),
		Project:           settings.CDF.Project,
		TokenSource:       cdf.EnvTokenSource(settings.CDF.TokenEnv),
		RequestsPerSecond: settings.Migrate.RequestsPerSecond,
	})

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if settings.Main.Debug {
		level = slog.LevelDebug
	}
	logger, closeLogger, err := logging.NewFileLogger(
		filepath.Join(settings.Migrate.LogDir, "cdf-tk.log"), "migrate", level,
		logging.DefaultFileLoggerConfig())
	if err != nil {
		return err
	}
	defer func() { _ = closeLogger() }()

	migrator := migration.NewMigrator(migration.Options{
		Client:         client,
		Registry:       registry,
		Metrics:        metrics.Migration,
		Logger:         logger,
		ChunkSize:      settings.Migrate.ChunkSize,
		MaxQueueSize:   settings.Migrate.MaxQueueSize,
		CapacityMargin: settings.Migrate.CapacityMargin,
		IssueLogDir:    settings.Migrate.LogDir,
		DryRun:         flags.dryRun,
		SkipLinking:    flags.skipLinking,
		Verbose:        settings.Main.Verbose,
		Output:         out,
	})

	result, err := migrator.Run(ctx, selector, flags.limit)
	metrics.LogSummary(logger)
	if result != nil {
		fmt.Fprintln(out, result.Summary())
		fmt.Fprintf(out, "Conversion issues logged to %s\n", result.IssueLogPath)
	}
	return err
}
