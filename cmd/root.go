// Package cmd assembles the cdf-tk command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cognitedata/cdf-tk/cmd/migrate"
	"github.com/cognitedata/cdf-tk/cmd/version"
	"github.com/cognitedata/cdf-tk/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cdf-tk",
		Short: "Cognite Data Fusion toolkit CLI",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		migrate.Command(settings),
		version.Command(),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines the global flags, defaulting each from viper so config
// file and environment values apply unless the flag is set explicitly.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&settings.Main.Debug, "debug", "d", viper.GetBool("main.debug"), "Enable debug output")
	pf.BoolVarP(&settings.Main.Verbose, "verbose", "v", viper.GetBool("main.verbose"), "Echo per-chunk progress while migrating")
	pf.StringVar(&settings.CDF.Cluster, "cluster", viper.GetString("cdf.cluster"), "CDF cluster the project lives in, e.g. westeurope-1")
	pf.StringVar(&settings.CDF.Project, "project", viper.GetString("cdf.project"), "CDF project name")
	pf.StringVar(&settings.CDF.BaseURL, "base-url", viper.GetString("cdf.baseurl"), "API base URL, overrides the cluster-derived URL")
	pf.StringVar(&settings.CDF.TokenEnv, "token-env", viper.GetString("cdf.tokenenv"), "Environment variable holding the bearer token")

	if err := viper.BindPFlags(pf); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
