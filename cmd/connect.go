package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sca-tools/bdreport/internal/log"
	"github.com/sca-tools/bdreport/pkg/hub"
	"github.com/sca-tools/bdreport/pkg/semver"
)

// minServerVersion is the oldest server release known to expose the
// matched-files and vulnerability-detail endpoints the enrichment uses.
const minServerVersion = "2022.2.0"

// newConnectCmd creates the connectivity smoke-test command.
func newConnectCmd() *cobra.Command {
	connectCmd := &cobra.Command{
		Use:   "connect",
		Short: "Verify that the Black Duck configuration and credentials work.",
		Long: `connect resolves the server configuration, authenticates, and lists a few
projects to prove the credentials have read access before a report run.`,
		RunE: runConnect,
	}
	connectCmd.Flags().Bool("save-config", false,
		"Write the resolved configuration to "+hub.RestConfigFile+" for later runs")
	return connectCmd
}

func runConnect(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	logger := log.NewLogger(ctx)
	out := cmd.OutOrStdout()

	cfg, err := hub.LoadConfig(".")
	if err != nil {
		fmt.Fprintln(out, "No usable Black Duck configuration found.")
		fmt.Fprintln(out, "Either set environment variables:")
		fmt.Fprintln(out, `  export BLACKDUCK_URL="https://your-server.com"`)
		fmt.Fprintln(out, `  export BLACKDUCK_API_TOKEN="your-token"`)
		fmt.Fprintf(out, "or create %s next to the binary:\n", hub.RestConfigFile)
		fmt.Fprintln(out, `  {"baseurl": "https://your-server.com", "api_token": "your-token", "timeout": 120, "trust_cert": true}`)
		return err
	}

	fmt.Fprintf(out, "Configuration source: %s\n", cfg.Source)
	fmt.Fprintf(out, "Server: %s\n", cfg.BaseURL)

	client := hub.New(cfg, nil, logger)

	user, err := client.CurrentUser(ctx)
	if err != nil {
		fmt.Fprintln(out, "Authentication failed. Check that the API token is valid, not expired,")
		fmt.Fprintln(out, "and has read permission on the server.")
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Fprintf(out, "Authenticated as: %s\n", user.UserName)

	if serverVersion, verr := client.CurrentVersion(ctx); verr == nil {
		fmt.Fprintf(out, "Server version: %s\n", serverVersion)
		if ok, serr := semver.AtLeast(serverVersion, minServerVersion); serr == nil && !ok {
			fmt.Fprintf(out, "Warning: server version %s is older than %s; enhanced reports may be unavailable.\n",
				serverVersion, minServerVersion)
		}
	} else {
		logger.Warn("could not determine server version", zap.Error(verr))
	}

	projects, err := client.Projects(ctx, 5)
	if err != nil {
		return fmt.Errorf("project listing failed: %w", err)
	}
	fmt.Fprintf(out, "Accessible projects: %d\n", projects.TotalCount)
	for _, p := range projects.Items {
		fmt.Fprintf(out, "  - %s\n", p.Name)
	}
	if projects.TotalCount == 0 {
		fmt.Fprintln(out, "No projects visible; the token may lack project read access.")
	}

	if save, _ := cmd.Flags().GetBool("save-config"); save { //nolint:errcheck
		if cfg.Source == hub.SourceEnvironment {
			if err := hub.WriteRestConfig(cfg, "."); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s from environment variables.\n", hub.RestConfigFile)
		} else {
			fmt.Fprintf(out, "Configuration already comes from %s; nothing to save.\n", hub.RestConfigFile)
		}
	}

	fmt.Fprintln(out, "Connection test successful.")
	return nil
}
