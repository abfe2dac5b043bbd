// Package commands implements the nwsclient command line, laid out the
// same way as cmd/nwsd/commands: a package-level rootCmd wired up from
// init, Execute called once from main.main.
package commands

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigcomputing/nws/pkg/nwsclient"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

var (
	// Version is the build-time version string, set via ldflags.
	Version = "dev"

	flagHost          string
	flagPort          int
	flagWorkspace     string
	flagOwnerLabel    string
	flagTLS           bool
	flagTLSSkipVerify bool
	flagDeadman       bool
	flagMaxElapsed    int
)

var rootCmd = &cobra.Command{
	Use:     "nwsclient",
	Short:   "interactive NWS client",
	Version: Version,
	Long: `nwsclient dials an nwsd coordination server and drops into an
interactive command line for declaring variables, storing and fetching
values, and managing workspaces.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAttach,
}

func init() {
	rootCmd.Flags().StringVar(&flagHost, "host", "localhost", "nwsd host to connect to")
	rootCmd.Flags().IntVar(&flagPort, "port", 8765, "nwsd port to connect to")
	rootCmd.Flags().StringVar(&flagWorkspace, "workspace", "", "workspace to open on connect (skipped if empty)")
	rootCmd.Flags().StringVar(&flagOwnerLabel, "owner", "", "owner label to pass when opening --workspace")
	rootCmd.Flags().BoolVar(&flagTLS, "tls", false, "negotiate the SSL option and upgrade the connection to TLS")
	rootCmd.Flags().BoolVar(&flagTLSSkipVerify, "tls-skip-verify", false, "skip server certificate verification (testing only)")
	rootCmd.Flags().BoolVar(&flagDeadman, "deadman", false, "flag this connection so the server exits when it disconnects")
	rootCmd.Flags().IntVar(&flagMaxElapsed, "max-elapsed", 0, "seconds to keep retrying the initial connection (0 retries forever)")
}

// Execute runs the nwsclient command line. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func runAttach(cmd *cobra.Command, args []string) error {
	opts := nwsclient.DefaultOptions()
	opts.Deadman = flagDeadman
	if flagMaxElapsed > 0 {
		opts.MaxElapsed = secondsToDuration(flagMaxElapsed)
	}
	if flagTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: flagTLSSkipVerify, ServerName: flagHost}
	}

	addr := fmt.Sprintf("%s:%d", flagHost, flagPort)
	conn, err := nwsclient.Dial(addr, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if flagWorkspace != "" {
		if err := conn.OpenWorkspace(flagWorkspace, flagOwnerLabel, false, true); err != nil {
			return fmt.Errorf("failed to open workspace %s: %w", flagWorkspace, err)
		}
	}

	attach(conn, addr, flagWorkspace, flagDeadman)
	return nil
}
