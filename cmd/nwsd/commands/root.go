// Package commands implements the nwsd command line, grounded on
// marmos91-dittofs's cmd/dittofs/commands package layout (a package-level
// rootCmd wired up from init, Execute called once from main.main).
package commands

import (
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bigcomputing/nws/internal/metrics"
	"github.com/bigcomputing/nws/internal/nwslog"
	"github.com/bigcomputing/nws/internal/protocol"
	"github.com/bigcomputing/nws/internal/registry"
	"github.com/bigcomputing/nws/internal/wire"
)

var (
	// Version is the build-time version string, set via ldflags (spec §10).
	Version = "dev"

	flagBind           string
	flagPort           int
	flagWebPort        int
	flagMaxConns       int
	flagSpillThreshold int64
	flagSpillDir       string
	flagTLSCert        string
	flagTLSKey         string
	flagLogLevel       string
	flagLogFile        string
)

var rootCmd = &cobra.Command{
	Use:     "nwsd",
	Short:   "NetWorkSpaces coordination server",
	Version: Version,
	Long: `nwsd is the NWS coordination server: it arbitrates workspaces of
shared variables and blocking fetch/find operations across any number of
client connections.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.Flags().StringVar(&flagBind, "interface", "", "interface to bind (all interfaces if empty)")
	rootCmd.Flags().IntVar(&flagPort, "port", 8765, "port to listen for client connections on")
	rootCmd.Flags().IntVar(&flagWebPort, "web-port", 0, "port to serve /metrics, /healthz, /debug/log on (disabled if 0)")
	rootCmd.Flags().IntVar(&flagMaxConns, "max-conns", 0, "maximum concurrent client connections (unbounded if 0)")
	rootCmd.Flags().Int64Var(&flagSpillThreshold, "spill-threshold", 65536, "byte size at or above which a stored value spills to a temp file")
	rootCmd.Flags().StringVar(&flagSpillDir, "spill-dir", "", "directory for spilled value temp files (OS default if empty)")
	rootCmd.Flags().StringVar(&flagTLSCert, "tls-cert", "", "TLS certificate file; enables the SSL handshake option")
	rootCmd.Flags().StringVar(&flagTLSKey, "tls-key", "", "TLS private key file")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error, fatal")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "log file path (stderr if empty)")
}

// Execute runs the nwsd command line. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func runServe(cmd *cobra.Command, args []string) error {
	level, err := nwslog.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}

	var sink io.Writer = os.Stderr
	if flagLogFile != "" {
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open -log-file: %w", err)
		}
		defer f.Close()
		sink = f
	}
	nwslog.AddLogger("stderr", sink, level, flagLogFile == "")
	defer nwslog.DelLogger("stderr")

	var tlsConfig *tls.Config
	if flagTLSCert != "" || flagTLSKey != "" {
		if flagTLSCert == "" || flagTLSKey == "" {
			return fmt.Errorf("-tls-cert and -tls-key must be given together")
		}
		cert, err := tls.LoadX509KeyPair(flagTLSCert, flagTLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	tmp, err := os.CreateTemp("", "nwsd")
	if err != nil {
		return fmt.Errorf("failed to create process-unique temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)
	basename := filepath.Base(tmpPath)

	reg := registry.New(basename)
	mtr := metrics.New()

	stop := make(chan struct{})
	var stopOnce sync.Once
	srv := protocol.NewServer(reg, protocol.Config{
		Spill: wire.SpillConfig{
			Threshold: wire.EffectiveThreshold(flagSpillThreshold),
			Dir:       flagSpillDir,
			Prefix:    "nws",
		},
		TLSConfig: tlsConfig,
		WebPort:   flagWebPort,
		MaxConns:  flagMaxConns,
		Metrics:   mtr,
	}, func() {
		stopOnce.Do(func() { close(stop) })
	})

	addr := fmt.Sprintf("%s:%d", flagBind, flagPort)
	if err := srv.Listen(addr); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	nwslog.Info("nwsd: listening for clients on %s", addr)

	var webServer *webListener
	if flagWebPort != 0 {
		webServer, err = startWebListener(flagBind, flagWebPort, mtr, clientStatsFormatter(reg))
		if err != nil {
			return fmt.Errorf("failed to start web listener: %w", err)
		}
		nwslog.Info("nwsd: serving metrics/healthz/debug on %s:%d", flagBind, flagWebPort)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		nwslog.Info("nwsd: received %v, shutting down", sig)
	case <-stop:
		nwslog.Info("nwsd: deadman connection closed, shutting down")
	}

	srv.Close()
	if webServer != nil {
		webServer.Close()
	}
	reg.Shutdown()
	return nil
}
