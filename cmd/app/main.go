package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"

	"github.com/maloquacious/embedsvc/internal/config"
	"github.com/maloquacious/embedsvc/internal/greeting"
	"github.com/maloquacious/embedsvc/internal/host"
	"github.com/maloquacious/embedsvc/internal/logger"
	"github.com/maloquacious/embedsvc/internal/store"
	"github.com/maloquacious/embedsvc/internal/store/sqlite"
)

var (
	version   = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}
	buildDate = ""
)

var (
	configPath string
	exitAfter  time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "app",
		Short:        "Desktop host with an embedded loopback HTTP service",
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Initialize the store and run the embedded service until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().DurationVar(&exitAfter, "exit-after", 0, "optional runtime; if set, the host shuts down after this duration (testing)")

	greetCmd := &cobra.Command{
		Use:   "greet NAME",
		Short: "Print the greeting the shell command returns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), greeting.Format(args[0]))
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}

	// db command group
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	dbCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the datastore and apply the configured seed policy",
		Args:  cobra.NoArgs,
		RunE:  runDBCreate,
	}
	dbVerifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the datastore schema; prints a JSON summary",
		Args:  cobra.NoArgs,
		RunE:  runDBVerify,
	}

	dbCmd.AddCommand(dbCreateCmd, dbVerifyCmd)
	rootCmd.AddCommand(serveCmd, greetCmd, versionCmd, dbCmd)
	return rootCmd
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(os.Stdout, cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// runServe starts the host and treats SIGINT/SIGTERM as the window being destroyed.
func runServe(cmd *cobra.Command, args []string) error {
	// Signals are captured before startup so an early interrupt still
	// fires the shutdown trigger and closes the store.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if exitAfter > 0 {
		log.Info("exit-after timer set: %s", exitAfter)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, exitAfter)
		defer cancel()
	}

	log.Info("embedsvc %s starting (data dir %s)", version.String(), cfg.DataDir)
	return serveUntil(ctx, host.New(*cfg, log), log)
}

// serveUntil starts h, waits for ctx to end, then stops h and waits for the drain.
func serveUntil(ctx context.Context, h *host.Host, log logger.Logger) error {
	if err := h.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	h.WindowDestroyed()

	if err := h.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func runDBCreate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := sqlite.Initialize(cfg.DataDir, sqlite.Options{Seed: cfg.Seed})
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.CountUsers(cmd.Context())
	if err != nil {
		return err
	}
	log.Info("db create: %s ready, %d user row(s)", s.Path(), n)
	return nil
}

type verifyReport struct {
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	State   string `json:"state"`
	Users   int    `json:"users"`
	Version string `json:"version"`
	Built   string `json:"buildDate,omitempty"`
}

func runDBVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	report := verifyReport{
		Path:    store.GetDBPath(cfg.DataDir),
		State:   store.StateMissing.String(),
		Version: version.String(),
		Built:   buildDate,
	}

	exists, err := store.CheckExists(cfg.DataDir)
	if err != nil {
		return err
	}
	report.Exists = exists

	if exists {
		s := sqlite.New(report.Path)
		if err := s.OpenReadOnly(); err != nil {
			return err
		}
		defer s.Close()

		state, err := s.CheckState()
		if err != nil {
			return err
		}
		report.State = state.String()
		if state == store.StateReady {
			if report.Users, err = s.CountUsers(cmd.Context()); err != nil {
				return err
			}
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.State != store.StateReady.String() {
		return fmt.Errorf("datastore not ready: %s", report.State)
	}
	return nil
}
