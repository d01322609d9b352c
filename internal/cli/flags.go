package cli

import (
	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/config"
)

// GlobalFlags are the persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath   string
	EnvFile      string
	DatabasePath string
	Verbose      bool
	JSONLogs     bool
}

// Register binds the flags to the command's persistent flag set
func (f *GlobalFlags) Register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.ConfigPath, "config", "", "config file (default is config.yaml, falling back to environment variables)")
	pf.StringVar(&f.EnvFile, "env-file", ".env", "dotenv file loaded before configuration")
	pf.StringVar(&f.DatabasePath, "db", "", "database path (overrides configuration)")
	pf.BoolVarP(&f.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&f.JSONLogs, "json-logs", false, "emit logs as JSON")
}

// LoadConfig resolves configuration and applies flag overrides. An explicit
// --config file must load; otherwise config.yaml is tried before the
// environment.
func (f *GlobalFlags) LoadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(f.EnvFile); err != nil {
		return nil, err
	}

	var cfg *config.Config
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}

	if f.DatabasePath != "" {
		cfg.Storage.DatabasePath = f.DatabasePath
	}
	if f.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	if f.JSONLogs {
		cfg.Observability.Logging.Format = "json"
	}
	return cfg, cfg.Validate()
}

// ServeFlags holds the flags of the serve command
type ServeFlags struct {
	Port          int
	WithScheduler bool
}

// Register binds the flags to the command
func (f *ServeFlags) Register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.Port, "port", 0, "port to listen on (overrides configuration)")
	cmd.Flags().BoolVar(&f.WithScheduler, "scheduler", false, "run reconciliation periodically (overrides configuration)")
}
