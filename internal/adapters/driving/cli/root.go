// Package cli implements the askdocs command line.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/askdocs/internal/core/ports/driving"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// Services are the driving ports commands run against.
type Services struct {
	Query     driving.QueryService
	Ingestion driving.IngestionService
	Settings  driving.SettingsService

	// Close releases the services. May be nil.
	Close func()
}

// LoadRequest describes what a command needs built.
type LoadRequest struct {
	// ConfigPath is the --config flag value.
	ConfigPath string

	// Pipeline requests the query and ingestion services. When false only
	// settings are loaded.
	Pipeline bool

	// Generator requests an answer generator.
	Generator bool
}

// Loader builds the services a command needs.
type Loader func(ctx context.Context, req LoadRequest) (*Services, error)

// Command annotations declaring which services a command needs.
const (
	needsAnnotation = "askdocs.needs"
	needsSettings   = "settings"
	needsPipeline   = "pipeline"
	needsAnswers    = "answers"
)

// Version is set at build time.
var version = "dev"

// Services used by commands.
var (
	queryService     driving.QueryService
	ingestionService driving.IngestionService
	settingsService  driving.SettingsService
	closeServices    func()
	loader           Loader
)

// Global flags.
var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "askdocs",
	Short: "Ask questions about your documents",
	Long: `askdocs ingests documents into a vector index and answers questions
about them with a language model, streaming the answer as it is generated.

Configuration is read from ~/.askdocs/config.toml unless --config is given.
Variables in .env and .env.local are loaded before the config is read.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepareServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file or directory (default ~/.askdocs)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetLoader sets the function used to build services before a command runs.
func SetLoader(l Loader) {
	loader = l
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context, which stops any answer being streamed.
func Execute() error {
	loadEnvFiles(".env.local", ".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	releaseServices()
	return err
}

// loadEnvFiles loads the files that exist. Earlier files win because
// godotenv never overrides a variable that is already set.
func loadEnvFiles(names ...string) {
	for _, name := range names {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			logger.Warn("load %s: %v", name, err)
		}
	}
}

func prepareServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	needs := cmd.Annotations[needsAnnotation]
	if needs == "" || loader == nil {
		return nil
	}

	svcs, err := loader(cmd.Context(), LoadRequest{
		ConfigPath: configPath,
		Pipeline:   needs != needsSettings,
		Generator:  needs == needsAnswers,
	})
	if err != nil {
		return err
	}
	if svcs == nil {
		return errors.New("no services were built")
	}

	queryService = svcs.Query
	ingestionService = svcs.Ingestion
	settingsService = svcs.Settings
	closeServices = svcs.Close
	return nil
}

func releaseServices() {
	if closeServices != nil {
		closeServices()
		closeServices = nil
	}
}

func needs(what string) map[string]string {
	return map[string]string{needsAnnotation: what}
}
