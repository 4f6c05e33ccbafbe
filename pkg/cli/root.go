// Package cli provides the command-line interface for Phantom
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phantomssr/phantom/pkg/config"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/types"
)

// CLI encapsulates the command-line interface and keeps its state out of
// package globals
type CLI struct {
	config    *Config
	rootCmd   *cobra.Command
	overrides *viper.Viper
	console   *logger.ConsoleLogger
	output    io.Writer
	errorOut  io.Writer
	logOutput io.Writer
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	return NewCLIWithOutput(cfg, os.Stdout, os.Stderr)
}

// NewCLIWithOutput creates a CLI with custom output writers. Logs go to
// errorOut as well.
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:    cfg,
		overrides: viper.New(),
		console:   logger.NewConsoleLogger(output, errorOut),
		output:    output,
		errorOut:  errorOut,
	}
	if output != os.Stdout {
		c.logOutput = errorOut
	}

	c.setupCommands()
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.Execute()
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

// Execute runs the CLI with os.Args
func Execute(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).ExecuteContext(context.Background(), os.Args[1:])
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "phantom",
		Short: "Server-side rendering that haunts your single page app",
		Long: `👻 Phantom - Server-side rendering for JavaScript single page apps

Phantom runs your server bundle in a pool of script engines, renders every
route of your app to static HTML, and re-renders when the bundle changes.`,

		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	c.rootCmd.SetOut(c.output)
	c.rootCmd.SetErr(c.errorOut)

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("👻 Phantom v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newRenderCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newStopCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: phantom.config.json or .yaml)")
	flags.StringVar(&c.config.ProjectRoot, "root", ".", "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	flags.Int("engines", 0, "number of render engines (overrides the config file)")
	flags.String("output", "", "prerender output directory (overrides the config file)")

	// Flags share the override keys of PHANTOM_* variables
	_ = c.overrides.BindPFlag("engines", flags.Lookup("engines"))
	_ = c.overrides.BindPFlag("outputDir", flags.Lookup("output"))
}

// loadConfig finds, parses and validates the configuration
func (c *CLI) loadConfig() (*types.RendererConfig, error) {
	path, err := c.configPath()
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewManagerWithViper(c.overrides).LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *CLI) configPath() (string, error) {
	if c.config.ConfigFile != "" {
		return c.config.ConfigFile, nil
	}
	return config.FindConfig(c.config.ProjectRoot)
}

// newLogger creates the structured logger. An explicit -v wins over the
// config file's logLevel.
func (c *CLI) newLogger(cfg *types.RendererConfig) logger.Logger {
	level := c.config.Verbosity
	if flag := c.rootCmd.PersistentFlags().Lookup("verbosity"); flag != nil && !flag.Changed && cfg != nil && cfg.LogLevel != "" {
		level = string(cfg.LogLevel)
	}

	logFile := ""
	if cfg != nil {
		logFile = c.config.resolve(cfg.LogFile)
	}

	if c.logOutput != nil {
		return logger.CreateLoggerWithOutput(logFile, level, c.logOutput)
	}
	return logger.CreateLogger(logFile, level)
}

// Helper methods for console output

func (c *CLI) printSuccess(message string) {
	c.console.Success(message)
}

func (c *CLI) printError(message string) {
	c.console.Error(message)
}

func (c *CLI) printInfo(message string) {
	c.console.Info(message)
}

func (c *CLI) printWarning(message string) {
	c.console.Warn(message)
}
