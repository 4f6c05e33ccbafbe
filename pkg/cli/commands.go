package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phantomssr/phantom/pkg/config"
	"github.com/phantomssr/phantom/pkg/process"
	"github.com/phantomssr/phantom/pkg/state"
	"github.com/phantomssr/phantom/pkg/types"
	"github.com/phantomssr/phantom/pkg/validation"
)

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  `Check that the configuration file is valid and its assets are in place. Every problem is listed, not only the first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate()
		},
	}
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running renderer",
		Long:  `Display the state of the renderer started by 'phantom watch' in this project, read from .phantom/state.json.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus()
		},
	}
}

func (c *CLI) newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running 'phantom watch'",
		Long:  `Send SIGTERM to the watch process of this project and wait until it has drained its queue and exited.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStop()
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Phantom",
		Long:  `Print the version number of Phantom`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "👻 Phantom v%s\n", c.config.Version)
		},
	}
}

// Implementation functions

func (c *CLI) runValidate() error {
	path, err := c.configPath()
	if err != nil {
		return err
	}

	manager := config.NewManagerWithViper(c.overrides)
	cfg, err := manager.ParseConfig(path)
	if err != nil {
		return err
	}
	manager.ApplyOverrides(cfg)
	cfg.ApplyDefaults()

	result := validation.NewConfigValidator(c.config.ProjectRoot).Validate(cfg)

	for _, issue := range result.Errors {
		message := fmt.Sprintf("%s: %s", issue.Field, issue.Message)
		switch issue.Level {
		case validation.ValidationLevelError:
			c.printError(message)
		case validation.ValidationLevelWarning:
			c.printWarning(message)
		default:
			c.printInfo(message)
		}
	}

	if !result.Valid {
		return fmt.Errorf("%s is invalid: %w", path, result.FirstError())
	}

	c.printSuccess(fmt.Sprintf("%s is valid: %d engine(s), %d route(s)", path, cfg.Engines, len(cfg.Routes)))
	return nil
}

func (c *CLI) runStatus() error {
	status, err := state.Read(c.config.ProjectRoot)
	if errors.Is(err, os.ErrNotExist) {
		c.printWarning("Phantom is not running in this project")
		return nil
	}
	if err != nil {
		return err
	}

	running := process.IsAlive(status.ProcessID) && !status.IsStale(time.Now())

	stateText := string(status.State)
	switch {
	case status.ProcessID == 0:
		stateText = color.WhiteString(string(types.RendererStateStopped))
	case !running:
		stateText = color.RedString("not running (stale state file)")
	case status.State == types.RendererStateRunning:
		stateText = color.GreenString(stateText)
	default:
		stateText = color.YellowString(stateText)
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STATE\t%s\n", stateText)
	fmt.Fprintf(w, "PID\t%d\n", status.ProcessID)
	fmt.Fprintf(w, "ENGINES\t%d\n", status.Engines)
	fmt.Fprintf(w, "GENERATION\t%d\n", status.Generation)
	fmt.Fprintf(w, "STARTED\t%s\n", formatTime(status.StartedAt))
	fmt.Fprintf(w, "HEARTBEAT\t%s\n", formatTime(status.Heartbeat))
	fmt.Fprintf(w, "RENDERS\t%d (%d failed)\n", status.Renders, status.Failures)
	if status.LastReload != nil {
		fmt.Fprintf(w, "LAST RELOAD\t%s at %s (%dms)\n",
			status.LastReload.Result,
			formatTime(status.LastReload.Timestamp),
			status.LastReload.DurationMs)
	}
	if status.LastError != "" {
		fmt.Fprintf(w, "LAST ERROR\t%s\n", status.LastError)
	}
	return w.Flush()
}

func (c *CLI) runStop() error {
	status, err := state.Read(c.config.ProjectRoot)
	if errors.Is(err, os.ErrNotExist) {
		c.printWarning("Phantom is not running in this project")
		return nil
	}
	if err != nil {
		return err
	}

	if status.ProcessID == 0 {
		c.printInfo("Phantom is already stopped")
		return nil
	}
	if !process.IsAlive(status.ProcessID) {
		c.printWarning(fmt.Sprintf("Process %d is gone, removing stale state file", status.ProcessID))
		if err := os.Remove(state.FilePath(c.config.ProjectRoot)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove state file: %w", err)
		}
		return nil
	}

	c.printInfo(fmt.Sprintf("Stopping Phantom (pid %d)...", status.ProcessID))
	if err := process.Terminate(status.ProcessID, c.config.ShutdownTimeout); err != nil {
		return fmt.Errorf("failed to stop pid %d: %w", status.ProcessID, err)
	}

	c.printSuccess("Phantom stopped")
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("15:04:05")
}
