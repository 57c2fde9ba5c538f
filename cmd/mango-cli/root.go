package main

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/core"
)

// commandContext opens the application once, on the first command that
// needs it.
type commandContext struct {
	configPath string
	appOnce    sync.Once
	app        *core.App
	appErr     error
	owned      bool
}

// newCommandContext wraps app. A nil app is opened on first use from the
// --config file (or config.yml) and the MANGO_ environment.
func newCommandContext(app *core.App) *commandContext {
	return &commandContext{app: app}
}

func (c *commandContext) ensureApp() (*core.App, error) {
	c.appOnce.Do(func() {
		if c.app != nil {
			return
		}
		c.app, c.appErr = core.NewFromFile(c.configPath)
		c.owned = c.appErr == nil
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.owned && c.app != nil {
		c.app.Close()
	}
}

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mango-cli",
		Short:         "Inspect and maintain tracked manga bookmarks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.configPath, "config", "", "Configuration file (default ./config.yml)")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	for _, cmd := range newMaskCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newAckCommand(ctx))

	return rootCmd
}

func parseBookmarkID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid bookmark id %q", arg)
	}
	return id, nil
}

func parseNumber(arg string) (chapter.Number, error) {
	return chapter.ParseNumber(arg)
}
