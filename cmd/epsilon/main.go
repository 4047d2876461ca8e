// Command epsilon opens a window and presents a hue-cycling clear colour
// through the frame scheduler.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mxplusb/epsilon/src/config"
)

func init() {
	// glfw and the presentation engine must stay on the main thread.
	runtime.LockOSThread()
}

type flags struct {
	config    string
	buffering int
	logLevel  string
	frames    uint64
	vsync     bool
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "epsilon",
		Short:         "Present frames to a window",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cfg, f.frames)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML or TOML config file")
	cmd.Flags().IntVar(&f.buffering, "buffering", 0, "swapchain images to request, at least 2")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().Uint64Var(&f.frames, "frames", 0, "exit after this many presented frames, 0 runs until closed")
	cmd.Flags().BoolVar(&f.vsync, "vsync", false, "present with strict FIFO")
	return cmd
}

// loadConfig reads the config file, lets explicitly set flags override it
// and validates the result once.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Read(f.config); err != nil {
			return cfg, err
		}
	}
	set := cmd.Flags().Changed
	if set("buffering") {
		cfg.Render.Buffering = f.buffering
	}
	if set("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if set("vsync") {
		cfg.Render.VSync = f.vsync
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "epsilon: %+v\n", err)
		os.Exit(1)
	}
}
