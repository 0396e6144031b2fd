// Command coreirc inspects and transforms binary IR modules.
//
// Usage:
//
//	coreirc [global options] command [command options] <file.cir>...
//
// Examples:
//
//	coreirc dis shader.cir                          # Print the disassembly
//	coreirc validate *.cir                          # Validate modules
//	coreirc run --config pipeline.toml shader.cir   # Run a pass pipeline
//	coreirc run --passes merge_return,robustness --generator cir --out build shader.cir
//	coreirc stats *.cir                             # Summarize modules
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"gopkg.in/urfave/cli.v1"
)

const coreircVersion = "0.1.0-dev"

var (
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug",
		Value: 2,
	}
	jobsFlag = cli.IntFlag{
		Name:  "jobs",
		Usage: "Maximum number of files processed concurrently",
		Value: runtime.NumCPU(),
	}
	colorFlag = cli.StringFlag{
		Name:  "color",
		Usage: "Highlight output: auto, always or never",
		Value: "auto",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML pipeline configuration file",
	}
	passesFlag = cli.StringFlag{
		Name:  "passes",
		Usage: "Comma-separated pass names, replacing the passes of --config",
	}
	generatorFlag = cli.StringFlag{
		Name:  "generator",
		Usage: "Generator to run after the pipeline (text or cir)",
		Value: "text",
	}
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "Directory receiving one output file per input (default: stdout)",
	}
	entryPointFlag = cli.StringFlag{
		Name:  "entry-point",
		Usage: "Entry point that must exist in every module",
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "coreirc"
	app.Usage = "inspect and transform binary IR modules"
	app.Version = coreircVersion
	app.Flags = []cli.Flag{verbosityFlag, jobsFlag, colorFlag}
	app.Before = func(ctx *cli.Context) error {
		slog.SetDefault(newLogger(ctx.GlobalInt(verbosityFlag.Name)))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Action:    disCommand,
			Name:      "dis",
			Usage:     "Print the disassembly of modules",
			ArgsUsage: "<file.cir>...",
			Category:  "INSPECTION COMMANDS",
		},
		{
			Action:    validateCommand,
			Name:      "validate",
			Usage:     "Validate modules",
			ArgsUsage: "<file.cir>...",
			Category:  "INSPECTION COMMANDS",
			Description: `
The validate command checks every module and reports each validation error.
It fails if any module is invalid.`,
		},
		{
			Action:    statsCommand,
			Name:      "stats",
			Usage:     "Print a table of module statistics",
			ArgsUsage: "<file.cir>...",
			Category:  "INSPECTION COMMANDS",
		},
		{
			Action:    runCommand,
			Name:      "run",
			Usage:     "Run a pass pipeline and a generator over modules",
			ArgsUsage: "<file.cir>...",
			Flags:     []cli.Flag{configFlag, passesFlag, generatorFlag, outFlag, entryPointFlag},
			Category:  "TRANSFORM COMMANDS",
			Description: `
The run command decodes each module, runs the configured passes over it and
hands the result to the generator. Identical inputs under the same
configuration are processed once.`,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger returns a text logger on stderr for a verbosity level.
func newLogger(verbosity int) *slog.Logger {
	var level slog.Level
	switch {
	case verbosity <= 0:
		level = slog.LevelError + 4
	case verbosity == 1:
		level = slog.LevelError
	case verbosity == 2:
		level = slog.LevelWarn
	case verbosity == 3:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
