package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"demarcation-eraser/internal/app"
	"demarcation-eraser/internal/config"
	"demarcation-eraser/internal/demarcation"
	"demarcation-eraser/internal/logger"

	"github.com/urfave/cli/v2"
)

func main() {
	var application *app.Application

	cliApp := &cli.App{
		Name:    app.AppName,
		Usage:   "erase demarcation marks from scanned document pages",
		Version: app.AppVersion,
		Flags:   globalFlags(),

		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"), overridesFrom(c))
			if err != nil {
				return cli.Exit(err, 2)
			}

			log := logger.New(cfg.LogFormat, logger.ParseLevel(logLevel(c.String("log-level"), cfg)))

			application, err = app.NewApplication(cfg, log)
			if err != nil {
				return cli.Exit(err, 2)
			}

			values, err := config.ParseAssignments(c.StringSlice("set"))
			if err == nil {
				err = application.SetParameters(values)
			}
			if err != nil {
				application.Shutdown()
				return cli.Exit(err, 2)
			}

			application.HandleSignals()
			return nil
		},

		After: func(c *cli.Context) error {
			if application != nil {
				application.Shutdown()
			}
			return nil
		},

		Commands: []*cli.Command{
			{
				Name:  "algorithms",
				Usage: "list the available processors",
				Action: func(c *cli.Context) error {
					for _, name := range application.Algorithms() {
						fmt.Fprintln(c.App.Writer, name)
					}
					return nil
				},
			},
			{
				Name:      "remove",
				Aliases:   []string{"r"},
				Usage:     "clean one page",
				ArgsUsage: "IN OUT",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "preview",
						Aliases: []string{"p"},
						Usage:   "show the result and wait for a key",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("remove needs an input and an output path", 2)
					}
					if err := application.Remove(c.Args().Get(0), c.Args().Get(1), c.Bool("preview")); err != nil {
						return cli.Exit(err, 1)
					}
					return nil
				},
			},
			{
				Name:      "batch",
				Aliases:   []string{"b"},
				Usage:     "clean many pages",
				ArgsUsage: "IN...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out-dir",
						Aliases: []string{"o"},
						Usage:   "output directory; defaults to beside each input",
					},
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "output file name prefix",
					},
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"j"},
						Usage:   "pages processed at once; defaults to the CPU count",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("batch needs at least one input", 2)
					}

					summary, err := application.Batch(c.Args().Slice(), c.String("out-dir"), c.String("prefix"), c.Int("jobs"))
					if err != nil {
						return cli.Exit(err, 1)
					}
					for _, r := range summary.Results {
						status := "ok"
						if r.Err != nil {
							status = r.Err.Error()
						}
						fmt.Fprintf(c.App.Writer, "%s -> %s: %s\n", r.Input, r.Output, status)
					}
					if summary.Failed > 0 {
						return cli.Exit(fmt.Sprintf("%d of %d pages failed", summary.Failed, len(summary.Results)), 1)
					}
					return nil
				},
			},
			{
				Name:      "evaluate",
				Aliases:   []string{"e"},
				Usage:     "score the removal against a hand-cleaned page",
				ArgsUsage: "IN",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "truth",
						Aliases: []string{"t"},
						Usage:   "expected output page",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("evaluate needs one input path", 2)
					}

					m, err := application.Evaluate(c.Args().First(), c.String("truth"))
					if err != nil {
						return cli.Exit(err, 1)
					}

					encoder := json.NewEncoder(c.App.Writer)
					encoder.SetIndent("", "  ")
					return encoder.Encode(m.Fields())
				},
			},
		},
	}

	// Exit codes are resolved below so After still runs.
	cliApp.ExitErrHandler = func(*cli.Context, error) {}

	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)

		code := 1
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		os.Exit(code)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML config file",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "log level (debug, info, warn, error); defaults to LOG_LEVEL",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format (console, json)",
		},
		&cli.StringFlag{
			Name:    "algorithm",
			Aliases: []string{"a"},
			Usage:   "processor to run (remove, mask, overlay); see the algorithms command",
		},
		&cli.BoolFlag{
			Name:  "blur",
			Usage: "smooth the page before thresholding",
		},
		&cli.StringFlag{
			Name:  "retrieval",
			Usage: "contour retrieval mode (external, list)",
		},
		&cli.StringSliceFlag{
			Name:  "set",
			Usage: "override an algorithm parameter, as key=value (repeatable)",
		},
	}
}

// overrides holds the flags that replace config file values. A nil field
// was not given on the command line.
type overrides struct {
	logFormat *string
	algorithm *string
	blur      *bool
	retrieval *string
}

func overridesFrom(c *cli.Context) overrides {
	var o overrides
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}

	o.logFormat = str("log-format")
	o.algorithm = str("algorithm")
	o.retrieval = str("retrieval")
	if c.IsSet("blur") {
		v := c.Bool("blur")
		o.blur = &v
	}
	return o
}

// loadConfig reads path over the defaults when given, applies the flag
// overrides and validates the result.
func loadConfig(path string, o overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if o.logFormat != nil {
		cfg.LogFormat = *o.logFormat
	}
	if o.algorithm != nil {
		cfg.Algorithm = *o.algorithm
	}
	if o.blur != nil {
		cfg.Demarcation.Blur = *o.blur
	}
	if o.retrieval != nil {
		cfg.Demarcation.Retrieval = demarcation.Retrieval(*o.retrieval)
	}

	return cfg, cfg.Validate()
}

// logLevel prefers the flag, then LOG_LEVEL, then the config file.
func logLevel(flag string, cfg config.Config) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		return env
	}
	return cfg.LogLevel
}
