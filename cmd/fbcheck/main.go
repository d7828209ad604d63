package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chmdznr/framer-bandwidth-check/pkg/version"
)

func main() {
	app := &cli.App{
		Name:    "fbcheck",
		Usage:   "Estimate page weight and monthly bandwidth of a Framer project",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: fbcheck.yaml)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the SQLite database (overrides storage.db_path)",
			},
			&cli.StringFlag{
				Name:    "project",
				Usage:   "Project name the scans are stored under",
				Value:   defaultProject,
				EnvVars: []string{"FBCHECK_PROJECT"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			setupLogging(c.Bool("debug"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Scan a project snapshot and store the analysis",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "snapshot",
						Usage:    "Path to the exported node graph (JSON or YAML)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "no-optimization",
						Usage: "Estimate bytes without the host's automatic image optimization",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of parallel estimate workers (overrides scan.workers)",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address while scanning",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "Hide the progress bar",
					},
				},
				Action: runScan,
			},
			{
				Name:  "report",
				Usage: "Show page weights and recommendations of the last scan",
				Flags: []cli.Flag{
					formatFlag(),
					&cli.StringFlag{
						Name:  "breakpoint",
						Usage: "Breakpoint of the page table (desktop, tablet, mobile)",
						Value: "desktop",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include ignored recommendations",
					},
				},
				Action: showReport,
			},
			{
				Name:  "history",
				Usage: "List stored scans",
				Flags: []cli.Flag{
					formatFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of scans to list",
						Value: 10,
					},
				},
				Action: showHistory,
			},
			{
				Name:  "export",
				Usage: "Export the last scan to a spreadsheet",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "xlsx",
						Usage:    "Output workbook path",
						Required: true,
					},
				},
				Action: exportScan,
			},
			{
				Name:   "ignore",
				Usage:  "Hide a recommendation from reports",
				Flags:  []cli.Flag{recFlag()},
				Action: ignoreRecommendation,
			},
			{
				Name:   "restore",
				Usage:  "Show an ignored recommendation again",
				Flags:  []cli.Flag{recFlag()},
				Action: restoreRecommendation,
			},
			{
				Name:  "bandwidth",
				Usage: "Project monthly bandwidth from the last scan",
				Flags: []cli.Flag{
					formatFlag(),
					&cli.Int64Flag{
						Name:  "pageviews",
						Usage: "Monthly pageviews (overrides traffic.monthly_pageviews)",
					},
					&cli.Float64Flag{
						Name:  "pages-per-visit",
						Usage: "Average pages per visit (overrides traffic.pages_per_visit)",
					},
					&cli.StringFlag{
						Name:  "breakpoint",
						Usage: "Breakpoint the traffic is measured at (overrides traffic.breakpoint)",
					},
					&cli.BoolFlag{
						Name:    "interactive",
						Aliases: []string{"i"},
						Usage:   "Adjust the assumptions with the arrow keys",
					},
				},
				Action: showBandwidth,
			},
			{
				Name:  "cms",
				Usage: "Manage manual CMS collection estimates",
				Subcommands: []*cli.Command{
					{
						Name:  "set",
						Usage: "Set the estimate of a collection",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "collection", Usage: "Collection id", Required: true},
							&cli.Int64Flag{Name: "avg-bytes", Usage: "Average bytes per item", Required: true},
							&cli.IntFlag{Name: "items", Usage: "Number of items loaded per visit", Required: true},
						},
						Action: setCMSEstimate,
					},
					{
						Name:   "list",
						Usage:  "List collection estimates",
						Flags:  []cli.Flag{formatFlag()},
						Action: listCMSEstimates,
					},
					{
						Name:  "remove",
						Usage: "Remove the estimate of a collection",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "collection", Usage: "Collection id", Required: true},
						},
						Action: removeCMSEstimate,
					},
				},
			},
			{
				Name:      "settings",
				Usage:     "Read or change stored settings",
				ArgsUsage: "[get|set] [key] [value]",
				Action:    manageSettings,
			},
			{
				Name:  "select",
				Usage: "Select the node behind a recommendation",
				Flags: []cli.Flag{
					recFlag(),
					&cli.StringFlag{
						Name:     "snapshot",
						Usage:    "Path to the exported node graph",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "selection-file",
						Usage: "Where the selected ids are written (default: <snapshot>.selection.json)",
					},
				},
				Action: selectNode,
			},
			{
				Name:  "optimize",
				Usage: "Resize and re-encode the image behind a recommendation",
				Flags: []cli.Flag{
					recFlag(),
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (webp, jpg, png, avif)",
						Value: "webp",
					},
				},
				Action: optimizeAsset,
			},
			{
				Name:   "optimized",
				Usage:  "List optimized assets",
				Flags:  []cli.Flag{formatFlag()},
				Action: listOptimized,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					_, err := c.App.Writer.Write([]byte("fbcheck " + version.String() + "\n"))
					return err
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func setupLogging(debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"o"},
		Usage:   "Output format (table, json, yaml)",
		Value:   "table",
	}
}

func recFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "rec",
		Usage:    "Recommendation id",
		Required: true,
	}
}
