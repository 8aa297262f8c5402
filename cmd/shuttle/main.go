// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "shuttle",
		Usage: "Bulk migration of record collections and their vectors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Copy one collection into another",
				Action: migrateCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Source collection",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Destination collection",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Drop every record in the destination before migrating",
					},
					&cli.IntFlag{
						Name:  "dimension",
						Usage: "Reject vectors whose length differs (0 disables the check)",
					},
				}, engineFlags()...),
			},
			{
				Name:   "export",
				Usage:  "Write a collection to an S3 bucket as JSON Lines objects",
				Action: exportCommand,
				Flags: append(append([]cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Collection to export",
						Required: true,
					},
				}, s3Flags()...), engineFlags()...),
			},
			{
				Name:   "import",
				Usage:  "Load JSON Lines objects from an S3 bucket into a collection",
				Action: importCommand,
				Flags: append(append([]cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Collection to import into",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Drop every record in the collection before importing",
					},
				}, s3Flags()...), engineFlags()...),
			},
			{
				Name:   "verify",
				Usage:  "Check that every source record exists intact in the destination",
				Action: verifyCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Source collection",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Destination collection",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "vectors",
						Usage: "Compare vectors as well as properties",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Number of records looked up per destination read",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of destination reads in flight",
						Value: 4,
					},
				},
			},
			{
				Name:   "count",
				Usage:  "Count the records of one or every collection",
				Action: countCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:    "collection",
						Aliases: []string{"c"},
						Usage:   "Collection to count (all collections if omitted)",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Fill a collection with synthetic records for trying migrations",
				Action: seedCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Collection to fill",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "count",
						Aliases: []string{"n"},
						Usage:   "Number of records to write",
						Value:   1000,
					},
					&cli.IntFlag{
						Name:  "dimension",
						Usage: "Vector length (0 writes records without vectors)",
						Value: 8,
					},
					&cli.StringFlag{
						Name:  "src",
						Usage: "File of titles, one per line (built-in titles if omitted)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records written per batch",
						Value: 100,
					},
				},
			},
		},
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
}

// engineFlags are the flags of every command that runs the migration engine.
func engineFlags() []cli.Flag {
	defaults := migrate.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of records sent to the destination per batch",
			Value: defaults.BatchSize,
		},
		&cli.IntFlag{
			Name:  "max-items",
			Usage: "Stop after reading N records (-1 for no limit)",
			Value: migrate.Unlimited,
		},
		&cli.BoolFlag{
			Name:  "include-vectors",
			Usage: "Carry vectors along with properties",
			Value: defaults.IncludeVectors,
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Maximum batch writes in flight (1 sequential, -1 unbounded)",
			Value: defaults.ConcurrencyLimit,
		},
		&cli.StringFlag{
			Name:  "error-policy",
			Usage: "What a failed batch does to the run (fail-fast, skip-and-continue)",
			Value: defaults.ErrorPolicy.String(),
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Retry attempts for a batch whose write failed",
			Value: defaults.MaxRetries,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: defaults.RetryDelay,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N records",
			Value: defaults.ReportInterval,
		},
	}
}

func s3Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "bucket",
			Usage:    "Bucket name",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "Key prefix of the batch objects",
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "Custom S3-compatible endpoint URL",
			EnvVars: []string{"AWS_ENDPOINT_URL"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Bucket region",
			Value:   "us-east-1",
			EnvVars: []string{"AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "access-key",
			Usage:   "Access key (default credential chain if omitted)",
			EnvVars: []string{"AWS_ACCESS_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "secret-key",
			Usage:   "Secret key",
			EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
		},
	}
}

// engineConfig builds and validates a migrate.Config from the engine flags.
func engineConfig(c *cli.Context) (*migrate.Config, error) {
	policy, err := core.ParseErrorPolicy(c.String("error-policy"))
	if err != nil {
		return nil, err
	}

	config := &migrate.Config{
		BatchSize:        c.Int("batch-size"),
		MaxItems:         c.Int("max-items"),
		IncludeVectors:   c.Bool("include-vectors"),
		ConcurrencyLimit: c.Int("concurrency"),
		ErrorPolicy:      policy,
		MaxRetries:       c.Int("max-retries"),
		RetryDelay:       c.Duration("retry-delay"),
		ReportInterval:   c.Int("report-interval"),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// printSummary writes a human-readable run summary.
func printSummary(w io.Writer, summary *core.RunSummary) {
	fmt.Fprintf(w, "State: %s\n", summary.State)
	fmt.Fprintf(w, "Attempted: %d  Succeeded: %d  Failed: %d  Skipped: %d\n",
		summary.TotalAttempted, summary.TotalSucceeded, summary.TotalFailed, summary.TotalSkipped)
	fmt.Fprintf(w, "Batches: %d  Duration: %s\n", summary.Batches, summary.Duration.Round(time.Millisecond))
	for _, fb := range summary.FailedBatches {
		if fb.Reason != "" {
			fmt.Fprintf(w, "  batch %d: %d records failed: %s\n", fb.Index, fb.Failed, fb.Reason)
		} else {
			fmt.Fprintf(w, "  batch %d: %d of %d records rejected\n", fb.Index, fb.Failed, fb.Size)
		}
	}
	if summary.AbortReason != nil {
		fmt.Fprintf(w, "Aborted: %v\n", summary.AbortReason)
	}
}
