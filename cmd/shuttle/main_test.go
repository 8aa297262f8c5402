package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/shuttle"
	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %s not found", name)
	return nil
}

func TestCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"migrate", "export", "import", "verify", "count", "seed"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, "command %s needs an action", name)
	}
}

func TestMigrateCommandFlags(t *testing.T) {
	t.Run("from and to are required", func(t *testing.T) {
		err := newApp().Run([]string{"shuttle", "migrate", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "from")
	})

	t.Run("engine defaults", func(t *testing.T) {
		cmd := findCommand(t, newApp(), "migrate")
		defaults := migrate.DefaultConfig()
		for _, flag := range cmd.Flags {
			switch f := flag.(type) {
			case *cli.IntFlag:
				switch f.Name {
				case "batch-size":
					assert.Equal(t, defaults.BatchSize, f.Value)
				case "max-items":
					assert.Equal(t, migrate.Unlimited, f.Value)
				case "concurrency":
					assert.Equal(t, 1, f.Value)
				}
			case *cli.StringFlag:
				if f.Name == "error-policy" {
					assert.Equal(t, "fail-fast", f.Value)
				}
			}
		}
	})

	t.Run("invalid error policy", func(t *testing.T) {
		err := newApp().Run([]string{"shuttle", "migrate", "--db", t.TempDir(),
			"--from", "a", "--to", "b", "--error-policy", "ignore"})
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})

	t.Run("zero concurrency", func(t *testing.T) {
		err := newApp().Run([]string{"shuttle", "migrate", "--db", t.TempDir(),
			"--from", "a", "--to", "b", "--concurrency", "0"})
		assert.ErrorIs(t, err, core.ErrInvalidConfig)
	})
}

func TestSeedAndMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db")

	require.NoError(t, newApp().Run([]string{"shuttle", "-l", "error", "seed", "--db", dbPath,
		"-c", "Wiki", "-n", "250", "--dimension", "4", "--batch-size", "40"}))
	require.NoError(t, newApp().Run([]string{"shuttle", "-l", "error", "migrate", "--db", dbPath,
		"--from", "Wiki", "--to", "WikiCopy", "--batch-size", "30", "--concurrency", "3", "--dimension", "4"}))
	require.NoError(t, newApp().Run([]string{"shuttle", "-l", "error", "verify", "--db", dbPath,
		"--from", "Wiki", "--to", "WikiCopy", "--vectors"}))

	store, err := shuttle.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	for _, name := range []string{"Wiki", "WikiCopy"} {
		c, err := store.Collection(name)
		require.NoError(t, err)
		count, err := c.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 250, count)
	}
}

func TestSeedFromFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "titles.txt")
	require.NoError(t, os.WriteFile(src, []byte("first\n\nsecond\n"), 0644))

	dbPath := filepath.Join(dir, "db")
	require.NoError(t, newApp().Run([]string{"shuttle", "-l", "error", "seed", "--db", dbPath,
		"-c", "Titles", "-n", "5", "--src", src, "--dimension", "0"}))

	store, err := shuttle.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	c, err := store.Collection("Titles")
	require.NoError(t, err)
	seen := map[any]int{}
	for record, err := range c.Records(context.Background(), true) {
		require.NoError(t, err)
		assert.Nil(t, record.Vector)
		seen[record.Properties["title"]]++
	}
	assert.Equal(t, map[any]int{"first": 3, "second": 2}, seen)
}

func TestSyntheticSource(t *testing.T) {
	source := &syntheticSource{titles: titles, count: 7, dimension: 3}

	count, err := source.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	n := 0
	for record, err := range source.Records(context.Background(), true) {
		require.NoError(t, err)
		assert.True(t, record.HasID())
		assert.Len(t, record.Vector, 3)
		assert.NoError(t, core.ValidateRecord(record))
		n++
	}
	assert.Equal(t, 7, n)

	for record := range source.Records(context.Background(), false) {
		assert.Nil(t, record.Vector)
		break
	}
}

func TestSetupLogger(t *testing.T) {
	defaultLogger := slog.Default()
	defer slog.SetDefault(defaultLogger)

	tests := []struct {
		name          string
		logLevel      string
		expectError   bool
		expectedLevel slog.Level
	}{
		{"debug level", "debug", false, slog.LevelDebug},
		{"info level", "info", false, slog.LevelInfo},
		{"warn level", "warn", false, slog.LevelWarn},
		{"error level", "error", false, slog.LevelError},
		{"uppercase", "DEBUG", false, slog.LevelDebug},
		{"invalid level", "verbose", true, slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &cli.App{
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "log-level", Value: "info"},
				},
				Before: setupLogger,
				Action: func(c *cli.Context) error { return nil },
			}

			err := app.Run([]string{"app", "--log-level", tt.logLevel})
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)

			handler := slog.Default().Handler()
			assert.True(t, handler.Enabled(context.Background(), tt.expectedLevel))
			if tt.expectedLevel > slog.LevelDebug {
				assert.False(t, handler.Enabled(context.Background(), tt.expectedLevel-1))
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &core.RunSummary{
		State:          core.RunStateAborted,
		TotalAttempted: 300,
		TotalSucceeded: 200,
		TotalFailed:    100,
		Batches:        3,
		FailedBatches:  []core.FailedBatch{{Index: 3, Size: 100, Failed: 100, Reason: "connection reset"}},
		AbortReason:    assert.AnError,
	})

	output := buf.String()
	assert.Contains(t, output, "State: aborted")
	assert.Contains(t, output, "Succeeded: 200")
	assert.Contains(t, output, "batch 3: 100 records failed: connection reset")
	assert.Contains(t, output, "Aborted:")
}

func TestLinesFromFile_ReadError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "titles.txt")
	content := "first\n" + strings.Repeat("x", bufio.MaxScanTokenSize+1) + "\nlast\n"
	require.NoError(t, os.WriteFile(src, []byte(content), 0644))

	lines, err := linesFromFile(src)
	require.NoError(t, err)

	var got []string
	var readErr error
	for line, err := range lines {
		if err != nil {
			readErr = err
			break
		}
		got = append(got, line)
	}
	assert.Equal(t, []string{"first"}, got)
	assert.ErrorIs(t, readErr, bufio.ErrTooLong)

	err = newApp().Run([]string{"shuttle", "-l", "error", "seed", "--db", filepath.Join(dir, "db"),
		"-c", "Titles", "-n", "5", "--src", src})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read titles")
}
