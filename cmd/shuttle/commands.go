package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/poiesic/shuttle"
	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/migrate"
	"github.com/poiesic/shuttle/storage/s3store"
	"github.com/poiesic/shuttle/verify"
	"github.com/urfave/cli/v2"
)

// commandContext is canceled on interrupt; batches already dispatched still finish.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt)
}

func openStore(c *cli.Context, opts ...shuttle.StoreOption) (*shuttle.Store, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	store, err := shuttle.Open(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func openBucket(c *cli.Context) (*s3store.Store, error) {
	client, err := s3store.NewClient(c.Context, s3store.ClientConfig{
		Region:    c.String("region"),
		Endpoint:  c.String("endpoint"),
		AccessKey: c.String("access-key"),
		SecretKey: c.String("secret-key"),
	})
	if err != nil {
		return nil, err
	}
	return s3store.New(client, c.String("bucket"), c.String("prefix"))
}

// finish prints the summary and turns an aborted run into a command error.
func finish(summary *core.RunSummary, err error) error {
	if summary != nil {
		fmt.Fprintln(os.Stderr)
		printSummary(os.Stderr, summary)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func migrateCommand(c *cli.Context) error {
	engine, err := engineConfig(c)
	if err != nil {
		return err
	}
	config := &shuttle.Config{
		Config:                *engine,
		SourceCollection:      c.String("from"),
		DestinationCollection: c.String("to"),
		ResetDestination:      c.Bool("reset"),
	}
	if err := config.Validate(); err != nil {
		return err
	}

	store, err := openStore(c, shuttle.WithVectorDimension(c.Int("dimension")))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Migrating %s -> %s\n", config.SourceCollection, config.DestinationCollection)
	fmt.Fprintln(os.Stderr)

	return finish(store.RunMigration(ctx, config, migrate.WithProgressWriter(os.Stderr)))
}

func exportCommand(c *cli.Context) error {
	config, err := engineConfig(c)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	source, err := store.Collection(c.String("collection"))
	if err != nil {
		return err
	}
	bucket, err := openBucket(c)
	if err != nil {
		return err
	}

	m, err := migrate.NewMigrator(source, bucket, config, migrate.WithProgressWriter(os.Stderr))
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Exporting %s to s3://%s/%s\n\n", source.Name(), c.String("bucket"), c.String("prefix"))
	return finish(m.Run(ctx))
}

func importCommand(c *cli.Context) error {
	config, err := engineConfig(c)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	dest, err := store.Collection(c.String("collection"))
	if err != nil {
		return err
	}
	bucket, err := openBucket(c)
	if err != nil {
		return err
	}

	m, err := migrate.NewMigrator(bucket, dest, config, migrate.WithProgressWriter(os.Stderr))
	if err != nil {
		return err
	}

	if c.Bool("reset") {
		if err := dest.Drop(); err != nil {
			return fmt.Errorf("failed to reset collection: %w", err)
		}
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Importing s3://%s/%s into %s\n\n", c.String("bucket"), c.String("prefix"), dest.Name())
	return finish(m.Run(ctx))
}

func verifyCommand(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	report, err := store.Verify(ctx, c.String("from"), c.String("to"),
		verify.WithVectors(c.Bool("vectors")),
		verify.WithChunkSize(c.Int("chunk-size")),
		verify.WithConcurrency(c.Int("concurrency")))
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Printf("Checked: %d  Matched: %d  Missing: %d  Mismatched: %d  Unverifiable: %d\n",
		report.Checked, report.Matched, report.Missing, report.Mismatched, report.Unverifiable)
	for _, id := range report.MissingIDs {
		fmt.Printf("  missing: %s\n", id)
	}
	for _, id := range report.MismatchedIDs {
		fmt.Printf("  mismatched: %s\n", id)
	}

	if !report.OK() {
		return fmt.Errorf("%d missing and %d mismatched records", report.Missing, report.Mismatched)
	}
	return nil
}

func countCommand(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	names := []string{c.String("collection")}
	if names[0] == "" {
		if names, err = store.Collections(); err != nil {
			return err
		}
	}

	for _, name := range names {
		collection, err := store.Collection(name)
		if err != nil {
			return err
		}
		count, err := collection.Count(c.Context)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", name, err)
		}
		fmt.Printf("%s\t%d\n", name, count)
	}
	return nil
}
