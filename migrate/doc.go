// Package migrate moves records from a RecordSource to a RecordSink in
// fixed-size batches.
//
// A Migrator pulls records from the source cursor, groups them into batches
// of Config.BatchSize and hands each batch to an execution strategy. With a
// concurrency limit of 1 batches are written one after another on the calling
// goroutine. With a larger limit, or Unbounded, batches are written by a
// worker pool and all outstanding writes are awaited before the run ends.
//
// Failures are handled per Config.ErrorPolicy. A transport error (the sink
// call itself failed) either aborts the run (ErrorPolicyFailFast) or is
// recorded against its batch (ErrorPolicySkipAndContinue). Records rejected
// individually by the sink are always recorded and never abort a run.
//
// Progress is written to a progress writer as a single updating line and
// each batch outcome is logged through slog.
//
// Example:
//
//	cfg := migrate.DefaultConfig()
//	cfg.ConcurrencyLimit = 4
//
//	m, err := migrate.NewMigrator(source, sink, cfg, migrate.WithProgressWriter(os.Stderr))
//	if err != nil {
//		return err
//	}
//	summary, err := m.Run(ctx)
package migrate
