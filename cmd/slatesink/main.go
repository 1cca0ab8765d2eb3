package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/thanos-io/objstore/providers/filesystem"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/slatedb/slatesink/slatesink"
	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/config"
	"github.com/slatedb/slatesink/slatesink/driver"
	"github.com/slatedb/slatesink/slatesink/logger"
	"github.com/slatedb/slatesink/slatesink/manifest"
	"github.com/slatedb/slatesink/slatesink/metrics"
	"github.com/slatedb/slatesink/slatesink/store"
	"github.com/slatedb/slatesink/slatesink/table"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg := config.DefaultFile()
	if *configPath != "" {
		var err error
		if cfg, err = config.FromFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	if err := run(context.Background(), cfg); err != nil {
		logger.Error("slatesink failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.File) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	reader := sdkmetric.NewManualReader()
	recorder, err := metrics.New(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		return err
	}
	opts.Log = log
	opts.Metrics = recorder

	bucket, err := filesystem.NewBucket(cfg.Store.Directory)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", cfg.Store.Directory, err)
	}

	tableOpts := store.DefaultTableOptions()
	tableOpts.CommitRetries = cfg.Store.CommitRetries
	tableOpts.Timeout = opts.Timeout
	tableOpts.Log = log

	_, err = store.CreateTable(ctx, bucket, cfg.Table.Location, cfg.Table.Properties, tableOpts)
	switch {
	case errors.Is(err, common.ErrTableExists):
		logger.Info("using existing table", zap.String("location", cfg.Table.Location))
	case err != nil:
		return err
	default:
		logger.Info("created table", zap.String("location", cfg.Table.Location))
	}

	backend, err := driver.OpenBackend(cfg.Driver)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	committer := slatesink.NewCommitter(store.NewLoader(bucket, cfg.Table.Location, tableOpts), opts)
	d := driver.New(committer, backend, driver.Options{Log: log})
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("failed to close committer", zap.Error(err))
		}
	}()

	for i := 0; i < cfg.Driver.Checkpoints; i++ {
		for j := 0; j < cfg.Driver.BatchSize; j++ {
			partition := fmt.Sprintf("p=%d", j%2)
			rows := []string{fmt.Sprintf("%s,%d,%d", d.RunID(), i, j)}
			f, err := driver.WriteDataFile(ctx, committer.Table().IO(), partition, rows)
			if err != nil {
				return err
			}
			d.Record(manifest.WriteResult{DataFiles: []table.DataFile{f}})
		}
		id, err := d.Checkpoint(ctx)
		if err != nil {
			return err
		}
		logger.Info("checkpoint committed", zap.Uint64("checkpoint_id", id), zap.String("run_id", d.RunID()))
	}

	if err := printHistory(ctx, committer.Table()); err != nil {
		return err
	}
	return printMetrics(ctx, reader)
}

func printHistory(ctx context.Context, t table.Table) error {
	fmt.Printf("history of %s\n", t.Name())
	for s, err := range table.Ancestors(ctx, t) {
		if err != nil {
			return err
		}
		fmt.Printf("  %d seq=%d op=%s checkpoint=%s run=%s data_files=%d delete_files=%d\n",
			s.ID, s.SequenceNumber, s.Operation,
			s.Property(common.MaxCommittedCheckpointIDProperty).OrElse("-"),
			s.Property(common.FlinkJobIDProperty).OrElse("-"),
			len(s.DataFiles), len(s.DeleteFiles))
	}
	return nil
}

func printMetrics(ctx context.Context, reader sdkmetric.Reader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || !strings.HasPrefix(m.Name, "slatesink.") {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			fmt.Printf("  %s=%d\n", m.Name, total)
		}
	}
	return nil
}
