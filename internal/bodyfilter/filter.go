package bodyfilter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/poseconv/internal/collected"
	"github.com/roach88/poseconv/internal/pose"
	"github.com/roach88/poseconv/internal/project"
)

// DefaultKeep is the stock allow-list: head landmarks, back line and tail
// chain.
var DefaultKeep = []string{
	"nose",
	"left_ear_base",
	"right_ear_base",
	"left_ear_tip",
	"right_ear_tip",
	"back_withers",
	"back_midpoint",
	"back_croup",
	"tail_base",
	"tail_upper_midpoint",
	"tail_midpoint",
	"tail_lower_midpoint",
	"tail_end",
	"head_midpoint",
}

// Options configures Run.
type Options struct {
	// ProjectDir is the project root, the parent of LabeledDataDir.
	ProjectDir     string
	LabeledDataDir string
	Keep           []string
	// RunID is stored in each rewritten sidecar under "filter_run_id".
	RunID   string
	Workers int
	Logger  *zap.Logger
}

// StoreResult describes one filtered store.
type StoreResult struct {
	Partition string   `json:"partition"`
	Stem      string   `json:"stem"`
	Encodings []string `json:"encodings"`
	Before    int      `json:"columns_before"`
	After     int      `json:"columns_after"`
	Rows      int      `json:"rows"`
}

// Failure is a partition left untouched.
type Failure struct {
	Partition string `json:"partition"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

// Report summarizes a filter run.
type Report struct {
	Root       string           `json:"root"`
	Keep       []string         `json:"keep"`
	Partitions int              `json:"partitions"`
	Stores     []StoreResult    `json:"stores"`
	Conditions []pose.Condition `json:"conditions"`
	Failures   []Failure        `json:"failures"`
	// Absent lists allow-list names found in no filtered store.
	Absent []string `json:"absent"`
}

// Run filters every partition under the labeled-data root.
//
// A missing root or empty allow-list is a CONFIGURATION error. Per-partition
// problems are collected in Report.Failures.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.LabeledDataDir == "" {
		opts.LabeledDataDir = "labeled-data"
	}
	if len(opts.Keep) == 0 {
		return nil, pose.ConfigurationError("", "bodypart allow-list is empty", nil)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RunID != "" {
		logger = logger.With(zap.String("run_id", opts.RunID))
	}

	root := filepath.Join(opts.ProjectDir, opts.LabeledDataDir)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, pose.ConfigurationError(root, "labeled-data root does not exist", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, pose.ConfigurationError(root, "read labeled-data root", err)
	}

	lock := flock.New(filepath.Join(opts.ProjectDir, project.LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !locked {
		return nil, pose.ConfigurationError(opts.ProjectDir, "project is locked by another run", nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release project lock", zap.Error(err))
		}
	}()

	report := &Report{
		Root:       root,
		Keep:       opts.Keep,
		Stores:     []StoreResult{},
		Conditions: []pose.Condition{},
		Failures:   []Failure{},
		Absent:     []string{},
	}
	seen := map[string]bool{}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		report.Partitions++
		name := e.Name()
		dir := filepath.Join(root, name)
		g.Go(func() error {
			res, err := filterPartition(gctx, name, dir, &opts, logger)

			mu.Lock()
			defer mu.Unlock()
			report.Conditions = append(report.Conditions, res.conditions...)
			for _, bp := range res.present {
				seen[bp] = true
			}
			if err != nil {
				logger.Error("partition failed", zap.String("partition", name), zap.Error(err))
				report.Failures = append(report.Failures, Failure{Partition: name, Err: err, Message: err.Error()})
				return nil
			}
			report.Stores = append(report.Stores, res.stores...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, bp := range opts.Keep {
		if !seen[bp] {
			report.Absent = append(report.Absent, bp)
		}
	}
	if len(report.Absent) > 0 && len(report.Stores) > 0 {
		logger.Warn("allow-list names not present in any table", zap.Strings("bodyparts", report.Absent))
	}

	sort.Slice(report.Stores, func(i, j int) bool {
		a, b := report.Stores[i], report.Stores[j]
		if a.Partition != b.Partition {
			return a.Partition < b.Partition
		}
		return a.Stem < b.Stem
	})
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Partition < report.Failures[j].Partition })
	sort.SliceStable(report.Conditions, func(i, j int) bool { return report.Conditions[i].Subject < report.Conditions[j].Subject })
	return report, nil
}

type partitionResult struct {
	stores     []StoreResult
	conditions []pose.Condition
	present    []string
}

// filterPartition loads and checks every store in dir before writing any of
// them, so a failing partition is left as it was.
func filterPartition(ctx context.Context, name, dir string, opts *Options, logger *zap.Logger) (partitionResult, error) {
	var res partitionResult
	if err := ctx.Err(); err != nil {
		return res, err
	}

	pairs, err := collected.Discover(dir)
	if err != nil {
		return res, pose.InputFormatError(dir, "list partition", err)
	}

	type store struct {
		loadedStore
		pair collected.Pair
	}
	var stores []store
	for _, p := range pairs {
		l, cond, err := load(ctx, name, p)
		if err != nil {
			return res, err
		}
		if cond != nil {
			logger.Warn("store has a single encoding",
				zap.String("partition", name),
				zap.String("path", cond.Detail))
			res.conditions = append(res.conditions, *cond)
		}
		stores = append(stores, store{loadedStore: l, pair: p})
	}

	keep := func(c pose.Column) bool { return slices.Contains(opts.Keep, c.Bodypart) }
	for _, s := range stores {
		for _, bp := range s.table.Bodyparts() {
			if slices.Contains(opts.Keep, bp) {
				res.present = append(res.present, bp)
			}
		}

		filtered := s.table.Select(keep)
		meta := s.meta
		if opts.RunID != "" {
			meta["filter_run_id"] = opts.RunID
		}

		var encodings []string
		switch {
		case s.pair.Complete():
			err = collected.WriteBoth(ctx, s.pair, filtered, meta)
			encodings = []string{"csv", "sqlite"}
		case s.pair.CSV != "":
			err = collected.WriteCSVFile(s.pair.CSV, filtered)
			encodings = []string{"csv"}
		default:
			err = collected.WriteSQLiteFile(ctx, s.pair.SQLite, filtered, meta)
			encodings = []string{"sqlite"}
		}
		if err != nil {
			return res, fmt.Errorf("write %s: %w", s.pair.Stem, err)
		}

		logger.Debug("store filtered",
			zap.String("partition", name),
			zap.String("stem", s.pair.Stem),
			zap.Int("columns_before", len(s.table.Columns)),
			zap.Int("columns_after", len(filtered.Columns)))
		res.stores = append(res.stores, StoreResult{
			Partition: name,
			Stem:      s.pair.Stem,
			Encodings: encodings,
			Before:    len(s.table.Columns),
			After:     len(filtered.Columns),
			Rows:      len(filtered.Index),
		})
	}
	return res, nil
}

type loadedStore struct {
	table *pose.StructuredTable
	meta  collected.Meta
}

// load reads whichever encodings exist and checks that they agree.
func load(ctx context.Context, partition string, p collected.Pair) (loadedStore, *pose.Condition, error) {
	var out loadedStore
	var fromCSV, fromSQL *pose.StructuredTable
	var err error

	if p.CSV != "" {
		if fromCSV, err = collected.ReadCSVFile(p.CSV); err != nil {
			return out, nil, err
		}
	}
	if p.SQLite != "" {
		if fromSQL, err = collected.ReadSQLiteFile(ctx, p.SQLite); err != nil {
			return out, nil, err
		}
		if out.meta, err = collected.ReadSQLiteMeta(ctx, p.SQLite); err != nil {
			return out, nil, err
		}
	}
	if out.meta == nil {
		out.meta = collected.Meta{}
	}

	switch {
	case fromCSV != nil && fromSQL != nil:
		if !fromCSV.SameShape(fromSQL) {
			return out, nil, pose.SchemaMismatchError(partition, p.Stem,
				fmt.Sprintf("encodings differ in shape: csv %dx%d, sqlite %dx%d",
					len(fromCSV.Index), len(fromCSV.Columns), len(fromSQL.Index), len(fromSQL.Columns)))
		}
		if !fromCSV.Equal(fromSQL) {
			return out, nil, pose.SchemaMismatchError(partition, p.Stem, "encodings hold different values")
		}
		out.table = fromCSV
		return out, nil, nil
	case fromCSV != nil:
		out.table = fromCSV
		return out, &pose.Condition{Code: pose.CondPartialEncoding, Subject: partition, Detail: p.CSV}, nil
	default:
		out.table = fromSQL
		return out, &pose.Condition{Code: pose.CondPartialEncoding, Subject: partition, Detail: p.SQLite}, nil
	}
}
