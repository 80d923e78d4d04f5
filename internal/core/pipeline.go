package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options configures an Importer. Zero values select defaults.
type Options struct {
	BatchSize int            // sessions per commit, 1..MaxBatchSize (default MaxBatchSize)
	Workers   int            // concurrent row resolvers (default 1, sequential)
	CacheSize int            // memoized reference queries; negative disables (default DefaultLookupCacheSize)
	SourceTag string         // Provenance.ImportedFrom (default DefaultSourceTag)
	Location  *time.Location // zone for dates without an offset (default time.Local)
	Recorder  Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Importer runs the export -> session store pipeline.
type Importer struct {
	refs     ReferenceStore
	sessions SessionStore
	opts     Options
}

// NewImporter creates an Importer over the given stores.
func NewImporter(refs ReferenceStore, sessions SessionStore, opts Options) *Importer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultLookupCacheSize
	}
	if opts.SourceTag == "" {
		opts.SourceTag = DefaultSourceTag
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Importer{refs: refs, sessions: sessions, opts: opts}
}

// RunContext is the state of one import, owned by Importer.Run and threaded
// through each stage.
type RunContext struct {
	ID       string
	UserID   string
	Rows     []RawRow
	Outcomes []RowOutcome
	Ready    []CanonicalSession
	Uploaded int
}

// Run imports the export read from r for userID.
//
// Row-level failures become skip records and never fail the run. A
// *SetupError is returned before any row is processed when the input is
// unusable. A *BatchCommitError is returned, together with the summary so
// far, when a batch fails to commit; earlier batches stay persisted.
func (im *Importer) Run(ctx context.Context, userID string, r io.Reader, progress ProgressFunc) (RunSummary, error) {
	if progress == nil {
		progress = func(ProgressEvent) {}
	}
	start := time.Now()

	run := &RunContext{ID: uuid.NewString(), UserID: userID}
	logger := im.opts.Logger.With("run_id", run.ID, "user_id", userID)

	if userID == "" {
		return RunSummary{}, &SetupError{Op: "user id", Err: errors.New("user id is required")}
	}

	rows, err := Parse(r)
	if err != nil {
		return RunSummary{}, &SetupError{Op: "read export", Err: err}
	}
	run.Rows = rows
	if missing := MissingColumns(rows, ExpectedColumns); len(missing) > 0 {
		logger.Warn("export is missing expected columns", "columns", missing)
	}
	logger.Info("export parsed", "rows", len(rows))
	progress(ProgressEvent{Kind: ProgressParsed, TotalRows: len(rows)})

	resolver, err := NewResolver(im.refs, im.opts.CacheSize, im.opts.Recorder)
	if err != nil {
		return RunSummary{}, &SetupError{Op: "resolver", Err: err}
	}

	if err := im.processRows(ctx, run, resolver, progress); err != nil {
		return RunSummary{}, err
	}
	logger.Info("rows converted", "ready", len(run.Ready), "skipped", len(run.Rows)-len(run.Ready))

	committer := NewCommitter(im.sessions, im.opts.BatchSize, im.opts.Recorder)
	uploaded, commitErr := committer.Commit(ctx, run.Ready, progress)
	run.Uploaded = uploaded

	summary := Summarize(run.Outcomes, run.Uploaded)
	summary.RunID = run.ID
	summary.UserID = userID
	summary.Lookups = resolver.Stats()
	im.opts.Recorder.RunFinished(summary, time.Since(start))

	if commitErr != nil {
		logger.Error("batch commit failed", "uploaded", uploaded, "error", commitErr)
		return summary, commitErr
	}

	progress(ProgressEvent{Kind: ProgressCommitted, Uploaded: uploaded, ToUpload: len(run.Ready)})
	logger.Info("import complete",
		"uploaded", summary.Uploaded,
		"skipped", summary.Skipped,
		"lookups", summary.Lookups.Lookups,
		"cache_hits", summary.Lookups.CacheHits,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// processRows fills run.Outcomes and run.Ready in input order.
func (im *Importer) processRows(ctx context.Context, run *RunContext, resolver *Resolver, progress ProgressFunc) error {
	conv := &Converter{
		Dates:     NewDateNormalizer(im.opts.Location),
		SourceTag: im.opts.SourceTag,
		Now:       im.opts.Now,
	}
	total := len(run.Rows)
	run.Outcomes = make([]RowOutcome, total)

	if im.opts.Workers == 1 {
		for i, row := range run.Rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			progress(ProgressEvent{Kind: ProgressRow, Row: row.Ordinal, TotalRows: total, Raw: &run.Rows[i]})
			run.Outcomes[i] = im.processRow(ctx, resolver, conv, row, run.UserID)
			im.emitSkip(run.Outcomes[i], progress)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(im.opts.Workers)
		for i, row := range run.Rows {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				run.Outcomes[i] = im.processRow(gctx, resolver, conv, row, run.UserID)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, row := range run.Rows {
			progress(ProgressEvent{Kind: ProgressRow, Row: row.Ordinal, TotalRows: total, Raw: &run.Rows[i]})
			im.emitSkip(run.Outcomes[i], progress)
		}
	}

	for _, o := range run.Outcomes {
		if o.Session != nil {
			run.Ready = append(run.Ready, *o.Session)
		}
	}
	return nil
}

func (im *Importer) processRow(ctx context.Context, resolver *Resolver, conv *Converter, row RawRow, userID string) RowOutcome {
	refs, err := resolver.ResolveRow(ctx, row, userID)
	if err != nil {
		im.opts.Recorder.RowProcessed(true)
		return RowOutcome{Ordinal: row.Ordinal, Skip: newSkipRecord(row, err)}
	}
	sess := conv.Convert(row, refs, userID)
	im.opts.Recorder.RowProcessed(false)
	return RowOutcome{Ordinal: row.Ordinal, Session: &sess}
}

func (im *Importer) emitSkip(o RowOutcome, progress ProgressFunc) {
	if o.Skip == nil {
		return
	}
	im.opts.Logger.Debug("row skipped", "row", o.Skip.Row, "source_id", o.Skip.SourceID, "code", o.Skip.Code, "error", o.Skip.Err)
	progress(ProgressEvent{Kind: ProgressSkip, Row: o.Skip.Row, Skip: o.Skip})
}

func newSkipRecord(row RawRow, err error) *SkipRecord {
	return &SkipRecord{
		Row:      row.Ordinal,
		SourceID: row.Get(ColID),
		Session:  row.Get(ColSession),
		Circuit:  row.Get(ColCircuit),
		Tyres:    row.Get(ColTyres),
		Engine:   row.Get(ColEngine),
		Reason:   err.Error(),
		Code:     MapError(err).Code,
		Err:      err,
	}
}
