package sync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/renderinc/issue-sync/internal/document"
	"github.com/renderinc/issue-sync/internal/github"
	"github.com/renderinc/issue-sync/internal/schema"
	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/vectorizer"
	"github.com/renderinc/issue-sync/internal/watermark"
)

// MaxBatchSize caps the number of objects per upsert regardless of configuration.
const MaxBatchSize = 100

// Phase is a step of a sync run.
type Phase string

const (
	PhaseInit            Phase = "INIT"
	PhaseSchemaReady     Phase = "SCHEMA_READY"
	PhaseWatermarkRead   Phase = "WATERMARK_READ"
	PhaseFetching        Phase = "FETCHING"
	PhaseAssembling      Phase = "ASSEMBLING"
	PhaseBatchUpsert     Phase = "BATCH_UPSERT"
	PhaseWatermarkCommit Phase = "WATERMARK_COMMIT"
	PhaseDone            Phase = "DONE"
	PhaseFailed          Phase = "FAILED"
)

// IssueSource lists issues and their comments. *github.Client implements it.
type IssueSource interface {
	ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error)
	ListComments(ctx context.Context, owner, repo string, number int) ([]github.Comment, error)
}

// Opener connects to the store for one run. The worker closes the store when the run ends.
type Opener func(ctx context.Context) (store.Store, error)

// Options configures a sync run.
type Options struct {
	Owner              string
	Name               string
	Collection         string
	MetadataCollection string
	Vectorizer         vectorizer.Vectorizer
	VectorizerSettings map[string]any
	BatchSize          int    // clamped to MaxBatchSize
	State              string // all, open or closed
	IncludeComments    bool
	Full               bool // ignore the stored watermark
}

// Worker syncs the issues of one repository into the store
type Worker struct {
	source IssueSource
	open   Opener
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewWorker creates a new sync worker
func NewWorker(source IssueSource, open Opener, opts Options, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		source: source,
		open:   open,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Stats holds sync statistics
type Stats struct {
	Fetched         int
	Synced          int
	PullRequests    int
	Skipped         int
	CommentFailures int
	Batches         int
	Since           *time.Time // nil on a full walk
	Watermark       time.Time
	Duration        time.Duration
}

// Sync runs one incremental sync. The watermark only advances after every batch has
// been upserted; on failure it is left untouched and the error is returned.
func (w *Worker) Sync(ctx context.Context) (_ *Stats, err error) {
	start := w.now().UTC()
	stats := &Stats{}
	repo := w.opts.Owner + "/" + w.opts.Name

	phase := PhaseInit
	w.enter(phase, "repository", repo)
	defer func() {
		if err != nil {
			w.logger.Error("sync phase", "phase", PhaseFailed, "failed_in", phase, "repository", repo, "error", err)
		}
	}()

	st, err := w.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			w.logger.Warn("close store", "error", cerr)
		}
	}()

	phase = PhaseSchemaReady
	mgr := schema.NewManager(st, w.logger)
	if _, err := mgr.EnsureCollection(ctx, w.opts.Collection, w.opts.Vectorizer, w.opts.VectorizerSettings); err != nil {
		return nil, err
	}
	if _, err := mgr.EnsureMetadataCollection(ctx, w.opts.MetadataCollection); err != nil {
		return nil, err
	}
	w.enter(phase, "collection", w.opts.Collection, "metadata_collection", w.opts.MetadataCollection)

	phase = PhaseWatermarkRead
	marks := watermark.New(st, w.opts.MetadataCollection, w.logger)
	prev, hasPrev, err := marks.Get(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}
	if hasPrev && !w.opts.Full {
		since := prev
		stats.Since = &since
	}
	w.enter(phase, "since", stats.Since, "full", w.opts.Full)

	phase = PhaseFetching
	w.enter(phase)
	issues, err := w.source.ListIssues(ctx, w.opts.Owner, w.opts.Name, github.ListOptions{
		State: w.opts.State,
		Since: stats.Since,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch issues: %w", err)
	}
	stats.Fetched = len(issues)

	phase = PhaseAssembling
	w.enter(phase, "fetched", stats.Fetched)
	objects := w.assemble(ctx, issues, stats)

	phase = PhaseBatchUpsert
	batchSize := w.batchSize()
	w.enter(phase, "documents", len(objects), "batch_size", batchSize)
	for batch := range slices.Chunk(objects, batchSize) {
		if err := st.Upsert(ctx, w.opts.Collection, batch); err != nil {
			return nil, fmt.Errorf("upsert batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.Synced += len(batch)
		w.logger.Debug("upserted batch", "batch", stats.Batches, "size", len(batch))
	}

	phase = PhaseWatermarkCommit
	next := start
	if hasPrev && prev.After(next) {
		next = prev
	}
	if err := marks.Set(ctx, repo, next); err != nil {
		return nil, fmt.Errorf("commit watermark: %w", err)
	}
	stats.Watermark = next
	w.enter(phase, "watermark", next)

	phase = PhaseDone
	stats.Duration = time.Since(start)
	w.enter(phase)
	w.logger.Info("sync complete",
		"repository", repo,
		"synced", stats.Synced,
		"excluded_pull_requests", stats.PullRequests,
		"skipped", stats.Skipped,
		"comment_failures", stats.CommentFailures,
		"batches", stats.Batches,
		"duration", stats.Duration)

	return stats, nil
}

// assemble filters pull requests, fetches comments and builds the store objects in
// listing order. Duplicate issue numbers keep their first occurrence.
func (w *Worker) assemble(ctx context.Context, issues []github.Issue, stats *Stats) []store.Object {
	objects := make([]store.Object, 0, len(issues))
	seen := make(map[int]bool, len(issues))

	for i := range issues {
		issue := &issues[i]
		if document.IsPullRequest(issue) {
			stats.PullRequests++
			continue
		}
		if seen[issue.Number] {
			w.logger.Debug("duplicate issue in listing", "number", issue.Number)
			continue
		}

		var comments []github.Comment
		if w.opts.IncludeComments && issue.Comments > 0 {
			var err error
			comments, err = w.source.ListComments(ctx, w.opts.Owner, w.opts.Name, issue.Number)
			if err != nil {
				w.logger.Warn("failed to fetch comments, syncing without them", "number", issue.Number, "error", err)
				stats.CommentFailures++
				comments = nil
			}
		}

		doc, err := document.Assemble(w.opts.Owner, w.opts.Name, issue, comments, w.opts.IncludeComments)
		if err != nil {
			w.logger.Warn("skipping malformed issue", "error", err)
			stats.Skipped++
			continue
		}
		seen[issue.Number] = true
		objects = append(objects, doc.Object())
	}
	return objects
}

func (w *Worker) batchSize() int {
	if w.opts.BatchSize <= 0 || w.opts.BatchSize > MaxBatchSize {
		return MaxBatchSize
	}
	return w.opts.BatchSize
}

func (w *Worker) enter(p Phase, attrs ...any) {
	w.logger.Info("sync phase", append([]any{"phase", p}, attrs...)...)
}
