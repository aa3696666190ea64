// Package review assembles the reviewer's worklist: every PROPOSED risk
// awaiting a decision plus every ACTIVE risk presented as a merge target.
//
// The aggregator pages through the store exhaustively but bounded: a hard
// page-count limit stops the loop even if the store keeps reporting more
// pages, and the partial inbox is returned flagged rather than failed. A
// genuine store error aborts the whole build; no partial inbox is served on
// a hard failure.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"parapet/internal/review/metrics"
	"parapet/internal/risk/models"
	"parapet/internal/risk/store"
	dErrors "parapet/pkg/domain-errors"
	"parapet/pkg/platform/audit"
)

var tracer = otel.Tracer("parapet/internal/review")

const (
	// DefaultPageSize is the fixed fetch size for the inbox page loop.
	DefaultPageSize = 100
	// DefaultMaxPages bounds each status loop; 50 pages of 100 covers five
	// thousand risks per list before the aggregator gives up.
	DefaultMaxPages = 50
)

// RiskPager is the slice of the risk store the aggregator reads from.
type RiskPager interface {
	FindPage(ctx context.Context, filter store.Filter, page, limit int) (*store.Page, error)
}

// OpsPublisher records the safety-limit trip for operational visibility.
type OpsPublisher interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// Inbox is the assembled worklist. Ordering within each list is whatever the
// store returned; the aggregator never re-sorts. Truncated reports that at
// least one page loop hit the safety limit and the lists may be incomplete.
type Inbox struct {
	Proposed        []*models.Risk `json:"proposed"`
	MergeCandidates []*models.Risk `json:"merge_candidates"`
	Truncated       bool           `json:"truncated"`
}

// Aggregator builds the review inbox.
type Aggregator struct {
	risks    RiskPager
	cache    *Cache
	logger   *slog.Logger
	ops      OpsPublisher
	metrics  *metrics.Metrics
	pageSize int
	maxPages int
}

type Option func(a *Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithCache serves inbox snapshots from Redis between rebuilds. A nil cache
// disables snapshotting.
func WithCache(cache *Cache) Option {
	return func(a *Aggregator) {
		a.cache = cache
	}
}

func WithOpsPublisher(publisher OpsPublisher) Option {
	return func(a *Aggregator) {
		a.ops = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

func WithPageSize(size int) Option {
	return func(a *Aggregator) {
		if size > 0 {
			a.pageSize = size
		}
	}
}

func WithMaxPages(limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.maxPages = limit
		}
	}
}

// New constructs an Aggregator over the given store.
func New(risks RiskPager, opts ...Option) *Aggregator {
	a := &Aggregator{
		risks:    risks,
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildInbox assembles the worklist. The two status loops run concurrently;
// they share no state and the cross-page consistency contract is already
// eventual. Read-only and safe to poll.
func (a *Aggregator) BuildInbox(ctx context.Context) (*Inbox, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "review.BuildInbox",
		trace.WithAttributes(attribute.Int("inbox.page_size", a.pageSize)))
	defer span.End()

	if a.cache != nil {
		if inbox, ok := a.cache.Get(ctx); ok {
			a.metrics.IncCacheLookup("hit")
			span.SetAttributes(attribute.Bool("inbox.cached", true))
			return inbox, nil
		}
		a.metrics.IncCacheLookup("miss")
	} else {
		a.metrics.IncCacheLookup("bypass")
	}

	var (
		proposed, active           []*models.Risk
		proposedTrunc, activeTrunc bool
		proposedPages, activePages int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		proposed, proposedTrunc, proposedPages, err = a.collect(gctx, models.StatusProposed)
		return err
	})
	g.Go(func() error {
		var err error
		active, activeTrunc, activePages, err = a.collect(gctx, models.StatusActive)
		return err
	})
	if err := g.Wait(); err != nil {
		a.metrics.IncInboxBuild("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox build failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build review inbox")
	}

	if proposed == nil {
		proposed = []*models.Risk{}
	}
	if active == nil {
		active = []*models.Risk{}
	}
	inbox := &Inbox{
		Proposed:        proposed,
		MergeCandidates: active,
		Truncated:       proposedTrunc || activeTrunc,
	}

	a.metrics.ObservePagesFetched(proposedPages + activePages)
	a.metrics.ObserveBuildLatency(time.Since(start))
	span.SetAttributes(
		attribute.Int("inbox.proposed", len(inbox.Proposed)),
		attribute.Int("inbox.merge_candidates", len(inbox.MergeCandidates)),
		attribute.Bool("inbox.truncated", inbox.Truncated),
	)

	if inbox.Truncated {
		a.metrics.IncInboxBuild("truncated")
		if a.logger != nil {
			a.logger.WarnContext(ctx, "review inbox truncated at the page safety limit",
				"max_pages", a.maxPages,
				"proposed", len(inbox.Proposed),
				"merge_candidates", len(inbox.MergeCandidates))
		}
		if a.ops != nil {
			a.ops.Track(ctx, audit.OpsEvent{
				Subject: "review_inbox",
				Action:  string(audit.EventReviewInboxTruncated),
			})
		}
	} else {
		a.metrics.IncInboxBuild("complete")
	}
	span.SetStatus(codes.Ok, "")

	if a.cache != nil {
		a.cache.Set(ctx, inbox)
	}
	return inbox, nil
}

// collect pages through every risk in the given status. It returns the items
// gathered, whether the safety limit cut the loop short, and how many fetches
// were made. TotalPages is re-read from every page because the store
// recomputes it per call.
func (a *Aggregator) collect(ctx context.Context, status models.RiskStatus) ([]*models.Risk, bool, int, error) {
	filter := store.StatusFilter(status)
	var items []*models.Risk
	fetches := 0
	for page := 1; ; page++ {
		if page > a.maxPages {
			return items, true, fetches, nil
		}
		result, err := a.risks.FindPage(ctx, filter, page, a.pageSize)
		if err != nil {
			return nil, false, fetches, fmt.Errorf("page %d of %s risks: %w", page, status, err)
		}
		fetches++
		items = append(items, result.Items...)
		if page >= result.TotalPages {
			return items, false, fetches, nil
		}
	}
}
