// Package runner drives the per-identifier collection loop: pacing, session
// rotation, fetch, schema resolution, normalization, and persistence, with
// block-recovery cooldowns and a resumable offset.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/minjk-dev/go-scrape-musinsa/config"
	"github.com/minjk-dev/go-scrape-musinsa/fetcher"
	"github.com/minjk-dev/go-scrape-musinsa/models"
	"github.com/minjk-dev/go-scrape-musinsa/pacing"
	"github.com/minjk-dev/go-scrape-musinsa/resolver"
	"github.com/minjk-dev/go-scrape-musinsa/session"
	"github.com/minjk-dev/go-scrape-musinsa/store"
)

// Pause taken while swapping identities on a scheduled rotation.
const (
	rotationPauseMin = 3 * time.Second
	rotationPauseMax = 5 * time.Second
)

// Runner coordinates one collection run over an identifier list.
type Runner struct {
	cfg       *config.Config
	sink      store.Sink
	metrics   *Metrics
	transport http.RoundTripper
}

// New builds a runner. metrics may be nil.
func New(cfg *config.Config, sink store.Sink, metrics *Metrics) *Runner {
	return &Runner{cfg: cfg, sink: sink, metrics: metrics}
}

// SetTransport overrides the HTTP transport used by worker sessions.
// Intended for tests that stub the network.
func (r *Runner) SetTransport(rt http.RoundTripper) {
	r.transport = rt
}

type job struct {
	index int
	id    string
}

type counters struct {
	attempted       atomic.Int64
	persisted       atomic.Int64
	duplicates      atomic.Int64
	softMisses      atomic.Int64
	blocks          atomic.Int64
	transportErrors atomic.Int64
	persistErrors   atomic.Int64
	rotations       atomic.Int64
}

// Run processes the identifier list from the resume offset onward. The
// resume offset is the persisted row count, read once here; if it already
// covers the list, no requests are issued.
func (r *Runner) Run(ctx context.Context, ids []string) (*models.RunResult, error) {
	result := &models.RunResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		Total:     len(ids),
	}
	log := slog.With(slog.String("run_id", result.RunID))

	resume, err := r.sink.CountProducts(ctx)
	if err != nil {
		return nil, err
	}
	result.ResumeOffset = resume

	if resume >= len(ids) {
		log.Info("nothing to collect, persisted count covers the identifier list",
			slog.Int("persisted", resume),
			slog.Int("identifiers", len(ids)),
		)
		result.EndTime = time.Now()
		return result, nil
	}

	log.Info("starting collection",
		slog.Int("identifiers", len(ids)),
		slog.Int("resume_offset", resume),
		slog.Int("workers", r.cfg.Workers),
	)

	seen, err := lru.New[string, struct{}](r.cfg.DedupeSize)
	if err != nil {
		return nil, err
	}

	totals := &counters{}
	jobs := make(chan job)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := resume; i < len(ids); i++ {
			select {
			case jobs <- job{index: i, id: ids[i]}:
			case <-runCtx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < r.cfg.Workers; i++ {
		w := r.newWorker(i+1, log, seen, totals)
		g.Go(func() error {
			return w.run(runCtx, jobs)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.EndTime = time.Now()
	result.Attempted = int(totals.attempted.Load())
	result.Persisted = int(totals.persisted.Load())
	result.Duplicates = int(totals.duplicates.Load())
	result.SoftMisses = int(totals.softMisses.Load())
	result.Blocks = int(totals.blocks.Load())
	result.TransportErrors = int(totals.transportErrors.Load())
	result.PersistErrors = int(totals.persistErrors.Load())
	result.Rotations = int(totals.rotations.Load())
	return result, nil
}

// worker owns one session lineage, pacer, and fetcher. With a single worker
// the run is strictly sequential; additional workers each carry independent
// pacing and identity state.
type worker struct {
	cfg      *config.Config
	sink     store.Sink
	metrics  *Metrics
	totals   *counters
	seen     *lru.Cache[string, struct{}]
	log      *slog.Logger
	pacer    *pacing.Sampler
	fetch    *fetcher.Fetcher
	sessions *session.Manager
	sess     *session.Session
	requests int
}

func (r *Runner) newWorker(id int, log *slog.Logger, seen *lru.Cache[string, struct{}], totals *counters) *worker {
	pacer := pacing.New()
	sessions := session.NewManager(r.cfg.Timeout, r.cfg.BaseURL+"/", r.cfg.RotateMin, r.cfg.RotateMax)
	if r.transport != nil {
		sessions.SetTransport(r.transport)
	}
	return &worker{
		cfg:      r.cfg,
		sink:     r.sink,
		metrics:  r.metrics,
		totals:   totals,
		seen:     seen,
		log:      log.With(slog.Int("worker", id)),
		pacer:    pacer,
		fetch:    fetcher.New(r.cfg, pacer),
		sessions: sessions,
	}
}

func (w *worker) run(ctx context.Context, jobs <-chan job) error {
	w.sess = w.sessions.New()
	for j := range jobs {
		if ctx.Err() != nil {
			return nil
		}
		w.processItem(ctx, j)
	}
	return nil
}

// processItem runs the state machine for one identifier. It returns once
// the identifier is persisted, skipped, or the context is cancelled; an
// HTTP-level block signal retries the same identifier after cooldown, a
// block-page signature skips it.
func (w *worker) processItem(ctx context.Context, j job) {
	if _, dup := w.seen.Get(j.id); dup {
		w.log.Debug("duplicate identifier in input, skipping", slog.String("id", j.id))
		w.totals.duplicates.Add(1)
		return
	}
	w.seen.Add(j.id, struct{}{})
	w.totals.attempted.Add(1)

	log := w.log.With(slog.String("id", j.id), slog.Int("index", j.index))

	var retry *backoff.ExponentialBackOff
	retriesLeft := w.cfg.TransportRetries

	for {
		if err := sleepCtx(ctx, w.pacer.NextDelay()); err != nil {
			return
		}
		if w.sessions.ShouldRotate(w.requests) {
			if err := sleepCtx(ctx, w.pacer.Uniform(rotationPauseMin, rotationPauseMax)); err != nil {
				return
			}
			w.rotate("scheduled")
		}

		res := w.fetch.FetchDetail(ctx, w.sess, j.id)
		w.requests++
		w.metrics.IncRequest("detail")
		w.metrics.ObserveDuration(res.Latency)

		switch res.Outcome {
		case fetcher.OutcomeOK:
			w.handleResolved(ctx, log, j.id, res.Payload)
			return

		case fetcher.OutcomeSoftMiss:
			log.Warn("soft miss, skipping identifier",
				slog.String("reason", res.Reason),
				slog.Int("status", res.Status),
			)
			w.metrics.IncSoftMiss(res.Reason)
			w.totals.softMisses.Add(1)
			return

		case fetcher.OutcomeTransport:
			label := fetcher.TransportLabel(res.Err)
			w.metrics.IncTransportError(label)
			w.totals.transportErrors.Add(1)
			if retriesLeft > 0 {
				retriesLeft--
				if retry == nil {
					retry = w.newRetryBackoff()
				}
				delay := retry.NextBackOff()
				log.Warn("transport error, retrying identifier",
					slog.String("class", label),
					slog.Duration("backoff", delay),
					slog.Any("error", res.Err),
				)
				if err := sleepCtx(ctx, delay); err != nil {
					return
				}
				continue
			}
			log.Warn("transport error, skipping identifier",
				slog.String("class", label),
				slog.Any("error", res.Err),
			)
			if err := sleepCtx(ctx, w.cfg.TransportRecovery); err != nil {
				return
			}
			return

		case fetcher.OutcomeBlocked:
			w.metrics.IncBlock(res.Block.String())
			w.totals.blocks.Add(1)
			if res.Block == fetcher.BlockHTTP {
				log.Warn("block signal, cooling down and retrying identifier",
					slog.Int("status", res.Status),
					slog.Duration("cooldown", w.cfg.CooldownHTTP),
				)
				if err := sleepCtx(ctx, w.cfg.CooldownHTTP); err != nil {
					return
				}
				w.rotate("blocked")
				continue
			}
			log.Warn("block page detected, cooling down and skipping identifier",
				slog.String("title", res.Title),
				slog.Duration("cooldown", w.cfg.CooldownPage),
			)
			if err := sleepCtx(ctx, w.cfg.CooldownPage); err != nil {
				return
			}
			w.rotate("blocked")
			return
		}
	}
}

func (w *worker) handleResolved(ctx context.Context, log *slog.Logger, id string, payload map[string]any) {
	rec, err := resolver.Resolve(payload, id)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			log.Warn("no payload shape matched, skipping identifier")
			w.metrics.IncSoftMiss("schema_mismatch")
			w.totals.softMisses.Add(1)
			return
		}
		log.Error("resolve failed", slog.Any("error", err))
		w.totals.softMisses.Add(1)
		return
	}

	tags := w.fetch.FetchTags(ctx, w.sess, id)
	w.metrics.IncRequest("tags")
	rec.Style = strings.Join(tags, ",")

	inserted, err := w.sink.InsertProduct(ctx, rec)
	if err != nil {
		log.Error("persist failed", slog.Any("error", err))
		w.totals.persistErrors.Add(1)
		return
	}
	if !inserted {
		log.Debug("identifier already persisted")
		w.totals.duplicates.Add(1)
		return
	}
	w.totals.persisted.Add(1)
	w.metrics.IncPersisted()
	log.Debug("persisted", slog.String("name", rec.ProductName), slog.Int("tags", len(tags)))
}

func (w *worker) rotate(reason string) {
	w.sess = w.sessions.New()
	w.totals.rotations.Add(1)
	w.metrics.IncRotation()
	w.log.Info("session rotated", slog.String("reason", reason), slog.Int("session", w.sess.ID))
}

func (w *worker) newRetryBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.cfg.RetryBackoff
	bo.MaxInterval = w.cfg.RetryBackoffMax
	bo.MaxElapsedTime = 0
	return bo
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
