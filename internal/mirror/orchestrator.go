package mirror

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"tgmirror/internal/metrics"
)

// CursorName is the global_vars key holding the last synchronized post id.
const CursorName = "last_parsed_msg_id"

// OrchestratorConfig controls the sync loop.
type OrchestratorConfig struct {
	// BoundMargin is added to the newest post id when discovering the
	// pagination bound; media posts consume ids of their own between text
	// posts, so the newest page understates the true ceiling.
	BoundMargin int
	// PacingMin/PacingMax bound the randomized inter-page sleep.
	PacingMin time.Duration
	PacingMax time.Duration
	// AttachmentConcurrency caps parallel media ingestion per record.
	AttachmentConcurrency int
	// ProgressBuffer sizes the event channel.
	ProgressBuffer int
}

// Orchestrator drives the end-to-end sync loop: bound discovery, page
// iteration from the cursor, per-record ingestion and upsert, durable
// cursor commits, and pacing. One pass per channel may run at a time; the
// cursor is the serialization point and callers must not overlap passes.
type Orchestrator struct {
	source   PageSource
	ingester *Ingester
	messages MessageStore
	cursor   CursorStore
	cfg      OrchestratorConfig
	logger   *zap.Logger

	sleep   func(ctx context.Context, d time.Duration) error
	randInt func(n int) int
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	source PageSource,
	ingester *Ingester,
	messages MessageStore,
	cursor CursorStore,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.BoundMargin <= 0 {
		cfg.BoundMargin = 10
	}
	if cfg.PacingMin <= 0 {
		cfg.PacingMin = 2 * time.Second
	}
	if cfg.PacingMax < cfg.PacingMin {
		cfg.PacingMax = cfg.PacingMin + 3*time.Second
	}
	if cfg.AttachmentConcurrency <= 0 {
		cfg.AttachmentConcurrency = 3
	}
	if cfg.ProgressBuffer <= 0 {
		cfg.ProgressBuffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		source:   source,
		ingester: ingester,
		messages: messages,
		cursor:   cursor,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
		randInt:  rand.Intn,
	}
}

// Run starts a sync pass and returns its progress stream. The channel is
// closed when the pass finishes; on fatal abort the last event carries the
// error and the cursor stays at its last committed value, so a re-run
// resumes without reprocessing committed work. Full mode starts from post
// id zero, incremental mode from the persisted cursor.
func (o *Orchestrator) Run(ctx context.Context, full bool) <-chan Event {
	events := make(chan Event, o.cfg.ProgressBuffer)
	go func() {
		defer close(events)
		if err := o.run(ctx, full, events); err != nil {
			metrics.RecordSyncPass("failed")
			events <- Event{Err: err.Error()}
			return
		}
		metrics.RecordSyncPass("completed")
	}()
	return events
}

// LastSynced returns the persisted cursor, defaulting to 1 when the
// channel has never been synchronized.
func (o *Orchestrator) LastSynced(ctx context.Context) (int64, error) {
	raw, ok, err := o.cursor.Get(ctx, CursorName)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed cursor %q: %w", raw, err)
	}
	return value, nil
}

func (o *Orchestrator) run(ctx context.Context, full bool, events chan<- Event) error {
	lastID, err := o.discoverBound(ctx)
	if err != nil {
		return err
	}
	if lastID == 0 {
		o.logger.Info("channel has no posts, nothing to sync")
		return nil
	}

	cursor := int64(0)
	if !full {
		cursor, err = o.LastSynced(ctx)
		if err != nil {
			return err
		}
	}
	o.logger.Info("sync pass starting",
		zap.Bool("full", full),
		zap.Int64("cursor", cursor),
		zap.Int64("last_id", lastID),
	)

	var (
		firstID    int64
		total      int
		skippedSet = make(map[int64]struct{})
	)
	for cursor < lastID {
		if err := ctx.Err(); err != nil {
			return err
		}
		posts, err := o.source.After(ctx, cursor)
		if err != nil {
			return err
		}
		metrics.RecordPageFetched()
		if len(posts) == 0 {
			o.logger.Info("no posts past cursor, pass complete", zap.Int64("cursor", cursor))
			return nil
		}
		sort.Slice(posts, func(i, j int) bool { return posts[i].SourceID < posts[j].SourceID })
		if firstID == 0 {
			firstID = posts[0].SourceID
		}

		current, err := o.processBatch(ctx, posts, skippedSet)
		if err != nil {
			return err
		}
		total += len(current)

		next := commitTarget(cursor, current, posts)
		if next <= cursor {
			// Every post on the page sits at or below the cursor, so the
			// next iteration would refetch the same page forever.
			return fmt.Errorf("page after %d did not advance the cursor (highest parsed id %d)", cursor, next-1)
		}
		if err := o.cursor.Set(ctx, CursorName, strconv.FormatInt(next, 10)); err != nil {
			return err
		}
		cursor = next

		events <- Event{
			CurrentIDs:     current,
			SkippedIDs:     sortedIDs(skippedSet),
			FirstID:        firstID,
			LastID:         lastID,
			TotalPersisted: total,
		}

		if cursor >= lastID {
			break
		}
		if err := o.pace(ctx); err != nil {
			return err
		}
	}
	o.logger.Info("sync pass finished",
		zap.Int64("cursor", cursor),
		zap.Int("persisted", total),
		zap.Int("skipped", len(skippedSet)),
	)
	return nil
}

// discoverBound primes the loop with the newest page and returns the
// highest known post id plus the safety margin. Zero means an empty feed.
func (o *Orchestrator) discoverBound(ctx context.Context) (int64, error) {
	newest, err := o.source.Newest(ctx)
	if err != nil {
		return 0, err
	}
	var maxID int64
	for _, post := range newest {
		if post.SourceID > maxID {
			maxID = post.SourceID
		}
	}
	if maxID == 0 {
		return 0, nil
	}
	return maxID + int64(o.cfg.BoundMargin), nil
}

// processBatch runs INGEST_PERSIST for one page in ascending id order.
// Per-record failures land in skipped and never abort the batch; fatal
// errors (storage down, connectivity loss) propagate.
func (o *Orchestrator) processBatch(ctx context.Context, posts []ChannelPost, skipped map[int64]struct{}) ([]int64, error) {
	var current []int64
	for _, post := range posts {
		if post.Text == "" {
			skipped[post.SourceID] = struct{}{}
			metrics.RecordRecordSkipped()
			continue
		}
		attachments, err := o.ingestRecord(ctx, post)
		if err == nil {
			_, err = o.messages.Upsert(ctx, post, attachments)
		}
		if err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			o.logger.Warn("record skipped",
				zap.Int64("source_id", post.SourceID),
				zap.Error(err),
			)
			skipped[post.SourceID] = struct{}{}
			metrics.RecordRecordSkipped()
			continue
		}
		current = append(current, post.SourceID)
		metrics.RecordMessageUpserted()
	}
	return current, nil
}

// ingestRecord ingests a record's media URLs with bounded concurrency,
// preserving their order. Oversized attachments are dropped and the
// message proceeds without them; any other ingestion error fails the
// record.
func (o *Orchestrator) ingestRecord(ctx context.Context, post ChannelPost) ([]Attachment, error) {
	if len(post.MediaURLs) == 0 {
		return nil, nil
	}

	type outcome struct {
		att Attachment
		err error
	}
	outcomes := make([]outcome, len(post.MediaURLs))
	sem := make(chan struct{}, o.cfg.AttachmentConcurrency)
	var wg sync.WaitGroup
	for idx, url := range post.MediaURLs {
		wg.Add(1)
		go func(idx int, url string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			att, err := o.ingester.Ingest(ctx, url)
			outcomes[idx] = outcome{att: att, err: err}
		}(idx, url)
	}
	wg.Wait()

	attachments := make([]Attachment, 0, len(outcomes))
	for i, out := range outcomes {
		switch {
		case out.err == nil:
			attachments = append(attachments, out.att)
		case IsOversize(out.err):
			o.logger.Warn("oversized attachment dropped",
				zap.Int64("source_id", post.SourceID),
				zap.String("url", post.MediaURLs[i]),
			)
		default:
			return nil, out.err
		}
	}
	return attachments, nil
}

func (o *Orchestrator) pace(ctx context.Context) error {
	window := o.cfg.PacingMax - o.cfg.PacingMin
	wait := o.cfg.PacingMin
	if window > 0 {
		wait += time.Duration(o.randInt(int(window) + 1))
	}
	return o.sleep(ctx, wait)
}

// commitTarget picks the next cursor value for a committed batch. With
// successes the cursor moves past the highest persisted id. A batch with
// records but no successes still advances past its highest parsed id:
// stalling on a skip-only page would retry it forever, and the skipped
// ids remain visible in every progress event.
func commitTarget(cursor int64, current []int64, posts []ChannelPost) int64 {
	if len(current) > 0 {
		return current[len(current)-1] + 1
	}
	highest := cursor
	for _, post := range posts {
		if post.SourceID > highest {
			highest = post.SourceID
		}
	}
	return highest + 1
}

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
