package sqs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/queueglue/plugins/logging"
)

// visibilityExtender tracks in-flight messages and extends their visibility
// timeout so they are not redelivered while still being processed.
//
// Extension is best-effort. A message whose extension fails is dropped from
// tracking and may be redelivered once its timeout expires, so consumers
// must be idempotent.
type visibilityExtender struct {
	tracked    map[string]*inFlightMessage
	trackedLen atomic.Int64
	trackedSz  atomic.Int64
	opts       *Options
	logger     logging.Logger
}

func newVisibilityExtender(opts *Options, logger logging.Logger) *visibilityExtender {
	return &visibilityExtender{
		tracked: make(map[string]*inFlightMessage),
		opts:    opts,
		logger:  logger,
	}
}

// HasCapacity reports whether both the outstanding message count and the
// outstanding byte total are below their limits.
func (v *visibilityExtender) HasCapacity() bool {
	return v.trackedLen.Load() < int64(v.opts.maxOutstandingMessages) &&
		v.trackedSz.Load() < int64(v.opts.maxOutstandingBytes)
}

// run owns the tracked map; it must be the only goroutine touching it.
func (v *visibilityExtender) run(ctx context.Context, sourceCh <-chan *inFlightMessage) {
	v.logger.Info("SQS visibility extender started")
	defer v.logger.Info("SQS visibility extender exited")

	interval := max(time.Duration(v.opts.sqsVisibilityTimeoutSeconds/3)*time.Second, 5*time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.sweep(ctx)
		case msg, ok := <-sourceCh:
			if !ok {
				return
			}

			v.track(msg)
		}
	}
}

func (v *visibilityExtender) sweep(ctx context.Context) {
	if len(v.tracked) == 0 {
		return
	}

	v.logger.WithField("count", len(v.tracked)).Debug("Sweeping SQS in-flight messages")

	due := []*inFlightMessage{}

	for _, msg := range v.tracked {
		if msg.Settled() {
			v.untrack(msg)
			continue
		}

		age := time.Since(msg.ReceivedAt()) + time.Duration(v.opts.sqsVisibilityTimeoutSeconds)*time.Second
		if age >= v.opts.maxMessageExtension {
			v.logger.WithField("message_id", msg.MessageID()).Error("SQS message reached the maximum visibility extension, no longer extending")
			v.untrack(msg)
			continue
		}

		if msg.DueForExtension() {
			due = append(due, msg)
		}
	}

	if len(due) == 0 {
		return
	}

	started := time.Now()

	for _, msg := range v.extend(ctx, due) {
		v.untrack(msg)
	}

	v.logger.WithField("elapsed", time.Since(started)).WithField("extended", len(due)).Debug("SQS in-flight sweep completed")
}

// extend extends every message in due, at most three at a time, and returns
// the ones that failed.
func (v *visibilityExtender) extend(ctx context.Context, due []*inFlightMessage) []*inFlightMessage {
	var (
		mu     sync.Mutex
		failed []*inFlightMessage
	)

	g := errgroup.Group{}
	g.SetLimit(3)

	for _, msg := range due {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			if err := msg.Extend(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}

				v.logger.WithField("message_id", msg.MessageID()).Errorf("Failed to extend SQS message visibility, no longer extending: %v", err)

				mu.Lock()
				failed = append(failed, msg)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = g.Wait()

	if ctx.Err() != nil {
		return nil
	}

	return failed
}

func (v *visibilityExtender) track(msg *inFlightMessage) {
	v.trackedLen.Add(1)
	v.trackedSz.Add(msg.Size())

	v.tracked[msg.MessageID()] = msg
}

func (v *visibilityExtender) untrack(msg *inFlightMessage) {
	if _, ok := v.tracked[msg.MessageID()]; !ok {
		return
	}

	v.trackedLen.Add(-1)
	v.trackedSz.Add(-msg.Size())

	delete(v.tracked, msg.MessageID())
}
