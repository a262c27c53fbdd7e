package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bbtrace/bbtrace/internal/audit"
	"github.com/bbtrace/bbtrace/internal/shm"
)

const (
	defaultAttachInitialInterval = 50 * time.Millisecond
	defaultAttachMaxInterval     = 2 * time.Second
)

// Coordinator manages the create-or-attach race on a channel's shared
// memory segment: whichever of the agent or the viewer reaches the
// channel name first creates it, and the other attaches with bounded
// retry.
type Coordinator struct {
	logger *slog.Logger
	audit  *audit.Logger
}

// NewCoordinator builds a Coordinator. A nil logger falls back to
// slog.Default(). auditLogger may be nil, in which case no control-plane
// events are recorded.
func NewCoordinator(logger *slog.Logger, auditLogger *audit.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{logger: logger, audit: auditLogger}
}

// CreateOrAttach creates channelName's segment, or attaches to it if
// another process has already created it. The created return value tells
// the caller whether it is responsible for the segment's header (only the
// creator calls Segment.InitHeader — which CreateOrAttach has already done
// on its behalf when created is true).
func (c *Coordinator) CreateOrAttach(channelName string, producerPID uint32) (seg *shm.Segment, created bool, err error) {
	channel := ChannelHash(channelName)

	s, cerr := shm.CreateSegment(channelName)
	if cerr == nil {
		s.InitHeader(channel, producerPID)
		c.logger.Info("session: created channel segment", slog.String("channel", channelName))
		c.logSegmentCreated(channelName, producerPID)
		return s, true, nil
	}

	if errors.Is(cerr, shm.ErrAlreadyExists) && s != nil {
		if verr := s.Verify(channel); verr != nil {
			s.Close()
			return nil, false, fmt.Errorf("session: create-or-attach %q: %w", channelName, verr)
		}
		c.logger.Info("session: attached to existing channel segment", slog.String("channel", channelName))
		c.logSegmentAttached(channelName)
		return s, false, nil
	}

	return nil, false, fmt.Errorf("session: create-or-attach %q: %w", channelName, cerr)
}

// AttachWithBackoff polls for channelName's segment with exponential
// backoff until it appears and verifies, ctx is cancelled, or maxElapsed
// has passed since the first attempt. It is how the viewer waits out the
// race against the agent creating the segment once drrun has started the
// target process: the agent may take anywhere from milliseconds to a few
// seconds to reach its first instrumented basic block.
func (c *Coordinator) AttachWithBackoff(ctx context.Context, channelName string, maxElapsed time.Duration) (*shm.Segment, error) {
	channel := ChannelHash(channelName)
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultAttachInitialInterval
	b.MaxInterval = defaultAttachMaxInterval
	b.MaxElapsedTime = maxElapsed

	var seg *shm.Segment
	attempt := func() error {
		s, err := shm.OpenSegment(channelName)
		if err != nil {
			return err
		}
		if verr := s.Verify(channel); verr != nil {
			s.Close()
			// A verification failure (bad magic, wrong channel, capacity
			// mismatch) will never resolve by waiting longer; stop the
			// retry loop immediately rather than burning the backoff
			// budget on a condition that cannot change.
			return backoff.Permanent(verr)
		}
		seg = s
		return nil
	}

	if err := backoff.Retry(attempt, backoff.WithContext(b, ctx)); err != nil {
		c.logAttachRetryExhausted(channelName, time.Since(start), err)
		return nil, fmt.Errorf("session: attach %q: %w", channelName, err)
	}

	c.logger.Info("session: attached to channel", slog.String("channel", channelName))
	c.logSegmentAttached(channelName)
	return seg, nil
}

func (c *Coordinator) logSegmentCreated(channelName string, producerPID uint32) {
	if c.audit == nil {
		return
	}
	if err := c.audit.LogSegmentCreated(channelName, producerPID); err != nil {
		c.logger.Warn("session: failed to write audit entry", slog.String("kind", string(audit.KindSegmentCreated)), slog.Any("error", err))
	}
}

func (c *Coordinator) logSegmentAttached(channelName string) {
	if c.audit == nil {
		return
	}
	if err := c.audit.LogSegmentAttached(channelName); err != nil {
		c.logger.Warn("session: failed to write audit entry", slog.String("kind", string(audit.KindSegmentAttached)), slog.Any("error", err))
	}
}

func (c *Coordinator) logAttachRetryExhausted(channelName string, elapsed time.Duration, lastErr error) {
	if c.audit == nil {
		return
	}
	if err := c.audit.LogAttachRetryExhausted(channelName, elapsed.Milliseconds(), lastErr); err != nil {
		c.logger.Warn("session: failed to write audit entry", slog.String("kind", string(audit.KindAttachRetryExhausted)), slog.Any("error", err))
	}
}
