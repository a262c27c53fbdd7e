package audit

// SegmentCreatedPayload records the creation of a channel segment.
type SegmentCreatedPayload struct {
	Channel     string `json:"channel"`
	ProducerPID uint32 `json:"producer_pid"`
}

// SegmentAttachedPayload records an attach to an existing channel segment.
type SegmentAttachedPayload struct {
	Channel string `json:"channel"`
}

// RangesAddedPayload records an operator adding address ranges to the
// active filter.
type RangesAddedPayload struct {
	Count int `json:"count"`
}

// RangesClearedPayload records an operator clearing the active filter.
type RangesClearedPayload struct{}

// AttachRetryExhaustedPayload records an attach loop giving up.
type AttachRetryExhaustedPayload struct {
	Channel   string `json:"channel"`
	ElapsedMs int64  `json:"elapsed_ms"`
	LastErr   string `json:"last_error"`
}

// LogSegmentCreated appends a segment_created entry.
func (l *Logger) LogSegmentCreated(channel string, producerPID uint32) error {
	_, err := l.Append(KindSegmentCreated, SegmentCreatedPayload{Channel: channel, ProducerPID: producerPID})
	return err
}

// LogSegmentAttached appends a segment_attached entry.
func (l *Logger) LogSegmentAttached(channel string) error {
	_, err := l.Append(KindSegmentAttached, SegmentAttachedPayload{Channel: channel})
	return err
}

// LogRangesAdded appends a ranges_added entry.
func (l *Logger) LogRangesAdded(count int) error {
	_, err := l.Append(KindRangesAdded, RangesAddedPayload{Count: count})
	return err
}

// LogRangesCleared appends a ranges_cleared entry.
func (l *Logger) LogRangesCleared() error {
	_, err := l.Append(KindRangesCleared, RangesClearedPayload{})
	return err
}

// LogAttachRetryExhausted appends an attach_retry_exhausted entry.
func (l *Logger) LogAttachRetryExhausted(channel string, elapsedMs int64, lastErr error) error {
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	_, err := l.Append(KindAttachRetryExhausted, AttachRetryExhaustedPayload{Channel: channel, ElapsedMs: elapsedMs, LastErr: msg})
	return err
}
