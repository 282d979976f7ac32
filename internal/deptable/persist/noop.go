package persist

import "context"

// NoopSink discards everything. It is the default when no persistence
// target is configured, so callers never need to nil-check a Sink.
type NoopSink struct{}

func (NoopSink) WriteHeader(context.Context, string) error { return nil }

func (NoopSink) VerifyHeader(context.Context) (string, bool, error) { return "", false, nil }

func (NoopSink) UpsertRow(context.Context, uint32, []byte) error { return nil }

func (NoopSink) SelectBlob(context.Context, uint32) ([]byte, bool, error) { return nil, false, nil }

func (NoopSink) Close() error { return nil }

var _ Sink = NoopSink{}
