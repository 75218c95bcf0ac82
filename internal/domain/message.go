package domain

import "context"

// RawMessage is one message read from the source topic, carrying an encoded
// reading batch. Commit acknowledges the message after its report is loaded;
// it is nil for sources without offset tracking.
type RawMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Commit    func(ctx context.Context) error
}
