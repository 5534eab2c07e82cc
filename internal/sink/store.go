package sink

import (
	"context"

	"github.com/sells-group/funding-intake/internal/store"
)

// StoreSink writes records to the records table of the run store.
type StoreSink struct {
	store store.Store
}

// NewStoreSink creates a sink over st.
func NewStoreSink(st store.Store) *StoreSink {
	return &StoreSink{store: st}
}

// Name implements Sink.
func (s *StoreSink) Name() string { return "store" }

// Write implements Sink. Records upsert on (table, key), so existingID is
// not needed.
func (s *StoreSink) Write(ctx context.Context, rec store.Record, _ string) (string, error) {
	if err := s.store.WriteRecord(ctx, rec); err != nil {
		return "", err
	}
	return rec.Table + "/" + rec.Key, nil
}
