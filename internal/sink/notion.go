package sink

import (
	"context"

	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/internal/store"
	"github.com/sells-group/funding-intake/pkg/notion"
)

// NotionSink writes records as pages of the database mapped to each table.
type NotionSink struct {
	client    notion.Client
	databases map[string]string
}

// NewNotionSink creates a sink. databases maps table names to database IDs.
func NewNotionSink(client notion.Client, databases map[string]string) *NotionSink {
	return &NotionSink{client: client, databases: databases}
}

// Name implements Sink.
func (s *NotionSink) Name() string { return "notion" }

// Write implements Sink.
func (s *NotionSink) Write(ctx context.Context, rec store.Record, existingID string) (string, error) {
	dbID := s.databases[rec.Table]
	if dbID == "" {
		return "", resilience.Configf("notion sink", "notion.databases.%s is not set", rec.Table)
	}

	titleKey := "name"
	if rec.Result != nil {
		titleKey = rec.Result.TitleKey()
	}
	return s.client.UpsertRecord(ctx, notion.Record{
		DatabaseID: dbID,
		PageID:     existingID,
		TitleKey:   titleKey,
		Data:       rec.Data,
	})
}
