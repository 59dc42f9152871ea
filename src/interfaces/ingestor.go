package interfaces

import (
	"context"

	"signal-hub/src/models"
)

// -----------------------------------------------------------------------------
// IIngestor validates, stores and announces one producer update of a kind
// (score, capture or candles).
// -----------------------------------------------------------------------------

type IIngestor interface {
	Ingest(ctx context.Context, kind string, body map[string]interface{}) (*models.MIngestResult, error)
}
