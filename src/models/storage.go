package models

// MIngestReceipt records one accepted ingest call; ReceiptID dedupes repeats.
type MIngestReceipt struct {
	ReceiptID   string
	Ticker      string
	Kind        string
	Ts          int64
	Bucket5m    int64
	ReceivedTs  int64
	PayloadHash string
	PayloadJSON string
}

// MTrailPoint is the per-update history row for a ticker.
type MTrailPoint struct {
	Ticker      string
	Ts          int64
	Kind        string
	Price       *float64
	HTFScore    *float64
	LTFScore    *float64
	State       string
	KanbanStage string
	PayloadJSON string
}

// MLatest is the most recent accepted state per ticker.
type MLatest struct {
	Ticker      string
	Ts          int64
	KanbanStage string
	PayloadJSON string
}
