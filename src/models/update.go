package models

// -----------------------------------------------------------------------------
// Canonical ingest payloads: a fixed envelope plus the producer's extra fields.
// Extra never contains envelope keys; Payload() merges both back together.
// -----------------------------------------------------------------------------

const (
	IngestKindScore   = "score"
	IngestKindCapture = "capture"
	IngestKindCandles = "candles"
)

// MScoreUpdate is a validated /timed/ingest body.
type MScoreUpdate struct {
	Ticker   string
	Ts       int64
	HTFScore float64
	LTFScore float64
	Extra    map[string]interface{}
}

func (u *MScoreUpdate) Payload() map[string]interface{} {
	out := copyExtra(u.Extra, 4)
	out["ticker"] = u.Ticker
	out["ts"] = u.Ts
	out["htf_score"] = u.HTFScore
	out["ltf_score"] = u.LTFScore
	return out
}

// -----------------------------------------------------------------------------

// MCaptureUpdate is a validated /timed/ingest-capture body. Price is nil when
// the producer omitted it or sent something non-numeric.
type MCaptureUpdate struct {
	Ticker string
	Ts     int64
	Price  *float64
	Extra  map[string]interface{}
}

func (u *MCaptureUpdate) Payload() map[string]interface{} {
	out := copyExtra(u.Extra, 4)
	out["ticker"] = u.Ticker
	out["ts"] = u.Ts
	if u.Price != nil {
		out["price"] = *u.Price
	} else {
		out["price"] = nil
	}
	out["ingest_kind"] = IngestKindCapture
	return out
}

// -----------------------------------------------------------------------------

// MCandleBar is one OHLCV bar. V is nil when volume was missing or not finite.
type MCandleBar struct {
	TF string   `json:"tf"`
	Ts int64    `json:"ts"`
	O  float64  `json:"o"`
	H  float64  `json:"h"`
	L  float64  `json:"l"`
	C  float64  `json:"c"`
	V  *float64 `json:"v"`
}

// MCandleBatch is a validated /timed/ingest-candles body keyed by canonical timeframe.
type MCandleBatch struct {
	Ticker  string
	Ts      int64
	Candles map[string][]MCandleBar
	Extra   map[string]interface{}
}

// Accepted returns the number of bars that survived validation.
func (b *MCandleBatch) Accepted() int {
	n := 0
	for _, bars := range b.Candles {
		n += len(bars)
	}
	return n
}

// Bars flattens the batch.
func (b *MCandleBatch) Bars() []MCandleBar {
	out := make([]MCandleBar, 0, b.Accepted())
	for _, bars := range b.Candles {
		out = append(out, bars...)
	}
	return out
}

// Payload renders tf_candles with a single bar per timeframe collapsed to an object.
func (b *MCandleBatch) Payload() map[string]interface{} {
	tfCandles := make(map[string]interface{}, len(b.Candles))
	for tf, bars := range b.Candles {
		if len(bars) == 1 {
			tfCandles[tf] = bars[0]
		} else {
			tfCandles[tf] = bars
		}
	}

	out := copyExtra(b.Extra, 4)
	out["ticker"] = b.Ticker
	out["ts"] = b.Ts
	out["tf_candles"] = tfCandles
	out["ingest_kind"] = IngestKindCandles
	return out
}

// -----------------------------------------------------------------------------

func copyExtra(extra map[string]interface{}, envelope int) map[string]interface{} {
	out := make(map[string]interface{}, len(extra)+envelope)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------

// MIngestResult is what an ingest call reports back to the producer.
type MIngestResult struct {
	Ticker      string `json:"ticker"`
	Kind        string `json:"kind"`
	Deduped     bool   `json:"deduped,omitempty"`
	KanbanStage string `json:"kanban_stage,omitempty"`
	StageHeld   bool   `json:"stage_held,omitempty"`
	Candles     int    `json:"candles,omitempty"`
}
