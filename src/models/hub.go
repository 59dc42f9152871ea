package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Client protocol (JSON text frames)
// -----------------------------------------------------------------------------

const (
	MessageTypePrices     = "prices"
	MessageTypeSubscribe  = "subscribe"
	MessageTypeSubscribed = "subscribed"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

// MControlMessage is anything a client sends. Tickers stays raw so a non-array
// value clears the filter instead of making the whole frame undecodable.
type MControlMessage struct {
	Type    string          `json:"type"`
	Tickers json.RawMessage `json:"tickers"`
}

type MSubscribedReply struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers"`
	Ts      int64    `json:"ts"`
}

type MPongReply struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

// -----------------------------------------------------------------------------
// Diagnostics
// -----------------------------------------------------------------------------

// Mirrors the browser WebSocket readyState values.
const (
	ReadyStateOpen    = 1
	ReadyStateClosing = 2
)

type MConnectionInfo struct {
	Tags       []string `json:"tags"`
	ReadyState int      `json:"readyState"`
}

type MHubStats struct {
	Connections int               `json:"connections"`
	Details     []MConnectionInfo `json:"details"`
}
