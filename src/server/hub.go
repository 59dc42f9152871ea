package server

import (
	"context"
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	"signal-hub/src/helpers"
	"signal-hub/src/interfaces"
	"signal-hub/src/logger"
	"signal-hub/src/metrics"
	"signal-hub/src/models"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
//
// Every mutation of the connection set and every broadcast goes through the
// single events queue and is applied by Run, in arrival order. Subscription
// filters live in the store, keyed by connection id, and are read back for
// each broadcast.
// -----------------------------------------------------------------------------

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventControl
	eventBroadcast
	eventStats
	eventLatest
)

type hubEvent struct {
	kind    eventKind
	client  *Client
	frame   []byte
	payload map[string]interface{}
	tickers []string
	reply   chan interface{}
}

// -----------------------------------------------------------------------------

type Hub struct {
	Config *models.MConfig
	Logger *logger.Logger

	store  interfaces.ISubscriptionStore
	events chan hubEvent

	// Owned by the Run goroutine.
	clients map[string]*Client
	latest  map[string]interface{}

	running atomic.Bool
	stopped chan struct{}
	now     func() time.Time
}

// -----------------------------------------------------------------------------

func NewHub(cfg *models.MConfig, log *logger.Logger, store interfaces.ISubscriptionStore) *Hub {
	queue := cfg.Hub.EventQueueSize
	if queue <= 0 {
		queue = 256
	}
	return &Hub{
		Config:  cfg,
		Logger:  log,
		store:   store,
		events:  make(chan hubEvent, queue),
		clients: make(map[string]*Client),
		latest:  make(map[string]interface{}),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

// Run processes hub events until ctx is cancelled. Open connections are
// closed on exit.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		for id, c := range h.clients {
			c.close()
			h.forget(id)
		}
		close(h.stopped)
	}()

	h.Logger.Info("Hub started")
	for {
		select {
		case <-ctx.Done():
			h.Logger.Info("Hub stopping, closing %d connections", len(h.clients))
			return
		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

// -----------------------------------------------------------------------------

// Running reports whether Run is processing events.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// -----------------------------------------------------------------------------

func (h *Hub) dispatch(ev hubEvent) {
	switch ev.kind {
	case eventRegister:
		h.clients[ev.client.id] = ev.client
		metrics.HubConnections.Set(float64(len(h.clients)))
		h.Logger.Debug("Client %s connected (%d open)", ev.client.id, len(h.clients))

	case eventUnregister:
		if _, ok := h.clients[ev.client.id]; !ok {
			return
		}
		ev.client.close()
		h.forget(ev.client.id)
		metrics.HubConnections.Set(float64(len(h.clients)))
		h.Logger.Debug("Client %s disconnected (%d open)", ev.client.id, len(h.clients))

	case eventControl:
		h.handleControl(ev.client, ev.frame)

	case eventBroadcast:
		h.broadcast(ev.payload)
		ev.reply <- nil

	case eventStats:
		ev.reply <- h.stats()

	case eventLatest:
		ev.reply <- h.snapshot(ev.tickers)
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) forget(id string) {
	delete(h.clients, id)
	if err := h.store.DeleteSubscription(id); err != nil {
		h.Logger.Warning("Failed to drop subscription for %s: %v", id, err)
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) submit(ctx context.Context, ev hubEvent) error {
	select {
	case <-h.stopped:
		return helpers.ErrHubStopped
	default:
	}

	select {
	case h.events <- ev:
		return nil
	case <-h.stopped:
		return helpers.ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) await(ctx context.Context, ev hubEvent) (interface{}, error) {
	ev.reply = make(chan interface{}, 1)
	if err := h.submit(ctx, ev); err != nil {
		return nil, err
	}

	select {
	case v := <-ev.reply:
		return v, nil
	case <-h.stopped:
		return nil, helpers.ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// Connection lifecycle
// -----------------------------------------------------------------------------

// Register adds an accepted connection with no subscription.
func (h *Hub) Register(c *Client) error {
	return h.submit(context.Background(), hubEvent{kind: eventRegister, client: c})
}

// -----------------------------------------------------------------------------

// Unregister removes a connection. Unknown or already removed clients are ignored.
func (h *Hub) Unregister(c *Client) {
	c.close()
	if err := h.submit(context.Background(), hubEvent{kind: eventUnregister, client: c}); err != nil {
		h.Logger.Debug("Unregister %s after hub stop: %v", c.id, err)
	}
}

// -----------------------------------------------------------------------------

// HandleControlMessage queues one inbound text frame from c.
func (h *Hub) HandleControlMessage(c *Client, frame []byte) {
	if err := h.submit(context.Background(), hubEvent{kind: eventControl, client: c, frame: frame}); err != nil {
		h.Logger.Debug("Dropped control frame from %s: %v", c.id, err)
	}
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (h *Hub) handleControl(c *Client, frame []byte) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}

	var msg models.MControlMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		metrics.ControlMessagesTotal.WithLabelValues("malformed").Inc()
		return
	}

	switch msg.Type {
	case models.MessageTypeSubscribe:
		metrics.ControlMessagesTotal.WithLabelValues(msg.Type).Inc()
		tickers := subscriptionTickers(msg.Tickers, h.Config.Hub.MaxSubscriptions)
		if err := h.store.SaveSubscription(c.id, tickers); err != nil {
			h.Logger.Error("Failed to store subscription for %s: %v", c.id, err)
			return
		}
		h.reply(c, models.MSubscribedReply{Type: models.MessageTypeSubscribed, Tickers: tickers, Ts: h.now().UnixMilli()})

	case models.MessageTypePing:
		metrics.ControlMessagesTotal.WithLabelValues(msg.Type).Inc()
		h.reply(c, models.MPongReply{Type: models.MessageTypePong, Ts: h.now().UnixMilli()})

	default:
		metrics.ControlMessagesTotal.WithLabelValues("other").Inc()
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) reply(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.Logger.Error("Failed to encode reply: %v", err)
		return
	}
	if !c.trySend(data) {
		h.Logger.Debug("Reply to %s dropped", c.id)
	}
}

// -----------------------------------------------------------------------------
// Broadcast
// -----------------------------------------------------------------------------

// Broadcast fans payload out to every open connection and returns once the
// hub has processed it. A payload without a type is treated as prices.
func (h *Hub) Broadcast(ctx context.Context, payload map[string]interface{}) error {
	_, err := h.await(ctx, hubEvent{kind: eventBroadcast, payload: payload})
	return err
}

// -----------------------------------------------------------------------------

// Notify lets the in-process hub stand in for a remote push endpoint.
func (h *Hub) Notify(ctx context.Context, payload map[string]interface{}) error {
	return h.Broadcast(ctx, payload)
}

// -----------------------------------------------------------------------------

func (h *Hub) broadcast(payload map[string]interface{}) {
	msgType := payloadType(payload)
	metrics.BroadcastsTotal.WithLabelValues(msgType).Inc()

	data, hasData := pricesData(payload)
	if msgType == models.MessageTypePrices && hasData {
		h.remember(data)
	}

	if len(h.clients) == 0 {
		return
	}

	full, err := json.Marshal(payload)
	if err != nil {
		h.Logger.Error("Failed to encode broadcast: %v", err)
		return
	}

	for id, c := range h.clients {
		if c.closing() {
			metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryDropped).Inc()
			continue
		}

		msg := full
		if msgType == models.MessageTypePrices && payload["data"] != nil {
			subs, err := h.store.LoadSubscription(id)
			if err != nil {
				h.Logger.Warning("Subscription lookup failed for %s, sending unfiltered: %v", id, err)
				subs = nil
			}
			if len(subs) > 0 {
				filtered := filterPrices(data, subs)
				if len(filtered) == 0 {
					metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryFiltered).Inc()
					continue
				}
				msg, err = json.Marshal(withData(payload, filtered))
				if err != nil {
					h.Logger.Error("Failed to encode filtered broadcast: %v", err)
					continue
				}
			}
		}

		if c.trySend(msg) {
			metrics.DeliveriesTotal.WithLabelValues(metrics.DeliverySent).Inc()
		} else {
			metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryDropped).Inc()
		}
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) remember(data map[string]interface{}) {
	for ticker, entry := range data {
		h.latest[ticker] = entry
	}
}

// -----------------------------------------------------------------------------
// Diagnostics
// -----------------------------------------------------------------------------

// Stats lists open connections with their tags.
func (h *Hub) Stats(ctx context.Context) (models.MHubStats, error) {
	v, err := h.await(ctx, hubEvent{kind: eventStats})
	if err != nil {
		return models.MHubStats{}, err
	}
	return v.(models.MHubStats), nil
}

// -----------------------------------------------------------------------------

func (h *Hub) stats() models.MHubStats {
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return h.clients[ids[i]].connectedAt.Before(h.clients[ids[j]].connectedAt)
	})

	details := make([]models.MConnectionInfo, 0, len(ids))
	for _, id := range ids {
		c := h.clients[id]
		tags := []string{"all", "conn:" + id}
		subs, err := h.store.LoadSubscription(id)
		if err != nil {
			h.Logger.Warning("Subscription lookup failed for %s: %v", id, err)
		}
		for _, t := range subs {
			tags = append(tags, "t:"+t)
		}

		state := models.ReadyStateOpen
		if c.closing() {
			state = models.ReadyStateClosing
		}
		details = append(details, models.MConnectionInfo{Tags: tags, ReadyState: state})
	}

	return models.MHubStats{Connections: len(details), Details: details}
}

// -----------------------------------------------------------------------------

// Latest returns the most recent prices entry per ticker. An empty filter
// returns everything seen so far.
func (h *Hub) Latest(ctx context.Context, tickers []string) (map[string]interface{}, error) {
	v, err := h.await(ctx, hubEvent{kind: eventLatest, tickers: tickers})
	if err != nil {
		return nil, err
	}
	return v.(map[string]interface{}), nil
}

// -----------------------------------------------------------------------------

func (h *Hub) snapshot(tickers []string) map[string]interface{} {
	if len(tickers) == 0 {
		out := make(map[string]interface{}, len(h.latest))
		for k, v := range h.latest {
			out[k] = v
		}
		return out
	}
	return filterPrices(h.latest, tickers)
}
