package interfaces

// -----------------------------------------------------------------------------
// ISubscriptionStore keeps each connection's ticker filter keyed by the
// connection id assigned at accept time. The hub reads filters from here on
// every broadcast instead of trusting fields on the connection object.
// -----------------------------------------------------------------------------

type ISubscriptionStore interface {

	// SaveSubscription replaces the filter. An empty list means no filter.
	SaveSubscription(connID string, tickers []string) error

	// LoadSubscription returns the filter, or nil when none is stored.
	LoadSubscription(connID string) ([]string, error)

	// DeleteSubscription is a no-op for unknown ids.
	DeleteSubscription(connID string) error
}
