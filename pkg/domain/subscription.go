package domain

// Callback receives the current values of the subscribed paths, in subscription order.
// A returned error aborts the dispatch that triggered it.
type Callback func(values []any) error

// Unsubscribe removes the registrations added by one Subscribe call.
// Calling it more than once is a no-op.
type Unsubscribe func()
