// Package notifier renders order notifications and delivers them.
//
// A notification is rendered from a normalized record using a fixed
// multi-line template. The timestamp is taken at render time, so the same
// record rendered twice carries two different times; the delivery ledger,
// not the message, is what prevents duplicates.
//
// # Delivery
//
// Each Notify call makes a single attempt through a transport.Sender. There
// is no retry queue: a failed send is reported as ErrDelivery and the
// caller decides whether the record counts as processed.
//
// # Throttling
//
// An optional token bucket spaces consecutive sends. Waiting honours the
// caller's context.
package notifier
