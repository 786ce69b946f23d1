// Package docstore implements the realtime document store consumed by the
// identity core: keyed JSON documents grouped into collections, equality
// queries over indexed fields, and live per-document subscriptions.
//
// # Layout
//
// Documents live under two-segment paths ("users/<accountID>",
// "hero_slides/<key>"). Each document is one Redis string holding JSON; each
// collection keeps a member set; each indexed field keeps one set per value.
// Writes and deletes PUBLISH an envelope on the document channel so that
// subscribers observe every change in the order Redis emits it.
//
// # What this package must NOT do
//
//   - Enforce uniqueness on indexed fields. Index sets are lookup aids only.
//   - Deliver a subscription callback after [Subscription.Close] returns.
package docstore
