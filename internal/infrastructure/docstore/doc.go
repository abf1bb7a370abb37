// Package docstore mirrors display-device datasets into Firestore for the
// dashboard. Each dataset becomes one document in a single collection,
// keyed by a fresh UUID. The mirror is a secondary sink; its failures are
// logged by callers and never block the relational write path.
package docstore
