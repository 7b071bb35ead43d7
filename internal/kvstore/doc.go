// Package kvstore is the durable key-value store behind every piece of
// persisted photodrop state: the upload history, the caches, the OAuth token
// and the account flags.
//
// # Areas
//
// Two areas exist. AreaLocal is device-scoped; AreaSync holds the settings
// that follow the user between devices (today only the selected album).
// Each area is a separate Store instance.
//
// # Implementations
//
//   - SQLiteStore: modernc.org/sqlite, schema from internal/migrations.
//     Update runs inside a transaction (dbx.WithTx).
//   - MemoryStore: map-backed, for tests and ephemeral runs.
//
// # Change notifications
//
// Subscribe returns a channel of Change events published after every
// successful write. Delivery is best-effort: a subscriber whose buffer is
// full misses the event. Presentation surfaces use this to refresh views
// without sharing memory with the pipeline.
package kvstore
