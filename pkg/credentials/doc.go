/*
Package credentials manages the pool of upstream API keys and the health
counters that decide which key is tried first.

Every key is a Credential persisted in a Store. After each upstream attempt
the proxy calls RecordOutcome, which either resets the key's error streak
(success) or extends it (failure). Rank orders the active keys so that keys
with the shortest error streak, then the least total usage, are tried first.

Backends:

  - SQLiteStore: durable, uses modernc.org/sqlite by default or
    github.com/mattn/go-sqlite3 when Driver is "sqlite3". The schema is
    managed by embedded golang-migrate migrations.
  - MemoryStore: process-local, for tests and ephemeral deployments.

Keys are registered with Bootstrap from environment lists or a keys file.
KeysFileWatcher re-applies the keys file on change and Reporter publishes a
periodic PoolSnapshot.

Removal is always a soft delete; no operation in this package deletes a row.
*/
package credentials
