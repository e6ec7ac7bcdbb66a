// Package storage provides database plumbing for the content tree service:
// connection management with optional read replicas, schema migrations, and
// transaction helpers with serialization-failure retry.
//
// # Connections
//
// NewConnectionManager opens the primary and any configured replicas and
// applies pool settings uniformly:
//
//	cm, err := storage.NewConnectionManager(storage.ConnectionConfig{
//		PrimaryURL:  "postgres://localhost/arbor",
//		ReplicaURLs: []string{"postgres://replica:5432/arbor"},
//		MaxConns:    20,
//	}, log)
//
// Primary() returns the writer; Replica() round-robins across healthy
// replicas and falls back to the primary when none are available.
// StartHealthCheckRoutine pings every connection on an interval and marks
// replicas in and out of rotation.
//
// # Migrations
//
// RunMigrations applies the ordered, versioned schema migrations inside a
// transaction each, recording them in schema_migrations. Migrations are
// append-only; already-applied versions are skipped.
//
// # Transactions
//
// RunTx wraps a function in BEGIN/COMMIT with rollback on error or panic,
// retrying a bounded number of times when the database reports a
// serialization failure or deadlock. Callers that exhaust the retries get
// ErrTransientConflict.
package storage
