// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in internal/store. It is the durable, authoritative
// record of the system; broker and cache state are projections of it.
package postgres
