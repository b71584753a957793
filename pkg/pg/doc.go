// Package pg wires PostgreSQL through pgx/v5.
//
// Connect opens a pool with retries, Migrate applies embedded goose migrations
// through the same pool, WithTx runs a function inside a transaction, and the
// Is*Error helpers classify driver errors for repositories.
package pg
