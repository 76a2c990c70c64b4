// Package client contains the client side of the remote snapshot store and
// the bootstrap of the local catalog database.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) for the remote
//     snapshot store: Download/Upload/Delete of one full JSON array of records
//     at a path, plus Ping for reachability.
//  2. A concrete HTTP implementation (see HTTPClient) speaking the snapshot
//     service protocol: GET/DELETE /api/db?path=..., POST /api/db with
//     {"content": [...], "filename": "..."} and GET /healthz. A bearer token
//     issued by the identity provider is attached to every request.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring a
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Conditions are exposed as sentinel errors matched with errors.Is:
// ErrNotFound (no snapshot yet, callers treat it as empty), ErrMalformedPayload,
// ErrUnavailable and ErrUnauthorized. IsTransport groups the last two.
package client
