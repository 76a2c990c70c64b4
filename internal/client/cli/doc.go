// Package cli provides the interactive catalog client.
//
// App wires configuration, the local SQLite store, the optional remote
// snapshot store and the services of the catalog engine, then runs a REPL.
// Typical flow: load the catalog (remote first, local as fallback), start
// the write-back scheduler, the online status watcher and the import inbox,
// and execute user commands until exit. A final flush runs on the way out.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
