// Package blobs is the durable local store of the catalog client: a
// key-addressed store of whole serialized values kept in SQLite.
//
// Each Put replaces the value of a key in a single statement, so a reader sees
// either the previous complete value or the new one. Get reports a key that was
// never written with common.ErrorNotFound; every other failure wraps ErrStorage.
//
//	repo := blobs.NewSQLiteRepository(db)
//	_ = blobs.PutJSON(ctx, repo, "catalog", records)
//	err := blobs.GetJSON(ctx, repo, "catalog", &records)
package blobs
