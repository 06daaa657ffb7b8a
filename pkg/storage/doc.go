/*
Package storage provides the BoltDB-backed object store behind the
networked record store server.

Objects are untyped JSON documents kept in one bbolt bucket per record
store bucket (for image records, "imgapi_images"), keyed by uuid:

	┌──────────────── BOLTDB FILE ────────────────┐
	│  imgapi_images                               │
	│    47e6af92-daf0-... → {"uuid": ..., ...}    │
	│    c58161c0-2547-... → {"uuid": ..., ...}    │
	└──────────────────────────────────────────────┘

Reads run in db.View transactions and iterate in key order; writes run in
db.Update and create the bucket on first use. Values are decoded with
json.Number so integer fields keep full precision.
*/
package storage
