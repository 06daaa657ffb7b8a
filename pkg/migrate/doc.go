/*
Package migrate drives the archive backfill.

A Migrator reads the full record sequence from a source.Source, then
feeds records one at a time through normalize.Normalize and an Archiver
(normally an archive.Writer). The first failure stops the run; entries
already written stay on disk and the next run overwrites them.

# Run states

	Idle ──► Enumerating ──► Processing ──► Done
	              │               │
	              └──────► Failed ◄┘

Enumerating fails straight away when the source fails before delivering
anything. Records delivered before a source failure are still processed,
in order, and the run then fails with the source error.

NewFromConfig picks the source from config.Config.DatabaseType and
creates the account cache used for restricted ownership.
*/
package migrate
