// Package source enumerates image records from one of the two record
// backends: the networked record store (MoraySource) or a local
// directory of "<uuid>.raw" JSON files (LocalSource).
//
// Both variants implement Source and return the whole record sequence
// at once, so the migration driver does not care which backend it reads.
package source
