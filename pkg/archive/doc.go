/*
Package archive writes canonical image manifests into the local archive
directory.

# Layout

	<root>/
	  47e/
	    47e6af92-daf0-11e0-ac11-473ca1173ab0.json
	  c58/
	    c58161c0-2547-11e2-a75e-9fdca1940570.json

The shard directory is always the first three characters of the uuid,
which bounds the number of entries per directory for large image sets.

# Write sequence

 1. Compute the entry path from the uuid.
 2. MkdirAll the shard directory.
 3. Remove any existing entry.
 4. Write the JSON text through renameio (temp file + fsync + rename).
 5. In restricted-ownership mode, chown the entry and then the shard
    directory to the cached unprivileged account.

The account is resolved through an AccountCache owned by the caller, so a
run performs the passwd lookup at most once.
*/
package archive
