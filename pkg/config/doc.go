/*
Package config loads the backfill settings from the IMGAPI config file.

The file is the service's own imgapi.config.json; it is decoded with
yaml.v3, which reads JSON unchanged. Only the keys the backfill needs are
mapped:

	{
	  "databaseType": "moray",
	  "mode": "dc",
	  "moray": {
	    "host": "10.99.99.17",
	    "port": 2020,
	    "connectTimeout": 200,
	    "retry": {"minTimeout": 1000, "maxTimeout": 16000}
	  },
	  "database": {"dir": "/data/imgapi/manifests"},
	  "storage": {"local": {"archiveDir": "/data/imgapi/archive"}}
	}

"retry": false disables reconnects. "mode": "dc" turns on restricted
archive ownership.
*/
package config
