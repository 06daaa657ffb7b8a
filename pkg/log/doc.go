/*
Package log provides structured logging for imgapi-backfill using zerolog.

The log package wraps zerolog with a package-level Logger, a one-shot Init
for level and output format, and child-logger helpers that stamp the
fields the backfill pipeline cares about (component, image uuid, backend).

# Architecture

	┌──────────────────── LOGGING ─────────────────────────┐
	│                                                        │
	│  log.Init(Config)                                      │
	│    - Level: debug/info/warn/error                      │
	│    - JSONOutput: JSON lines or console                 │
	│    - Output: stdout by default                         │
	│                     │                                  │
	│                     ▼                                  │
	│  Component loggers                                     │
	│    - WithComponent("source")                           │
	│    - WithComponent("archive")                          │
	│    - WithImageUUID("47e6af92-...")                     │
	│    - WithBackend("moray")                              │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("migrate")
	logger.Info().Str("image_uuid", uuid).Msg("migrate image")

Before Init is called the Logger writes JSON to stdout at the default
global level, so library code and tests can log without setup.
*/
package log
