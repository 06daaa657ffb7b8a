/*
Package metrics exposes Prometheus metrics for a backfill run.

	imgapi_backfill_records_enumerated_total{backend}  records read
	imgapi_backfill_records_archived_total             entries written
	imgapi_backfill_failures_total{stage}              failed runs by stage
	imgapi_backfill_record_duration_seconds            per-record latency
	imgapi_backfill_run_state{state}                   1 for the active state

The backfill is a one-shot process, so instead of serving /metrics it
writes the default registry to a node exporter textfile with
WriteTextfile when asked to.
*/
package metrics
