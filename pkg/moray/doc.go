/*
Package moray implements a small networked record store: a gRPC service
with one server-streaming method, FindObjects, that returns every object
in a bucket matching a filter.

# Wire format

Messages are google.protobuf.Struct values, so no generated code is
involved:

	FindObjects request:  {"bucket": "imgapi_images", "filter": "uuid=*"}
	FindObjects response: {"bucket": "imgapi_images", "key": "<uuid>", "value": {...}}

Numbers travel as doubles, as they do in the JSON-speaking store this
service stands in for.

# Client

NewClient builds a grpc.ClientConn with reconnect backoff taken from the
configured retry policy. Connect waits for the connection to be ready.
FindObjects returns a RecordStream whose Next method turns the
record/error/end events of the stream into a pull iterator: one object
per call, io.EOF at the end, and a sticky error after any failure.

# Server

Server answers FindObjects from a storage.BoltStore in key order. Bad
filters are InvalidArgument; unknown buckets are NotFound.
*/
package moray
