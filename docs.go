/*

Package beacon provides an output that converts batches of event records into
Influx line protocol points and posts them to the F5 Beacon ingestion endpoint.

Records pass through two stages. Output.Format filters a single record and
encodes it, together with its nanosecond timestamp, as a msgpack entry that a
buffering layer can hold. Output.Write later consumes a chunk of such entries:
each record is split into tags and values, optionally tagged with a sequence
number, turned into a Point, and the whole chunk is serialized into one payload
and delivered over TLS 1.2.

A Buffer is also provided that accumulates entries per tag and flushes them by
size and/or interval, so the package is ready to use without an external
buffering framework.

Example

	config := beacon.DefaultConfig()
	config.Token = "a-0123456789"
	config.SourceName = "edge-1"

	output, err := beacon.NewOutput(config, beacon.WithLogger(logger))
	buffer, err := beacon.NewBuffer(ctx, output, config.Buffer, nil)

	buffer.Emit("app.metrics", time.Now(), beacon.Record{"latency": 12, "host": "web-1"})
	buffer.Close()

*/
package beacon
