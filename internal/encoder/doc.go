// Package encoder provides publication encoding to archive file formats.
//
// Encoders turn a batch of buffer records into a single object suitable for
// object storage and analytics, with configurable compression.
//
// # Supported Formats
//
//   - Parquet: Columnar format optimized for analytics and Athena queries
//   - Avro: Row-based object container with embedded schema
//   - JSON: Newline-delimited JSON for ad-hoc inspection
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(pkgencoder.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Encoding Records
//
// Encoders write to any io.Writer, so the caller chooses where bytes go:
//
//	var buf bytes.Buffer
//	records := pkgencoder.Records(batch.Start, batch.Publications)
//	stats, err := enc.Encode(&buf, records)
//
// stats.SizeBytes is the number of encoded bytes, not the in-memory size of
// the publications.
//
// # Compression Options
//
//	Parquet: "snappy", "gzip", "lz4", "zstd", "none"
//	Avro:    "deflate", "snappy" (OCF block codecs), "gzip" (whole file)
//	JSON:    "gzip", "none"
//
// # Schema
//
// Every format carries the buffer offset, the MQTT fields (topic, QoS,
// retain), the raw payload, user properties and the archive time. Parquet
// stores properties as a JSON string column; Avro uses a native map.
//
// # Thread Safety
//
// Encoder instances hold no per-call state and are safe for concurrent use.
package encoder
