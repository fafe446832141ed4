// Package logging provides structured logging for obaidx.
//
// # Overview
//
// Logger is a levelled key-value logger with text and JSON output:
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/obaidx.log",
//	})
//
//	logger.Info("index created", "index", "users.name", "keyType", "string")
//
// Use NewNop in tests and as the default of every engine component.
//
// # Fields and request IDs
//
// WithFields and WithRequestID derive loggers carrying fixed fields. The
// HTTP server tags each request with a UUID from GenerateRequestID:
//
//	reqLogger := logger.WithRequestID(logging.GenerateRequestID())
//
// Text lines print fields in key order:
//
//	2026-02-18T10:30:00Z [info] index created request_id=... index=users.name keyType=string
//
// # Recorder
//
// A Recorder passed in Config keeps the most recent entries in memory and
// answers filtered queries, newest first:
//
//	rec := logging.NewRecorder(1000)
//	logger := logging.New(logging.Config{Recorder: rec})
//	entries, total := rec.Query(logging.QueryOptions{Level: "warn", Limit: 50})
package logging
