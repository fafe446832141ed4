// Package rest provides a JSON HTTP API over the indexes of an
// index.Manager.
//
// Keys travel in their textual form (see key.Parse) and are interpreted
// with the key type of the addressed index. Values are opaque strings
// stored as object.Blob values, and the API releases a blob once the
// entry holding it is removed, replaced, cleared or dropped.
//
// # Endpoints
//
// Indexes:
//
//	GET    /api/v1/indexes              - List indexes
//	POST   /api/v1/indexes              - Create index
//	GET    /api/v1/indexes/{name}       - Describe index with page statistics
//	DELETE /api/v1/indexes/{name}       - Drop index
//	POST   /api/v1/indexes/{name}/clear - Remove every entry
//	GET    /api/v1/indexes/{name}/count - Number of entries
//
// Entries:
//
//	GET    /api/v1/indexes/{name}/entries       - Range scan (from, till, order, limit)
//	POST   /api/v1/indexes/{name}/entries       - Insert
//	GET    /api/v1/indexes/{name}/entries/{key} - Lookup (all=true for every value)
//	PUT    /api/v1/indexes/{name}/entries/{key} - Upsert, unique indexes only
//	DELETE /api/v1/indexes/{name}/entries/{key} - Remove (value=v for one pair)
//
// Positions and prefixes:
//
//	GET /api/v1/indexes/{name}/prefix/{p} - Keys starting with p (search=true: keys prefixing p)
//	GET /api/v1/indexes/{name}/rank/{key} - Position of key
//	GET /api/v1/indexes/{name}/at/{pos}   - Entry at position
//
// Other:
//
//	GET  /api/v1/health - Health check
//	POST /api/v1/flush  - Flush every index and sync the store
//	GET  /api/v1/check  - Verify every index
//	GET  /api/v1/logs   - Recent log entries
//	GET  /api/v1/config - Effective configuration
//
// # Errors
//
// Failed requests answer with an ErrorResponse whose error field is a
// stable code such as "key_not_found" or "key_not_unique".
//
// # Example Usage
//
//	curl -X POST http://localhost:7070/api/v1/indexes \
//	  -H "Content-Type: application/json" \
//	  -d '{"name": "ages", "keyType": "int32", "unique": false}'
//
//	curl -X POST http://localhost:7070/api/v1/indexes/ages/entries \
//	  -H "Content-Type: application/json" \
//	  -d '{"key": "30", "value": "ada"}'
//
//	curl "http://localhost:7070/api/v1/indexes/ages/entries?from=18&order=desc"
package rest
