package rest

import (
	"bytes"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/KilimcininKorOglu/obaidx/internal/key"
	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/btree"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/index"
)

const (
	defaultScanLimit = 100
	defaultLogLimit  = 100
)

// handleHealth handles GET /api/v1/health
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Uptime:  uptime(s.startTime),
		Indexes: s.manager.IndexCount(),
	})
}

// handleListIndexes handles GET /api/v1/indexes
func (s *Server) handleListIndexes(c *fiber.Ctx) error {
	return c.JSON(IndexListResponse{Indexes: s.manager.Indexes()})
}

// handleCreateIndex handles POST /api/v1/indexes
func (s *Server) handleCreateIndex(c *fiber.Ctx) error {
	var req CreateIndexRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.Wrap(errInvalidBody, err.Error())
	}

	t, err := key.ParseType(req.KeyType)
	if err != nil {
		return err
	}
	ix, err := s.manager.CreateIndex(req.Name, t, req.Unique)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(IndexResponse{Info: ix.Info(), Mode: ix.Mode().String()})
}

// handleGetIndex handles GET /api/v1/indexes/:name
func (s *Server) handleGetIndex(c *fiber.Ctx) error {
	ix, err := s.index(c)
	if err != nil {
		return err
	}
	stats, err := ix.Stats()
	if err != nil {
		return err
	}
	return c.JSON(IndexResponse{Info: ix.Info(), Mode: ix.Mode().String(), Stats: &stats})
}

// handleDropIndex handles DELETE /api/v1/indexes/:name
func (s *Server) handleDropIndex(c *fiber.Ctx) error {
	ix, err := s.index(c)
	if err != nil {
		return err
	}
	values, err := allValues(ix)
	if err != nil {
		return err
	}
	if err := s.manager.DropIndex(ix.Name()); err != nil {
		return err
	}
	s.release(c, ix, values...)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleClearIndex handles POST /api/v1/indexes/:name/clear
func (s *Server) handleClearIndex(c *fiber.Ctx) error {
	ix, err := s.index(c)
	if err != nil {
		return err
	}
	values, err := allValues(ix)
	if err != nil {
		return err
	}
	if err := ix.Clear(); err != nil {
		return err
	}
	s.release(c, ix, values...)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCount handles GET /api/v1/indexes/:name/count
func (s *Server) handleCount(c *fiber.Ctx) error {
	ix, err := s.index(c)
	if err != nil {
		return err
	}
	return c.JSON(CountResponse{Count: ix.Count()})
}

// handleScan handles GET /api/v1/indexes/:name/entries
//
// Query parameters: from, till, fromExclusive, tillExclusive, order
// (asc or desc) and limit. Missing bounds are open.
func (s *Server) handleScan(c *fiber.Ctx) error {
	ix, err := s.index(c)
	if err != nil {
		return err
	}

	from, err := boundParam(c, ix, "from", "fromExclusive")
	if err != nil {
		return err
	}
	till, err := boundParam(c, ix, "till", "tillExclusive")
	if err != nil {
		return err
	}

	order := btree.Ascending
	switch c.Query("order", "asc") {
	case "asc":
	case "desc":
		order = btree.Descending
	default:
		return errors.Wrapf(errInvalidParam, "order %q", c.Query("order"))
	}

	limit := c.QueryInt("limit", defaultScanLimit)
	if limit <= 0 {
		return errors.Wrapf(errInvalidParam, "limit %d", limit)
	}

	cur, err := ix.Entries(from, till, order)
	if err != nil {
		return err
	}

	resp := EntriesResponse{Entries: make([]Entry, 0)}
	for {
		k, obj, ok := cur.Next()
		if !ok {
			break
		}
		if len(resp.Entries) == limit {
			resp.HasMore = true
			break
		}
		e, err := toEntry(k, obj)
		if err != nil {
			return err
		}
		resp.Entries = append(resp.Entries, e)
	}
	if err := cur.Err(); err != nil {
		return err
	}
	resp.Count = len(resp.Entries)
	return c.JSON(resp)
}

// handlePut handles POST /api/v1/indexes/:name/entries
func (s *Server) handlePut(c *fiber.Ctx) error {
	ix, err := s.index(c)
	if err != nil {
		return err
	}

	var req EntryRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.Wrap(errInvalidBody, err.Error())
	}
	k, err := parseKey(ix, req.Key)
	if err != nil {
		return err
	}

	blob := object.NewBlob([]byte(req.Value))
	inserted, err := ix.Put(k, blob)
	if err != nil {
		return err
	}
	if !inserted {
		return c.JSON(PutResponse{Inserted: false})
	}
	return c.Status(fiber.StatusCreated).JSON(PutResponse{Inserted: true})
}

// handleGet handles GET /api/v1/indexes/:name/entries/:key
//
// With all=true every value stored under the key is returned, which is
// the only way to read a duplicated key of a non-unique index.
func (s *Server) handleGet(c *fiber.Ctx) error {
	ix, k, err := s.indexAndKey(c, "key")
	if err != nil {
		return err
	}

	if c.QueryBool("all") {
		objs, err := ix.GetAll(k)
		if err != nil {
			return err
		}
		resp := ValuesResponse{Key: k.String(), Values: make([]string, 0, len(objs))}
		for _, obj := range objs {
			v, err := blobValue(obj)
			if err != nil {
				return err
			}
			resp.Values = append(resp.Values, v)
		}
		return c.JSON(resp)
	}

	obj, err := ix.Get(k)
	if err != nil {
		return err
	}
	e, err := toEntry(k, obj)
	if err != nil {
		return err
	}
	return c.JSON(e)
}

// handleSet handles PUT /api/v1/indexes/:name/entries/:key
func (s *Server) handleSet(c *fiber.Ctx) error {
	ix, k, err := s.indexAndKey(c, "key")
	if err != nil {
		return err
	}

	var req EntryRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.Wrap(errInvalidBody, err.Error())
	}

	prev, err := ix.Set(k, object.NewBlob([]byte(req.Value)))
	if err != nil {
		return err
	}
	if prev == nil {
		return c.Status(fiber.StatusCreated).JSON(SetResponse{})
	}
	v, err := blobValue(prev)
	if err != nil {
		return err
	}
	s.release(c, ix, prev)
	return c.JSON(SetResponse{Replaced: true, Previous: &v})
}

// handleRemove handles DELETE /api/v1/indexes/:name/entries/:key
//
// With a value query parameter only the entry holding that value is
// removed, and a missing pair is not an error.
func (s *Server) handleRemove(c *fiber.Ctx) error {
	ix, k, err := s.indexAndKey(c, "key")
	if err != nil {
		return err
	}

	if c.Context().QueryArgs().Has("value") {
		return s.removeValue(c, ix, k, []byte(c.Query("value")))
	}

	obj, err := ix.Remove(k)
	if err != nil {
		return err
	}
	v, err := blobValue(obj)
	if err != nil {
		return err
	}
	s.release(c, ix, obj)
	return c.JSON(RemoveResponse{Removed: true, Value: v})
}

func (s *Server) removeValue(c *fiber.Ctx, ix *index.Index, k key.Key, want []byte) error {
	objs, err := ix.GetAll(k)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		b, ok := obj.(*object.Blob)
		if !ok || !bytes.Equal(b.Data, want) {
			continue
		}
		removed, err := ix.RemoveIfExists(k, b)
		if err != nil {
			return err
		}
		if removed {
			s.release(c, ix, b)
		}
		return c.JSON(RemoveResponse{Removed: removed, Value: string(want)})
	}
	return c.JSON(RemoveResponse{Removed: false})
}

// handlePrefix handles GET /api/v1/indexes/:name/prefix/:prefix
//
// With search=true the entries whose key is a prefix of the parameter are
// returned instead.
func (s *Server) handlePrefix(c *fiber.Ctx) error {
	ix, p, err := s.indexAndKey(c, "prefix")
	if err != nil {
		return err
	}

	var entries []index.Entry
	if c.QueryBool("search") {
		entries, err = ix.PrefixSearch(p)
	} else {
		entries, err = ix.Prefix(p)
	}
	if err != nil {
		return err
	}

	resp := EntriesResponse{Entries: make([]Entry, 0, len(entries))}
	for _, ie := range entries {
		e, err := toEntry(ie.Key, ie.Value)
		if err != nil {
			return err
		}
		resp.Entries = append(resp.Entries, e)
	}
	resp.Count = len(resp.Entries)
	return c.JSON(resp)
}

// handleRank handles GET /api/v1/indexes/:name/rank/:key
func (s *Server) handleRank(c *fiber.Ctx) error {
	ix, k, err := s.indexAndKey(c, "key")
	if err != nil {
		return err
	}
	rank, err := ix.IndexOfKey(k)
	if err != nil {
		return err
	}
	return c.JSON(RankResponse{Key: k.String(), Rank: rank})
}

// handleAt handles GET /api/v1/indexes/:name/at/:pos
func (s *Server) handleAt(c *fiber.Ctx) error {
	ix, err := s.index(c)
	if err != nil {
		return err
	}
	pos, err := strconv.Atoi(c.Params("pos"))
	if err != nil {
		return errors.Wrapf(errInvalidParam, "position %q", c.Params("pos"))
	}
	ie, err := ix.GetAt(pos)
	if err != nil {
		return err
	}
	e, err := toEntry(ie.Key, ie.Value)
	if err != nil {
		return err
	}
	return c.JSON(e)
}

// handleFlush handles POST /api/v1/flush
func (s *Server) handleFlush(c *fiber.Ctx) error {
	if err := s.manager.Flush(); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCheck handles GET /api/v1/check
func (s *Server) handleCheck(c *fiber.Ctx) error {
	if err := s.manager.Check(); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok", "indexes": s.manager.IndexCount()})
}

// handleGetLogs handles GET /api/v1/logs
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	if s.recorder == nil {
		return errLogsDisabled
	}

	opts := logging.QueryOptions{
		Level:     c.Query("level"),
		RequestID: c.Query("request_id"),
		Search:    c.Query("search"),
		Offset:    c.QueryInt("offset", 0),
		Limit:     c.QueryInt("limit", defaultLogLimit),
	}

	entries, total := s.recorder.Query(opts)
	return c.JSON(LogQueryResponse{
		Entries:    entries,
		TotalCount: total,
		Offset:     opts.Offset,
		Limit:      opts.Limit,
		HasMore:    opts.Offset+len(entries) < total,
	})
}

// handleGetConfig handles GET /api/v1/config
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	if s.settings == nil {
		return errConfigHidden
	}
	return c.JSON(s.settings)
}

func (s *Server) index(c *fiber.Ctx) (*index.Index, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return nil, errors.Wrap(errInvalidParam, err.Error())
	}
	return s.manager.Index(name)
}

func (s *Server) indexAndKey(c *fiber.Ctx, param string) (*index.Index, key.Key, error) {
	ix, err := s.index(c)
	if err != nil {
		return nil, key.Key{}, err
	}
	raw, err := url.PathUnescape(c.Params(param))
	if err != nil {
		return nil, key.Key{}, errors.Wrap(errInvalidParam, err.Error())
	}
	k, err := parseKey(ix, raw)
	return ix, k, err
}

// allValues collects every value of ix so their blobs can be released once
// the entries are gone.
func allValues(ix *index.Index) ([]any, error) {
	return ix.Range(nil, nil, btree.Ascending)
}

// release frees the blobs written by this API once no entry refers to them.
func (s *Server) release(c *fiber.Ctx, ix *index.Index, objs ...any) {
	store := ix.Objects()
	for _, obj := range objs {
		h, ok := store.HandleOf(obj)
		if !ok {
			continue
		}
		if err := store.Release(h); err != nil {
			s.log.WithRequestID(RequestID(c)).Warn("failed to release value",
				"index", ix.Name(), "handle", h.String(), "error", err)
		}
	}
}

func parseKey(ix *index.Index, raw string) (key.Key, error) {
	if raw == "" && ix.KeyType() != key.TypeString {
		return key.Key{}, errMissingKey
	}
	return key.Parse(ix.KeyType(), raw)
}

func boundParam(c *fiber.Ctx, ix *index.Index, name, exclusive string) (*key.Key, error) {
	if !c.Context().QueryArgs().Has(name) {
		return nil, nil
	}
	k, err := parseKey(ix, c.Query(name))
	if err != nil {
		return nil, err
	}
	if c.QueryBool(exclusive) {
		k = k.Exclusive()
	}
	return &k, nil
}

func blobValue(obj any) (string, error) {
	b, ok := obj.(*object.Blob)
	if !ok {
		return "", errors.Wrapf(errInvalidValues, "%T", obj)
	}
	return string(b.Data), nil
}

func toEntry(k key.Key, obj any) (Entry, error) {
	v, err := blobValue(obj)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: k.String(), Value: v}, nil
}
