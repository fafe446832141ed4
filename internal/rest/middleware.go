package rest

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/KilimcininKorOglu/obaidx/internal/logging"
)

type localKey int

const requestIDKey localKey = iota

// RequestID returns the request ID assigned by the request ID middleware.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

// requestIDMiddleware reuses a well-formed client supplied ID or assigns a
// new one, and echoes it in the response.
func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(logging.RequestIDHeader)
		if !logging.ValidRequestID(id) {
			id = logging.GenerateRequestID()
		}
		c.Locals(requestIDKey, id)
		c.Set(logging.RequestIDHeader, id)
		return c.Next()
	}
}

// loggingMiddleware logs every request once the error handler has set the
// final status.
func (s *Server) loggingMiddleware() fiber.Handler {
	restLogger := s.log.WithFields("source", "rest")
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := s.handleError(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		msg := auditMessage(c.Method(), c.Path())
		if msg == "" {
			return nil
		}

		status := c.Response().StatusCode()
		reqLogger := restLogger.WithRequestID(RequestID(c))
		kv := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start).String(),
			"remoteAddr", c.IP(),
		}
		if status >= fiber.StatusInternalServerError {
			reqLogger.Error(msg, kv...)
		} else {
			reqLogger.Info(msg, kv...)
		}
		return nil
	}
}

func (s *Server) recoveryMiddleware() fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			s.log.Error("panic recovered", "error", e, "path", c.Path())
		},
	})
}

// auditMessage names a request for the access log. Health checks are not
// logged.
func auditMessage(method, path string) string {
	sub, ok := strings.CutPrefix(path, apiPrefix)
	if !ok {
		return "REST request"
	}

	switch {
	case sub == "/health":
		return ""
	case strings.HasPrefix(sub, "/logs"):
		return "REST get logs"
	case sub == "/config":
		return "REST get config"
	case sub == "/flush":
		return "REST flush"
	case sub == "/check":
		return "REST check"
	case sub == "/indexes":
		if method == fiber.MethodPost {
			return "REST create index"
		}
		return "REST list indexes"
	}

	parts := strings.Split(strings.TrimPrefix(sub, "/indexes/"), "/")
	if len(parts) == 1 {
		if method == fiber.MethodDelete {
			return "REST drop index"
		}
		return "REST get index"
	}

	switch parts[1] {
	case "entries":
		switch {
		case len(parts) == 2 && method == fiber.MethodPost:
			return "REST put entry"
		case len(parts) == 2:
			return "REST scan entries"
		case method == fiber.MethodPut:
			return "REST set entry"
		case method == fiber.MethodDelete:
			return "REST remove entry"
		default:
			return "REST get entry"
		}
	case "prefix":
		return "REST prefix search"
	case "rank", "at", "count":
		return "REST position lookup"
	case "clear":
		return "REST clear index"
	}
	return "REST request"
}
