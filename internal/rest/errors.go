package rest

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/KilimcininKorOglu/obaidx/internal/key"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/index"
)

var (
	errMissingKey    = errors.New("key is required")
	errInvalidBody   = errors.New("invalid JSON body")
	errInvalidParam  = errors.New("invalid query parameter")
	errLogsDisabled  = errors.New("log recording is not enabled")
	errConfigHidden  = errors.New("configuration is not exposed")
	errInvalidValues = errors.New("values are not blobs")
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{index.ErrIndexNotFound, fiber.StatusNotFound, "index_not_found"},
	{index.ErrKeyNotFound, fiber.StatusNotFound, "key_not_found"},
	{index.ErrIndexOutOfRange, fiber.StatusNotFound, "position_out_of_range"},
	{index.ErrIndexExists, fiber.StatusConflict, "index_exists"},
	{index.ErrKeyNotUnique, fiber.StatusConflict, "key_not_unique"},
	{index.ErrConcurrentStructuralChange, fiber.StatusConflict, "concurrent_change"},
	{index.ErrDeletedObject, fiber.StatusGone, "index_dropped"},
	{index.ErrInvalidName, fiber.StatusBadRequest, "invalid_name"},
	{index.ErrIncompatibleKeyType, fiber.StatusBadRequest, "incompatible_key"},
	{index.ErrUnsupportedIndexType, fiber.StatusBadRequest, "unsupported_key_type"},
	{index.ErrUniqueRequired, fiber.StatusBadRequest, "unique_required"},
	{index.ErrPrefixUnsupported, fiber.StatusBadRequest, "prefix_unsupported"},
	{key.ErrInvalidLiteral, fiber.StatusBadRequest, "invalid_key"},
	{key.ErrUnsupportedType, fiber.StatusBadRequest, "unsupported_key_type"},
	{object.ErrNotBlob, fiber.StatusBadRequest, "invalid_value"},
	{errMissingKey, fiber.StatusBadRequest, "missing_key"},
	{errInvalidBody, fiber.StatusBadRequest, "invalid_request"},
	{errInvalidParam, fiber.StatusBadRequest, "invalid_parameter"},
	{errInvalidValues, fiber.StatusInternalServerError, "invalid_value"},
	{index.ErrManagerClosed, fiber.StatusServiceUnavailable, "manager_closed"},
	{errLogsDisabled, fiber.StatusServiceUnavailable, "logs_disabled"},
	{errConfigHidden, fiber.StatusNotFound, "config_hidden"},
}

// mapError maps an error to an HTTP status and error code.
func mapError(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, codeForStatus(fe.Code)
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return fiber.StatusInternalServerError, "internal_error"
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "body_too_large"
	case fiber.StatusBadRequest:
		return "bad_request"
	default:
		return "internal_error"
	}
}

func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error:   code,
		Code:    status,
		Message: message,
	})
}
