package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CacheHeader reports whether a response was served from the report cache.
const CacheHeader = "X-Cache"

func envelope(status int, data interface{}) APIResponse {
	return APIResponse{Status: status, Message: http.StatusText(status), Data: data}
}

// DataResponse writes data in the envelope with status.
func DataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, envelope(status, data))
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes validation failures as a 400.
func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return DataResponse(c, http.StatusBadRequest, errs)
}

func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}

// AppErrorResponse writes an *AppError with its own status; anything else is a 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return InternalServerErrorResponse(c)
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}

// MarshalSuccess renders a 200 envelope so callers can cache the bytes.
func MarshalSuccess(data interface{}) ([]byte, error) {
	return json.Marshal(envelope(http.StatusOK, data))
}

// BlobResponse writes pre-rendered envelope bytes and marks the cache outcome.
func BlobResponse(c echo.Context, b []byte, hit bool) error {
	state := "MISS"
	if hit {
		state = "HIT"
	}
	c.Response().Header().Set(CacheHeader, state)
	return c.JSONBlob(http.StatusOK, b)
}
