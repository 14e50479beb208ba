package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/usecase"
)

// writeError переводит ошибку usecase в HTTP статус. Текст внутренних ошибок наружу не отдается.
func writeError(c echo.Context, err error, fallback string) error {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, usecase.ErrBadRequest):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, usecase.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, usecase.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, usecase.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, usecase.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	default:
		slog.Error(fallback, slog.Any(constant.Error, err))
	}

	return c.JSON(status, map[string]string{"error": message})
}
