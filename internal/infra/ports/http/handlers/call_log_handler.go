package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/PeerCall/internal/infra/appctx"
	"github.com/qrave1/PeerCall/internal/infra/ports/http/dto"
	"github.com/qrave1/PeerCall/internal/usecase"
)

type CallLogHandler struct {
	callLogUsecase usecase.CallLogUsecase
}

func NewCallLogHandler(callLogUsecase usecase.CallLogUsecase) *CallLogHandler {
	return &CallLogHandler{callLogUsecase: callLogUsecase}
}

// ListCalls - журнал звонков текущего пользователя, ?limit=N
func (h *CallLogHandler) ListCalls(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	var limit int
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	logs, err := h.callLogUsecase.List(c.Request().Context(), userID, limit)
	if err != nil {
		return writeError(c, err, "could not list calls")
	}

	return c.JSON(http.StatusOK, dto.NewCallLogResponse(logs))
}
