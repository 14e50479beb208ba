package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/PeerCall/internal/domain/models"
	"github.com/qrave1/PeerCall/internal/infra/appctx"
	"github.com/qrave1/PeerCall/internal/infra/ports/http/dto"
	"github.com/qrave1/PeerCall/internal/usecase"
)

type memCallLogRepo struct {
	mu        sync.Mutex
	logs      []*models.CallLog
	lastLimit int
}

func (r *memCallLogRepo) Create(_ context.Context, log *models.CallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logs = append(r.logs, log)

	return nil
}

func (r *memCallLogRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, limit int) ([]*models.CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastLimit = limit

	var out []*models.CallLog
	for _, l := range r.logs {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}

	return out, nil
}

func (r *memCallLogRepo) snapshot() []*models.CallLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*models.CallLog(nil), r.logs...)
}

func listCalls(t *testing.T, h *CallLogHandler, userID uuid.UUID, query string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls"+query, nil)
	req = req.WithContext(appctx.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()

	require.NoError(t, h.ListCalls(echo.New().NewContext(req, rec)))

	return rec
}

func TestListCalls(t *testing.T) {
	owner, peer := uuid.New(), uuid.New()

	repo := &memCallLogRepo{}
	repo.logs = []*models.CallLog{
		models.NewCallLog(owner, peer, owner, models.CallTypeVideo, models.CallStatusCompleted, 30),
		models.NewCallLog(peer, owner, owner, models.CallTypeVideo, models.CallStatusCompleted, 30),
	}

	h := NewCallLogHandler(usecase.NewCallLogUsecase(repo))

	rec := listCalls(t, h, owner, "?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, repo.lastLimit)

	var resp []dto.CallLogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, peer, resp[0].PeerID)
	assert.True(t, resp[0].Incoming)
	assert.Equal(t, models.CallStatusCompleted, resp[0].Status)
	assert.Equal(t, 30, resp[0].Duration)

	rec = listCalls(t, h, owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, repo.lastLimit)

	rec = listCalls(t, h, owner, "?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
