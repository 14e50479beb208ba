package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/PeerCall/internal/application/config"
	"github.com/qrave1/PeerCall/internal/infra/appctx"
	"github.com/qrave1/PeerCall/internal/infra/ports/http/dto"
	"github.com/qrave1/PeerCall/internal/infra/ports/http/middleware"
	"github.com/qrave1/PeerCall/internal/usecase"
)

const cookieTTL = 72 * time.Hour

type AuthHandler struct {
	cfg *config.Config

	userUsecase usecase.UserUsecase
}

func NewAuthHandler(cfg *config.Config, userUsecase usecase.UserUsecase) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		userUsecase: userUsecase,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.userUsecase.CreateUser(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return writeError(c, err, "could not create user")
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.userUsecase.ValidateCredentials(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return writeError(c, err, "could not validate credentials")
	}

	token, err := h.userUsecase.GenerateJWT(user)
	if err != nil {
		return writeError(c, err, "could not create token")
	}

	c.SetCookie(h.cookie(token, time.Now().Add(cookieTTL)))

	return c.JSON(http.StatusOK, dto.GetMeResponse{ID: user.ID, Username: user.Username})
}

// Logout сообщает всем подключенным о выходе и стирает cookie
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	if err := h.userUsecase.Logout(c.Request().Context(), userID); err != nil {
		return writeError(c, err, "could not logout")
	}

	c.SetCookie(h.cookie("", time.Unix(0, 0)))

	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) GetMe(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	user, err := h.userUsecase.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err, "could not get user")
	}

	return c.JSON(http.StatusOK, dto.GetMeResponse{ID: user.ID, Username: user.Username})
}

func (h *AuthHandler) GetOnlineUsers(c echo.Context) error {
	userID, _ := appctx.UserID(c.Request().Context())

	users, err := h.userUsecase.GetOnlineUsers(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err, "could not get online users")
	}

	resp := make([]dto.OnlineUser, 0, len(users))
	for _, u := range users {
		resp = append(resp, dto.OnlineUser{ID: u.ID, Username: u.Username})
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) cookie(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Expires:  expires,
		Domain:   h.cfg.CookieDomain,
		Path:     "/",
		Secure:   !h.cfg.Debug,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if cookie.Secure {
		cookie.SameSite = http.SameSiteNoneMode
	}

	return cookie
}
