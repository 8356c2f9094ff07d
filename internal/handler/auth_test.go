package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/config"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/middleware"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/repository"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/testutil"
)

func newAuthServer(t *testing.T) (*echo.Echo, *repository.UserRepo) {
	t.Helper()
	db := testutil.GetEmptyTestDB(t)
	users := repository.NewUserRepo(db)
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost}
	a := NewAuthHandler(cfg, users, repository.NewTokenRepo(db))

	e := echo.New()
	e.POST("/v1/auth/login", a.Login)
	e.POST("/v1/auth/refresh", a.Refresh)
	e.POST("/v1/auth/logout", a.Logout)
	mgr := e.Group("/v1/staff", middleware.JWTAuth(testSecret), middleware.RequireRole(model.RoleManager))
	mgr.POST("", a.CreateStaff)
	mgr.PATCH("/:userId/active", a.SetActive)
	return e, users
}

func TestAuth_LoginRefreshLogout(t *testing.T) {
	e, users := newAuthServer(t)
	_, err := users.Create(context.Background(), "porta@casa.com", "porta-da-frente", model.RoleStaff, bcrypt.MinCost)
	require.NoError(t, err)

	rec := call(t, e, http.MethodPost, "/v1/auth/login", "", `{"email":"porta@casa.com","password":"errada-123"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, e, http.MethodPost, "/v1/auth/login", "", `{"email":" Porta@Casa.com ","password":"porta-da-frente"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.Equal(t, model.RoleStaff, login.User.Role)
	require.NotEmpty(t, login.Access.Token)

	rec = call(t, e, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+login.Refresh.Token+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	require.NotEqual(t, login.Refresh.Token, rotated.Refresh.Token)

	rec = call(t, e, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+login.Refresh.Token+`"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "a rotated token cannot be reused")

	rec = call(t, e, http.MethodPost, "/v1/auth/logout", "", `{"refresh_token":"`+rotated.Refresh.Token+`"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(t, e, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+rotated.Refresh.Token+`"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ManagerCreatesAndDisablesStaff(t *testing.T) {
	e, _ := newAuthServer(t)

	rec := call(t, e, http.MethodPost, "/v1/staff", model.RoleStaff, `{"email":"nova@casa.com","password":"porta-da-frente"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, e, http.MethodPost, "/v1/staff", model.RoleManager, `{"email":"nova@casa.com","password":"curta"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, e, http.MethodPost, "/v1/staff", model.RoleManager, `{"email":"nova@casa.com","password":"porta-da-frente","role":"owner"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, e, http.MethodPost, "/v1/staff", model.RoleManager, `{"email":"nova@casa.com","password":"porta-da-frente"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created userPart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, model.RoleStaff, created.Role)

	rec = call(t, e, http.MethodPost, "/v1/staff", model.RoleManager, `{"email":"nova@casa.com","password":"porta-da-frente"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, e, http.MethodPatch, "/v1/staff/"+strconv.FormatUint(created.ID, 10)+"/active", model.RoleManager, `{"active":false}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, e, http.MethodPost, "/v1/auth/login", "", `{"email":"nova@casa.com","password":"porta-da-frente"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "disabled accounts cannot log in")
}
