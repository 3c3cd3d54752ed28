package routes

import (
	"encoding/gob"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/github"

	"github.com/pridiuksson/ninegrid/internal/observability"
)

const (
	authSessionName = "ninegrid-auth"
	githubProvider  = "github"
	gothSessionName = "_gothic_session"
)

// AuthConfig configures session and GitHub OAuth authentication.
type AuthConfig struct {
	SessionKey         string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	SecureCookies      bool
}

// AuthUser is the authenticated user stored in session. ID is the provider
// user id and is what the object naming convention scopes ownership by.
type AuthUser struct {
	ID        string
	Name      string
	NickName  string
	Email     string
	AvatarURL string
}

func init() {
	gob.Register(AuthUser{})
}

// ConfigureAuth initializes session store and GitHub OAuth provider.
func ConfigureAuth(config AuthConfig) {
	store := sessions.NewCookieStore([]byte(config.SessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store

	goth.UseProviders(
		github.New(
			config.GitHubClientID,
			config.GitHubClientSecret,
			config.GitHubCallbackURL,
			"read:user",
			"user:email",
		),
	)
}

// AuthRoutes registers authentication endpoints.
type AuthRoutes struct {
	enableDevLogin bool
}

// NewAuthRoutes constructs auth routes.
func NewAuthRoutes(enableDevLogin bool) *AuthRoutes {
	return &AuthRoutes{enableDevLogin: enableDevLogin}
}

// RegisterRoutes registers authentication routes on the server.
func (a *AuthRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/logout", a.handleLogout)
	s.GET("/auth/:provider", a.handleAuthBegin)
	s.GET("/auth/:provider/callback", a.handleAuthCallback)
	s.GET("/api/session", a.handleSession)
	if a.enableDevLogin {
		s.GET("/auth/dev/login", a.handleDevLogin)
		s.POST("/auth/dev/login", a.handleDevLogin)
	}
}

// WithIdentity resolves the session user, if any, and stamps it into the
// request context. The grid works without an identity (legacy object names),
// so this never rejects.
func WithIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := authUserFromSession(c)
		if ok {
			ctx := observability.WithRequestIdentity(c.Request().Context(), user.ID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("authUser", user)
		}
		return next(c)
	}
}

func (a *AuthRoutes) handleSession(c echo.Context) error {
	user, ok := authUserFromSession(c)
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"user": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user": map[string]string{"id": user.ID, "email": user.Email},
	})
}

func (a *AuthRoutes) handleLogout(c echo.Context) error {
	session, err := gothic.Store.Get(c.Request(), authSessionName)
	if err != nil {
		if isInvalidSecureCookieError(err) {
			clearSessionCookie(c, authSessionName)
			clearSessionCookie(c, gothSessionName)
			return c.Redirect(http.StatusFound, "/")
		}
		return err
	}
	delete(session.Values, "user")
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/")
}

func (a *AuthRoutes) handleAuthBegin(c echo.Context) error {
	provider := c.Param("provider")
	if provider != githubProvider {
		return c.NoContent(http.StatusNotFound)
	}
	request := addProviderParam(c.Request(), provider)
	gothic.BeginAuthHandler(c.Response(), request)
	return nil
}

func (a *AuthRoutes) handleAuthCallback(c echo.Context) error {
	provider := c.Param("provider")
	if provider != githubProvider {
		return c.NoContent(http.StatusNotFound)
	}
	request := addProviderParam(c.Request(), provider)
	user, err := gothic.CompleteUserAuth(c.Response(), request)
	if err != nil {
		if isInvalidSecureCookieError(err) {
			clearSessionCookie(c, authSessionName)
			clearSessionCookie(c, gothSessionName)
			return c.Redirect(http.StatusFound, "/")
		}
		return err
	}

	email := strings.TrimSpace(user.Email)
	nickname := strings.TrimSpace(user.NickName)
	if email == "" {
		nick := nickname
		if nick == "" {
			nick = "user"
		}
		email = nick + "@local.invalid"
	}

	return saveAuthUser(c, request, AuthUser{
		ID:        user.UserID,
		Name:      firstNonEmpty(user.Name, nickname),
		NickName:  nickname,
		Email:     email,
		AvatarURL: user.AvatarURL,
	})
}

func (a *AuthRoutes) handleDevLogin(c echo.Context) error {
	if !a.enableDevLogin {
		return c.NoContent(http.StatusNotFound)
	}

	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" {
		email = "dev-user@example.local"
	}
	nickname := strings.TrimSpace(c.FormValue("nickname"))
	if nickname == "" {
		nickname = strings.Split(email, "@")[0]
	}
	userID := strings.TrimSpace(c.FormValue("user_id"))
	if userID == "" {
		userID = "dev-" + nickname
	}

	return saveAuthUser(c, c.Request(), AuthUser{
		ID:       userID,
		Name:     nickname,
		NickName: nickname,
		Email:    email,
	})
}

func saveAuthUser(c echo.Context, request *http.Request, user AuthUser) error {
	session, err := gothic.Store.Get(request, authSessionName)
	if err != nil {
		if isInvalidSecureCookieError(err) {
			clearSessionCookie(c, authSessionName)
			clearSessionCookie(c, gothSessionName)
			return c.Redirect(http.StatusFound, "/")
		}
		return err
	}
	session.Values["user"] = user
	if err := session.Save(request, c.Response()); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/")
}

// GetAuthUser returns the authenticated user resolved by WithIdentity.
func GetAuthUser(c echo.Context) (AuthUser, bool) {
	value := c.Get("authUser")
	if value == nil {
		return AuthUser{}, false
	}
	user, ok := value.(AuthUser)
	if !ok {
		return AuthUser{}, false
	}
	return user, true
}

func addProviderParam(request *http.Request, provider string) *http.Request {
	query := request.URL.Query()
	query.Set("provider", provider)
	request.URL.RawQuery = query.Encode()
	return request
}

func authUserFromSession(c echo.Context) (AuthUser, bool) {
	session, err := gothic.Store.Get(c.Request(), authSessionName)
	if err != nil {
		if isInvalidSecureCookieError(err) {
			clearSessionCookie(c, authSessionName)
			clearSessionCookie(c, gothSessionName)
		}
		return AuthUser{}, false
	}
	value, ok := session.Values["user"]
	if !ok {
		return AuthUser{}, false
	}
	user, ok := value.(AuthUser)
	if !ok {
		return AuthUser{}, false
	}
	return user, true
}

func isInvalidSecureCookieError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "securecookie") && strings.Contains(msg, "not valid")
}

func clearSessionCookie(c echo.Context, name string) {
	http.SetCookie(c.Response(), &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
