package main

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zitadel/logging"

	"github.com/duosecurity/duo-universal-go/internal/otel"
	"github.com/duosecurity/duo-universal-go/pkg/duo"
	httphelper "github.com/duosecurity/duo-universal-go/pkg/http"
)

const (
	callbackPath = "/duo-callback"

	stateCookie    = "state"
	usernameCookie = "username"

	loginPromptMsg = "This is a demo."
)

var (
	//go:embed templates
	templateFS embed.FS

	templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

	tracer = otel.Tracer("github.com/duosecurity/duo-universal-go/example/app")
)

// App is the demo relying on Duo for the second factor of its login.
type App struct {
	duo      *duo.Client
	cookies  *httphelper.CookieHandler
	logger   *slog.Logger
	failOpen bool
}

func NewApp(client *duo.Client, cookies *httphelper.CookieHandler, logger *slog.Logger, failOpen bool) *App {
	return &App{
		duo:      client,
		cookies:  cookies,
		logger:   logger,
		failOpen: failOpen,
	}
}

func (a *App) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(a.logMiddleware)
	router.Get("/", a.loginPage)
	router.Post("/", a.login)
	router.Get(callbackPath, a.callback)
	router.Get("/health", a.health)
	return router
}

type loginData struct {
	Message string
}

type successData struct {
	Username string
	Result   string
	Claims   *duo.IDTokenClaims
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "login.html", loginData{Message: loginPromptMsg})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "login")
	defer span.End()
	logger := a.loggerFrom(ctx)

	username := r.FormValue("username")
	if username == "" {
		a.render(w, r, http.StatusBadRequest, "login.html", loginData{Message: "Username is required"})
		return
	}

	if _, err := a.duo.HealthCheck(ctx); err != nil {
		logger.WarnContext(ctx, "duo health check failed", "error", err, "fail_open", a.failOpen)
		if a.failOpen {
			a.render(w, r, http.StatusOK, "success.html", successData{
				Username: username,
				Result:   "Login 'Successful', but 2FA Not Performed. Confirm Duo client/secret/host values are correct",
			})
			return
		}
		a.render(w, r, http.StatusServiceUnavailable, "login.html", loginData{Message: "2FA Unavailable. Confirm Duo client/secret/host values are correct"})
		return
	}

	state, err := a.duo.GenerateState()
	if err != nil {
		a.serverError(w, r, "generate state", err)
		return
	}
	authURL, err := a.duo.CreateAuthURL(username, state)
	if err != nil {
		a.serverError(w, r, "create auth url", err)
		return
	}
	if err := a.cookies.SetCookie(w, stateCookie, state); err != nil {
		a.serverError(w, r, "set state cookie", err)
		return
	}
	if err := a.cookies.SetCookie(w, usernameCookie, username); err != nil {
		a.serverError(w, r, "set username cookie", err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (a *App) callback(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "callback")
	defer span.End()
	logger := a.loggerFrom(ctx)

	if errType := r.FormValue("error"); errType != "" {
		logger.InfoContext(ctx, "duo returned an error", "error", errType, "description", r.FormValue("error_description"))
		a.render(w, r, http.StatusUnauthorized, "login.html", loginData{Message: "Duo login failed: " + errType})
		return
	}

	if _, err := a.cookies.CheckQueryCookie(r, stateCookie); err != nil {
		logger.WarnContext(ctx, "state check failed", "error", err)
		a.render(w, r, http.StatusBadRequest, "login.html", loginData{Message: "Duo state does not match saved state"})
		return
	}
	username, err := a.cookies.CheckCookie(r, usernameCookie)
	if err != nil {
		a.render(w, r, http.StatusBadRequest, "login.html", loginData{Message: "Login session expired"})
		return
	}
	a.cookies.DeleteCookie(w, stateCookie)
	a.cookies.DeleteCookie(w, usernameCookie)

	tokens, err := a.duo.ExchangeAuthorizationCode(ctx, r.FormValue(a.duo.CodeParam()), username)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, duo.ErrConnection) {
			status = http.StatusBadGateway
		}
		logger.WarnContext(ctx, "code exchange failed", "error", err)
		a.render(w, r, status, "login.html", loginData{Message: "Duo login failed"})
		return
	}
	a.render(w, r, http.StatusOK, "success.html", successData{
		Username: username,
		Result:   "Login Successful",
		Claims:   tokens.IDTokenClaims,
	})
}

type healthStatus struct {
	Duo       string `json:"duo"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	res, err := a.duo.HealthCheck(r.Context())
	if err != nil {
		httphelper.MarshalJSONWithStatus(w, healthStatus{Duo: "unavailable", Error: err.Error()}, http.StatusServiceUnavailable)
		return
	}
	httphelper.MarshalJSON(w, healthStatus{Duo: "ok", Timestamp: res.Response.Timestamp})
}

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		a.loggerFrom(r.Context()).ErrorContext(r.Context(), "render template", "template", name, "error", err)
	}
}

func (a *App) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.loggerFrom(r.Context()).ErrorContext(r.Context(), msg, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (a *App) loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := logging.FromContext(ctx); ok {
		return logger
	}
	return a.logger
}

func (a *App) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := a.logger.With(slog.Group("request",
			"id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
		))
		lw := &loggedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r.WithContext(logging.ToContext(r.Context(), logger)))
		logger.Info("request served",
			"status", lw.statusCode,
			"duration", time.Since(start),
		)
	})
}

type loggedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *loggedWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
