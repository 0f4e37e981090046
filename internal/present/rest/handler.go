package rest

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	scaffold "github.com/metanet-platform/scaffold-app"
	"github.com/metanet-platform/scaffold-app/internal/config"
	"github.com/metanet-platform/scaffold-app/internal/domain"
	"github.com/metanet-platform/scaffold-app/internal/present/rest/presenter"
	"github.com/metanet-platform/scaffold-app/internal/service"
	"github.com/metanet-platform/scaffold-app/internal/usecase"
)

type Handler struct {
	config   config.Config
	auth     *usecase.AuthUsecase
	role     *usecase.RoleUsecase
	verifier *service.VerifierService
	session  *service.SessionService
	signal   *service.SignalService
}

func NewHandler(
	config config.Config,
	auth *usecase.AuthUsecase,
	role *usecase.RoleUsecase,
	verifier *service.VerifierService,
	session *service.SessionService,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:   config,
		auth:     auth,
		role:     role,
		verifier: verifier,
		session:  session,
		signal:   signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/scaffold", h.handleWellKnown)
	e.POST("/api/v1/register", h.handleRegister)
	e.POST("/api/v1/authenticate", h.handleAuthenticate)
	e.POST("/api/v1/session", h.handleSession)
	e.POST("/api/v1/roles/self", h.handleSelfGrant)
	e.POST("/api/v1/roles/grant", h.handleAdminGrant)
	e.GET("/api/v1/users/:key", h.handleGetUser)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := scaffold.WellKnownScaffold{
		Version:  "1.0",
		Domain:   h.config.NodeInfo.FQDN,
		ServerID: h.config.NodeInfo.ServerID,
		Endpoints: map[string]scaffold.ScaffoldEndpoint{
			"dev.metanet.register": {
				Template: "/api/v1/register",
				Method:   "POST",
			},
			"dev.metanet.authenticate": {
				Template: "/api/v1/authenticate",
				Method:   "POST",
			},
			"dev.metanet.session": {
				Template: "/api/v1/session",
				Method:   "POST",
			},
			"dev.metanet.roles.self": {
				Template: "/api/v1/roles/self",
				Method:   "POST",
			},
			"dev.metanet.roles.grant": {
				Template: "/api/v1/roles/grant",
				Method:   "POST",
			},
			"dev.metanet.user": {
				Template: "/api/v1/users/{key}",
				Method:   "GET",
			},
			"dev.metanet.realtime": {
				Template: "/realtime",
				Method:   "GET",
			},
		},
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleRegister(c echo.Context) error {
	ctx := c.Request().Context()

	var req scaffold.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return presenter.Failure(c, scaffold.ErrMissingFields)
	}

	if err := h.verifier.Verify(ctx, &req); err != nil {
		return presenter.Failure(c, err)
	}

	outcome, err := h.auth.Register(ctx, &req)
	if err != nil {
		return presenter.Failure(c, err)
	}

	token, err := h.session.Issue(ctx, &outcome.User)
	if err != nil {
		return presenter.Failure(c, err)
	}

	return presenter.Authenticated(c, outcome.User, outcome.IsNewUser, token)
}

func (h *Handler) handleAuthenticate(c echo.Context) error {
	ctx := c.Request().Context()

	var req scaffold.AuthenticateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.Failure(c, scaffold.ErrMissingFields)
	}

	if err := h.verifier.Verify(ctx, &req); err != nil {
		return presenter.Failure(c, err)
	}

	outcome, err := h.auth.Authenticate(ctx, &req)
	if err != nil {
		return presenter.Failure(c, err)
	}

	token, err := h.session.Issue(ctx, &outcome.User)
	if err != nil {
		return presenter.Failure(c, err)
	}

	return presenter.Authenticated(c, outcome.User, outcome.IsNewUser, token)
}

// handleSession is the combined auth-or-register flow. Whether an
// unseen key registers or is rejected depends on the deployment's
// registration mode.
func (h *Handler) handleSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req scaffold.AuthOrRegisterRequest
	if err := c.Bind(&req); err != nil {
		return presenter.Failure(c, scaffold.ErrMissingFields)
	}

	if err := h.verifier.Verify(ctx, &req); err != nil {
		return presenter.Failure(c, err)
	}

	outcome, err := h.auth.AuthOrRegister(ctx, &req)
	if err != nil {
		return presenter.Failure(c, err)
	}

	token, err := h.session.Issue(ctx, &outcome.User)
	if err != nil {
		return presenter.Failure(c, err)
	}

	return presenter.Authenticated(c, outcome.User, outcome.IsNewUser, token)
}

func (h *Handler) handleSelfGrant(c echo.Context) error {
	ctx := c.Request().Context()

	var req scaffold.SelfGrantRequest
	if err := c.Bind(&req); err != nil {
		return presenter.Failure(c, scaffold.ErrMissingFields)
	}

	if err := h.verifier.Verify(ctx, &req); err != nil {
		return presenter.Failure(c, err)
	}

	grant, err := h.role.Grant(ctx, req.SigningPublicKey, usecase.GrantInput{
		Target:   req.SigningPublicKey,
		RoleName: req.RoleName,
	})
	if err != nil {
		return presenter.Failure(c, err)
	}

	return presenter.Granted(c, grant)
}

func (h *Handler) handleAdminGrant(c echo.Context) error {
	ctx := c.Request().Context()

	requester, ok := ctx.Value(domain.RequesterIdCtxKey).(string)
	if !ok || requester == "" {
		return presenter.Failure(c, domain.ErrUnauthorizedGrant)
	}

	var req scaffold.AdminGrantRequest
	if err := c.Bind(&req); err != nil {
		return presenter.Failure(c, scaffold.ErrMissingFields)
	}
	if req.TargetPrincipal == "" || req.NewRole == "" {
		return presenter.Failure(c, scaffold.ErrMissingFields)
	}
	// the token, not the body, names the grantor
	if req.AdminPrincipal != "" && req.AdminPrincipal != requester {
		return presenter.Failure(c, domain.ErrUnauthorizedGrant)
	}

	grant, err := h.role.Grant(ctx, requester, usecase.GrantInput{
		Target:      req.TargetPrincipal,
		RoleName:    req.NewRole,
		Permissions: req.Permissions,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return presenter.Failure(c, err)
	}

	return presenter.Granted(c, grant)
}

func (h *Handler) handleGetUser(c echo.Context) error {
	ctx := c.Request().Context()

	key := c.Param("key")
	user, err := h.auth.Lookup(ctx, key)
	if err != nil {
		return presenter.Failure(c, err)
	}

	return presenter.OK(c, presenter.UserToWire(user))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string `json:"type"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	events, err := h.signal.Subscribe(ctx)
	if err != nil {
		slog.ErrorContext(
			ctx, "Failed to subscribe to events",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return nil
	}

	quit := make(chan struct{})

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
