package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/agent"
	"github.com/karsk/voicectl/internal/auth"
	"github.com/karsk/voicectl/internal/config"
	"github.com/karsk/voicectl/internal/observability"
	"github.com/karsk/voicectl/internal/skills"
)

const defaultDrainTimeout = 2 * time.Second

// Server exposes the worker admin surface over HTTP: health and
// readiness, skill and session listings, skill invocation, and the
// live event stream.
type Server struct {
	service *agent.Service
	engine  *gin.Engine
	auth    auth.Validator
	drain   time.Duration
}

type invokeRequest struct {
	Args map[string]string `json:"args"`
}

type invokeResponse struct {
	Status   string            `json:"status"`
	Response string            `json:"response"`
	Data     map[string]string `json:"data,omitempty"`
	ExitCode int32             `json:"exit_code"`
}

type operationView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Idempotent  bool   `json:"idempotent"`
}

type skillView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Operations  []operationView `json:"operations"`
}

// NewServer builds the admin surface for a worker service. Mutating
// routes require the configured admin token; with no token configured
// they are open for local use.
func NewServer(service *agent.Service) *Server {
	cfg := service.Config()
	s := &Server{
		service: service,
		drain:   cfg.DrainTimeout,
	}
	if strings.TrimSpace(cfg.AdminToken) != "" {
		s.auth = auth.StaticToken{Token: cfg.AdminToken}
	}
	if s.drain <= 0 {
		s.drain = defaultDrainTimeout
	}
	s.engine = s.buildRouter(cfg)
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on addr until ctx is done, then drains in-flight
// requests within the configured timeout. Implements agent.AdminRunner.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("admin.Server.Serve listening addr=%q", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		log.Info().Msgf("admin.Server.Serve stopped addr=%q", addr)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter(cfg config.AgentConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(observability.InitLogger("voiced.admin")))
	router.Use(observability.RequestMetricsMiddleware(cfg.WorkerID))
	if len(cfg.CorsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CorsOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"*"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
		}))
	}

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/skills", s.handleSkills)
	router.GET("/events", s.handleEvents)
	router.GET("/events/recent", s.handleRecentEvents)

	sessions := router.Group("/sessions")
	sessions.GET("", s.handleListSessions)
	sessions.GET("/:session", s.handleGetSession)

	mutating := sessions.Group("")
	mutating.Use(s.requireAuth())
	mutating.POST("", s.handleCreateSession)
	mutating.POST("/:session/skills/:skill/ops/:op", s.handleInvoke)

	return router
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth == nil {
			c.Next()
			return
		}
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if err := s.auth.Validate(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) handleReady(c *gin.Context) {
	if err := s.service.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleSkills(c *gin.Context) {
	metas := s.service.Skills()
	out := make([]skillView, 0, len(metas))
	for _, meta := range metas {
		view := skillView{
			ID:          meta.ID,
			Name:        meta.Name,
			Description: meta.Description,
			Operations:  make([]operationView, 0),
		}
		ops, _ := s.service.SkillOperations(meta.ID)
		for _, op := range ops {
			view.Operations = append(view.Operations, operationView{
				Name:        op.Name,
				Description: op.Description,
				Idempotent:  op.Idempotent,
			})
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Sessions().ListInfo())
}

func (s *Server) handleGetSession(c *gin.Context) {
	info, ok := s.service.Sessions().Info(c.Param("session"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.service.Sessions().Create()
	info, _ := s.service.Sessions().Info(sess.ID())
	c.JSON(http.StatusCreated, info)
}

func (s *Server) handleInvoke(c *gin.Context) {
	var req invokeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	res, err := s.service.Sessions().Invoke(
		c.Request.Context(),
		c.Param("session"),
		c.Param("skill"),
		c.Param("op"),
		req.Args,
	)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, invokeView(res))
	case errors.Is(err, agent.ErrUnknownSession), errors.Is(err, agent.ErrUnknownSkill):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, agent.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, skills.ErrUnknownOperation):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "response": res.Response})
	case errors.Is(err, skills.ErrInvalidArgs):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "response": res.Response})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "response": res.Response})
	}
}

func (s *Server) handleRecentEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Events().Recent())
}

func invokeView(res skills.SkillResult) invokeResponse {
	return invokeResponse{
		Status:   res.Status,
		Response: res.Response,
		Data:     res.Data,
		ExitCode: res.ExitCode,
	}
}
