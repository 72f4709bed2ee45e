package http

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/toolsascode/gfm/internal/api/http/dto"
	"github.com/toolsascode/gfm/internal/auth"
	"github.com/toolsascode/gfm/internal/backends"
	"github.com/toolsascode/gfm/internal/executor"
	"github.com/toolsascode/gfm/internal/state"
)

// Handler handles HTTP API requests
type Handler struct {
	executor *executor.Executor
	apiToken string
}

// NewHandler creates a new HTTP handler validating against the given
// API token
func NewHandler(exec *executor.Executor, apiToken string) *Handler {
	return &Handler{
		executor: exec,
		apiToken: apiToken,
	}
}

// RegisterRoutes registers HTTP routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	// Health and the API contract stay reachable without a token.
	router.GET("/health", h.Health)
	router.GET("/openapi.yaml", h.OpenAPISpec)
	router.GET("/openapi.json", h.OpenAPISpecJSON)

	api := router.Group("/api/v1")
	{
		// Handle OPTIONS for all routes
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		api.GET("/migrations", h.authenticate, h.listMigrations)
		api.GET("/migrations/:id", h.authenticate, h.getMigration)
		api.POST("/migrations/apply", h.authenticate, h.applyMigrations)
		api.POST("/migrations/rollback", h.authenticate, h.rollbackMigrations)
		api.GET("/graphs", h.authenticate, h.listGraphs)
	}
}

// CORSMiddleware answers preflight requests and stamps the response
// headers. With no configured origins any origin is mirrored back.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin == "":
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case len(allowed) == 0 || allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authenticate middleware validates the API token
func (h *Handler) authenticate(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	token, err := auth.ExtractToken(authHeader)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return
	}

	if err := auth.ValidateToken(token, h.apiToken); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return
	}

	c.Next()
}

// runContext stamps the request context with the run metadata recorded
// in the migration history
func (h *Handler) runContext(c *gin.Context) context.Context {
	actor := "api_user"
	// Browser calls carry an Origin or X-Requested-With header; treat
	// those as manual runs.
	if c.GetHeader("Origin") != "" || c.GetHeader("X-Requested-With") != "" {
		actor = "frontend_user"
	}
	return executor.WithRunMetadata(c.Request.Context(), actor, "api")
}

// applyMigrations runs (or queues) the pending migrations of a graph
func (h *Handler) applyMigrations(c *gin.Context) {
	var req dto.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.executor.GetGraphConfig(req.Graph); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx := h.runContext(c)

	var result *executor.Result
	var err error
	if req.Async {
		result, err = h.executor.Up(ctx, req.Graph, req.ToVersion, req.DryRun)
	} else {
		result, err = h.executor.UpSync(ctx, req.Graph, req.ToVersion, req.DryRun)
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(runStatusCode(result), runResponse(result))
}

// rollbackMigrations undoes (or queues undoing) applied migrations
func (h *Handler) rollbackMigrations(c *gin.Context) {
	var req dto.RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.executor.GetGraphConfig(req.Graph); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx := h.runContext(c)

	var result *executor.Result
	var err error
	if req.Async {
		result, err = h.executor.Down(ctx, req.Graph, req.ToVersion, req.Steps, req.DryRun)
	} else {
		result, err = h.executor.DownSync(ctx, req.Graph, req.ToVersion, req.Steps, req.DryRun)
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(runStatusCode(result), runResponse(result))
}

// listMigrations lists registered migrations with their recorded state
func (h *Handler) listMigrations(c *gin.Context) {
	var filters dto.MigrationListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reg := h.executor.GetRegistry()
	var migrations []*backends.MigrationScript
	if filters.Graph != "" {
		migrations = reg.GetByGraph(filters.Graph)
		if len(migrations) == 0 {
			if _, err := h.executor.GetGraphConfig(filters.Graph); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
		}
	} else {
		migrations = reg.GetAll()
	}

	tracker := h.executor.GetTracker()
	items := make([]dto.MigrationListItem, 0, len(migrations))
	for _, m := range migrations {
		if filters.App != "" && m.App != filters.App {
			continue
		}

		record, err := tracker.Get(c.Request.Context(), m.ID())
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		item := dto.MigrationListItem{
			MigrationID:  m.ID(),
			Version:      m.Version,
			Name:         m.Name,
			Graph:        m.Graph,
			App:          m.App,
			Irreversible: m.Irreversible,
			Status:       "pending",
		}
		if record != nil {
			item.Applied = record.Status == state.StatusApplied
			item.Status = string(record.Status)
			if !record.AppliedAt.IsZero() {
				item.AppliedAt = record.AppliedAt.UTC().Format(time.RFC3339)
			}
			if record.RolledBackAt != nil {
				item.RolledBackAt = record.RolledBackAt.UTC().Format(time.RFC3339)
			}
		}

		if filters.Status != "" && item.Status != filters.Status {
			continue
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, dto.MigrationListResponse{
		Items: items,
		Total: len(items),
	})
}

// getMigration returns one migration with scripts, console summary and
// run history
func (h *Handler) getMigration(c *gin.Context) {
	migrationID := c.Param("id")

	migration, ok := h.executor.GetRegistry().GetByID(migrationID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "migration not found"})
		return
	}

	tracker := h.executor.GetTracker()
	record, err := tracker.Get(c.Request.Context(), migrationID)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	history, err := tracker.History(c.Request.Context(), migrationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := dto.MigrationDetailResponse{
		MigrationID:  migrationID,
		Version:      migration.Version,
		Name:         migration.Name,
		Graph:        migration.Graph,
		App:          migration.App,
		Irreversible: migration.Irreversible,
		Status:       "pending",
		UpScript:     migration.UpScript,
		DownScript:   migration.DownScript,
		Console:      migration.Console,
		Dependencies: migration.Dependencies,
		Source:       migration.Source,
		History:      make([]dto.HistoryEntryResponse, 0, len(history)),
	}
	if record != nil {
		response.Applied = record.Status == state.StatusApplied
		response.Status = string(record.Status)
	}
	for _, entry := range history {
		response.History = append(response.History, dto.HistoryEntryResponse{
			ID:          entry.ID,
			MigrationID: entry.MigrationID,
			Action:      string(entry.Action),
			Status:      entry.Status,
			Error:       entry.Error,
			RunID:       entry.RunID,
			CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, response)
}

// listGraphs reports the configured graph connections with ping status
func (h *Handler) listGraphs(c *gin.Context) {
	names := h.executor.GraphNames()
	sort.Strings(names)

	graphs := make([]dto.GraphStatus, 0, len(names))
	for _, name := range names {
		config, err := h.executor.GetGraphConfig(name)
		if err != nil {
			continue
		}

		status := dto.GraphStatus{
			Name:     name,
			Backend:  config.Backend,
			Endpoint: config.Endpoint(),
		}
		if err := h.executor.PingGraph(c.Request.Context(), name); err != nil {
			status.Error = err.Error()
		} else {
			status.Healthy = true
		}
		graphs = append(graphs, status)
	}

	c.JSON(http.StatusOK, dto.GraphListResponse{
		Graphs: graphs,
		Total:  len(graphs),
	})
}

// Health handles health check requests
func (h *Handler) Health(c *gin.Context) {
	healthStatus := gin.H{
		"status": "healthy",
		"checks": gin.H{},
	}

	if err := h.executor.HealthCheck(c.Request.Context()); err != nil {
		healthStatus["status"] = "unhealthy"
		healthStatus["checks"].(gin.H)["state"] = err.Error()
	} else {
		healthStatus["checks"].(gin.H)["state"] = "ok"
	}

	statusCode := http.StatusOK
	if healthStatus["status"] == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthStatus)
}

//go:embed openapi.yaml
var openAPISpecYAML []byte

// OpenAPISpec serves the OpenAPI specification in YAML format
func (h *Handler) OpenAPISpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/x-yaml", openAPISpecYAML)
}

// OpenAPISpecJSON serves the OpenAPI specification in JSON format
func (h *Handler) OpenAPISpecJSON(c *gin.Context) {
	var spec map[string]interface{}
	if err := yaml.Unmarshal(openAPISpecYAML, &spec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse OpenAPI spec"})
		return
	}
	c.JSON(http.StatusOK, spec)
}

// statusFor maps executor errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, executor.ErrUnknownGraph):
		return http.StatusNotFound
	case errors.Is(err, executor.ErrIrreversible), errors.Is(err, executor.ErrLockBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// runStatusCode picks the response code for a finished run
func runStatusCode(result *executor.Result) int {
	if result.Queued {
		return http.StatusAccepted
	}
	if !result.Success {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

func runResponse(result *executor.Result) dto.RunResponse {
	return dto.RunResponse{
		Graph:   result.Graph,
		Action:  string(result.Action),
		Success: result.Success,
		Applied: result.Applied,
		Skipped: result.Skipped,
		Errors:  result.Errors,
		Queued:  result.Queued,
		JobID:   result.JobID,
	}
}
