package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hopnet-labs/hoplink/internal/clicks"
	"github.com/hopnet-labs/hoplink/internal/model"
	"github.com/hopnet-labs/hoplink/internal/service"
)

var meter = otel.Meter("github.com/hopnet-labs/hoplink/internal/api")

// Handler holds HTTP handlers and dependencies.
// It follows the dependency injection pattern, receiving
// interfaces rather than concrete implementations for testability.
type Handler struct {
	linkService service.LinkServiceInterface // Link business logic
	db          DBInterface                  // Database connection for health checks
	cache       CacheInterface               // Cache connection for health checks
	logger      *slog.Logger                 // Structured logger for validation/error logging

	redirects metric.Int64Counter // redirect resolutions by outcome
}

// DBInterface defines the database operations needed by the handler.
// This interface allows for easy mocking in unit tests without
// requiring a real database connection.
type DBInterface interface {
	Ping(ctx context.Context) error // Check database connectivity
	Close()                         // Close database connection
}

// CacheInterface defines the cache operations needed by the handler.
// This interface allows for easy mocking in unit tests without
// requiring a real cache connection.
type CacheInterface interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler instance with the provided dependencies.
// It accepts interfaces to enable dependency injection and facilitate testing.
func NewHandler(linkService service.LinkServiceInterface, db DBInterface, cache CacheInterface, logger *slog.Logger) *Handler {
	redirects, _ := meter.Int64Counter("hoplink_redirects_total",
		metric.WithDescription("Redirect resolutions by outcome"))

	return &Handler{
		linkService: linkService,
		db:          db,
		cache:       cache,
		logger:      logger,
		redirects:   redirects,
	}
}

// RegisterRoutes registers all route definitions on the given Gin engine.
// The caller is responsible for creating the engine and adding middleware
// before calling this method, so middleware runs in the correct order.
// Routes are organized into:
//   - Health check and metrics endpoints for monitoring
//   - API v1 endpoints for link management (grouped under /api/v1)
//   - Public redirect endpoint for short code resolution
func (h *Handler) RegisterRoutes(r *gin.Engine, metricsHandler http.Handler, apiMiddleware ...gin.HandlerFunc) {
	r.GET("/health", h.healthCheck)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// API v1 routes - grouped for versioning
	v1 := r.Group("/api/v1", apiMiddleware...)
	{
		v1.POST("/links", h.createLink)            // Create short link
		v1.GET("/links/:code", h.getLink)          // Get link metadata
		v1.PATCH("/links/:id/active", h.setActive) // Activate / deactivate
		v1.DELETE("/links/:id", h.deleteLink)      // Delete link
	}

	// Redirect route (public) - must be last to avoid conflicts
	r.GET("/:code", h.redirect)
}

// healthCheck handles GET /health
// Returns the health status of the service and all dependencies.
// Response codes:
//   - 200 OK: All dependencies are healthy
//   - 503 Service Unavailable: One or more dependencies are down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	cacheErr := h.cache.Ping(ctx)
	dbErr := h.db.Ping(ctx)

	status := "ok"
	code := http.StatusOK
	deps := gin.H{"cache": "up", "database": "up"}

	if cacheErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["cache"] = "down"
	}
	if dbErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["database"] = "down"
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// createLink handles POST /api/v1/links
// Creates a new short link from the provided target URL.
// Request body: CreateLinkRequest (JSON)
// Response codes:
//   - 201 Created: Short link successfully created
//   - 400 Bad Request: Invalid request body or URL
//   - 500 Internal Server Error: Unexpected error or code space exhausted
func (h *Handler) createLink(c *gin.Context) {
	ctx := c.Request.Context()
	var req model.CreateLinkRequest

	// Bind and validate JSON request body
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.linkService.CreateLink(ctx, &req)
	if err != nil {
		// Map service errors to appropriate HTTP status codes
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.errorResponse(c, http.StatusBadRequest, "Invalid URL")
		case errors.Is(err, service.ErrShortCodeGeneration):
			h.logger.ErrorContext(ctx, "short code space exhausted",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		default:
			h.logger.ErrorContext(ctx, "unexpected error creating link",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getLink handles GET /api/v1/links/:code
// Retrieves metadata for a short link without recording a click.
// Path parameter: code - the short code to look up
// Response codes:
//   - 200 OK: Link metadata retrieved successfully
//   - 404 Not Found: Short code does not exist
//   - 410 Gone: Link has expired
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) getLink(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	resp, err := h.linkService.GetLink(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			h.errorResponse(c, http.StatusNotFound, "Link not found")
		case errors.Is(err, service.ErrLinkExpired):
			h.errorResponse(c, http.StatusGone, "Link has expired")
		default:
			h.logger.ErrorContext(ctx, "unexpected error fetching link",
				slog.String("error", err.Error()),
				slog.String("code", code))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// setActive handles PATCH /api/v1/links/:id/active
// Toggles a link's active flag; deactivated links stop resolving until
// re-activated.
// Response codes:
//   - 204 No Content: Flag updated
//   - 400 Bad Request: Invalid id or body
//   - 404 Not Found: Link does not exist
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) setActive(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid link id")
		return
	}

	var req model.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.linkService.SetActive(ctx, id, *req.Active); err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			h.errorResponse(c, http.StatusNotFound, "Link not found")
		default:
			h.logger.ErrorContext(ctx, "unexpected error updating link",
				slog.String("error", err.Error()),
				slog.String("id", id.String()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// deleteLink handles DELETE /api/v1/links/:id
// Permanently deletes a short link and, via cascade, its click events.
// Response codes:
//   - 204 No Content: Link successfully deleted
//   - 400 Bad Request: Invalid id
//   - 404 Not Found: Link does not exist
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) deleteLink(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid link id")
		return
	}

	if err := h.linkService.DeleteLink(ctx, id); err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			h.errorResponse(c, http.StatusNotFound, "Link not found")
		default:
			h.logger.ErrorContext(ctx, "unexpected error deleting link",
				slog.String("error", err.Error()),
				slog.String("id", id.String()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// redirect handles GET /:code
// Resolves the short code and redirects to the target URL. A successful
// resolution schedules a click-tracking side effect that never delays or
// fails the response. Bodies are plain text: redirect clients are not
// JSON consumers.
// Response codes:
//   - 302 Found: Location header carries the target URL
//   - 404 Not Found: Short code does not exist
//   - 410 Gone: Link is deactivated or has expired
//   - 500 Internal Server Error: Directory lookup failed or timed out
func (h *Handler) redirect(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	meta := clicks.Metadata{
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
		SourceIP:  c.ClientIP(),
	}

	target, err := h.linkService.Resolve(ctx, code, meta)
	if err != nil {
		// Deactivated and expired both map to 410 but are distinguished
		// in logs and metrics.
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			h.countRedirect(ctx, "not_found")
			c.String(http.StatusNotFound, "not found")
		case errors.Is(err, service.ErrLinkDeactivated):
			h.countRedirect(ctx, "gone_deactivated")
			h.logger.InfoContext(ctx, "redirect refused",
				slog.String("code", code),
				slog.String("reason", "deactivated"))
			c.String(http.StatusGone, "link deactivated")
		case errors.Is(err, service.ErrLinkExpired):
			h.countRedirect(ctx, "gone_expired")
			h.logger.InfoContext(ctx, "redirect refused",
				slog.String("code", code),
				slog.String("reason", "expired"))
			c.String(http.StatusGone, "link expired")
		default:
			// Infrastructure failure: never disguised as a 404.
			h.countRedirect(ctx, "internal_error")
			h.logger.ErrorContext(ctx, "redirect lookup failed",
				slog.String("error", err.Error()),
				slog.String("code", code))
			c.String(http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.countRedirect(ctx, "redirect")
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) countRedirect(ctx context.Context, outcome string) {
	h.redirects.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// errorResponse sends a standardized JSON error response.
// It uses the HTTP status code to determine the error type
// and includes a custom message for additional context.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{
		Error:   http.StatusText(status), // e.g., "Bad Request", "Not Found"
		Message: message,                 // Custom error message
	})
}
