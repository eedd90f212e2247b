package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-auction/author-service/internal/domain"
	"github.com/weiawesome/wes-auction/author-service/internal/service"
	pkglog "github.com/weiawesome/wes-auction/pkg/log"
	"github.com/weiawesome/wes-auction/pkg/middleware"
	"github.com/weiawesome/wes-auction/pkg/response"
)

// Handler handles HTTP requests for the author service.
type Handler struct {
	svc            service.AuthorService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc service.AuthorService, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		svc:            svc,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		authors := api.Group("/authors")
		{
			// POST /api/v1/authors/follow, auth required when enabled
			authors.POST("/follow", h.authMiddleware.RequireAuth(), h.ToggleFollow)
			// GET /api/v1/authors?sort=follow|name, no auth
			authors.GET("", h.ListAuthors)
			// GET /api/v1/authors/:author_id, no auth
			authors.GET("/:author_id", h.GetAuthorDetail)
			// GET /api/v1/authors/:author_id/followers/:user_id, no auth
			authors.GET("/:author_id/followers/:user_id", h.GetFollowStatus)
		}
	}
}

// ToggleFollow handles POST /api/v1/authors/follow.
func (h *Handler) ToggleFollow(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	var req domain.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id and author_id are required")
		return
	}

	if h.authMiddleware.Enabled() {
		callerID, ok := middleware.GetUserID(c)
		if !ok {
			response.Unauthorized(c, "unauthorized")
			return
		}
		if callerID != req.UserID {
			response.Forbidden(c, "cannot toggle follow for another user")
			return
		}
	}

	result, err := h.svc.ToggleFollow(ctx, req.UserID, req.AuthorID)
	if err != nil {
		if !writeServiceError(c, err) {
			l.Error().Err(err).
				Uint(pkglog.FieldUserID, req.UserID).
				Uint(pkglog.FieldAuthorID, req.AuthorID).
				Msg("toggle follow failed")
			response.InternalError(c, "failed to toggle follow")
		}
		return
	}

	response.Success(c, result)
}

// ListAuthors handles GET /api/v1/authors.
func (h *Handler) ListAuthors(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	sortByFollow, err := parseSort(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	authors, err := h.svc.ListAuthors(ctx, sortByFollow)
	if err != nil {
		l.Error().Err(err).Bool("sort_by_follow", sortByFollow).Msg("list authors failed")
		response.InternalError(c, "failed to list authors")
		return
	}

	response.Success(c, authors)
}

// GetAuthorDetail handles GET /api/v1/authors/:author_id.
func (h *Handler) GetAuthorDetail(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	authorID, err := parseID(c, "author_id")
	if err != nil {
		response.BadRequest(c, "invalid author_id")
		return
	}

	detail, err := h.svc.GetAuthorDetail(ctx, authorID)
	if err != nil {
		if !writeServiceError(c, err) {
			l.Error().Err(err).Uint(pkglog.FieldAuthorID, authorID).Msg("get author detail failed")
			response.InternalError(c, "failed to get author")
		}
		return
	}

	response.Success(c, detail)
}

// GetFollowStatus handles GET /api/v1/authors/:author_id/followers/:user_id.
func (h *Handler) GetFollowStatus(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	authorID, err := parseID(c, "author_id")
	if err != nil {
		response.BadRequest(c, "invalid author_id")
		return
	}
	userID, err := parseID(c, "user_id")
	if err != nil {
		response.BadRequest(c, "invalid user_id")
		return
	}

	following, err := h.svc.IsFollowing(ctx, userID, authorID)
	if err != nil {
		if !writeServiceError(c, err) {
			l.Error().Err(err).
				Uint(pkglog.FieldUserID, userID).
				Uint(pkglog.FieldAuthorID, authorID).
				Msg("get follow status failed")
			response.InternalError(c, "failed to get follow status")
		}
		return
	}

	response.Success(c, domain.FollowStatus{UserID: userID, AuthorID: authorID, Following: following})
}

// parseID reads a positive id path parameter.
func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New(name + " must be positive")
	}
	return uint(id), nil
}

// parseSort reads ?sort=follow|name, falling back to ?sortByFollow=true|false.
func parseSort(c *gin.Context) (bool, error) {
	switch c.Query("sort") {
	case "follow":
		return true, nil
	case "name":
		return false, nil
	case "":
	default:
		return false, errors.New("sort must be follow or name")
	}

	raw := c.Query("sortByFollow")
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("sortByFollow must be true or false")
	}
	return v, nil
}

// writeServiceError maps domain errors to responses. It reports false for
// errors the caller must treat as internal.
func writeServiceError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, service.ErrAuthorNotFound):
		response.NotFound(c, "author not found")
	case errors.Is(err, service.ErrNotAuthor):
		response.BadRequest(c, "target user is not an author")
	default:
		return false
	}
	return true
}
