package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"blog-manager/internal/domain"
	"blog-manager/internal/service"
	"blog-manager/internal/token"
)

// CookieConfig describes how the refresh token cookie is issued. The token
// never appears in a JSON body; the HttpOnly cookie is its only transport.
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

// RateLimits configures per-IP throttling of the credential endpoints.
type RateLimits struct {
	LoginPerMinute  int
	RegisterPerHour int
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth   service.AuthService
	posts  service.PostService
	jwt    *token.Manager
	cookie CookieConfig
	logger *logrus.Logger

	loginLimiter    *ipLimiter
	registerLimiter *ipLimiter
}

func NewHandler(auth service.AuthService, posts service.PostService, jwt *token.Manager, cookie CookieConfig, limits RateLimits, logger *logrus.Logger) *Handler {
	if limits.LoginPerMinute <= 0 {
		limits.LoginPerMinute = 5
	}
	if limits.RegisterPerHour <= 0 {
		limits.RegisterPerHour = 3
	}
	return &Handler{
		auth:            auth,
		posts:           posts,
		jwt:             jwt,
		cookie:          cookie,
		logger:          logger,
		loginLimiter:    newIPLimiter(rate.Every(time.Minute/time.Duration(limits.LoginPerMinute)), limits.LoginPerMinute),
		registerLimiter: newIPLimiter(rate.Every(time.Hour/time.Duration(limits.RegisterPerHour)), limits.RegisterPerHour),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.registerLimiter.Middleware(), h.register)
		auth.POST("/login", h.loginLimiter.Middleware(), h.login)
		auth.POST("/refresh", h.refresh)
		auth.POST("/logout", h.authMiddleware(), h.logout)
		auth.GET("/me", h.authMiddleware(), h.me)
	}

	posts := api.Group("/posts", h.authMiddleware())
	{
		posts.GET("", h.listPosts)
		posts.POST("", h.createPost)
		posts.GET("/:id", h.getPost)
		posts.PUT("/:id", h.updatePost)
		posts.PATCH("/:id", h.updatePost)
		posts.DELETE("/:id", h.deletePost)
	}
}

func (h *Handler) setRefreshCookie(c *gin.Context, refreshToken string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		h.cookie.Name,
		refreshToken,
		int(h.cookie.MaxAge.Seconds()),
		h.cookie.Path,
		"",
		h.cookie.Secure,
		true, // HttpOnly
	)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetCookie(h.cookie.Name, "", -1, h.cookie.Path, "", h.cookie.Secure, true)
}

type registerRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body.", gin.H{"detail": err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.auth.IssueTokenPair(user)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusCreated, gin.H{
		"user":   userToResponse(user),
		"access": pair.AccessToken,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body.", gin.H{"detail": err.Error()})
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.auth.IssueTokenPair(user)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"user":   userToResponse(user),
		"access": pair.AccessToken,
	})
}

func (h *Handler) refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(h.cookie.Name)
	if err != nil || refreshToken == "" {
		respondErrorCode(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "No refresh token provided.", nil)
		return
	}

	pair, err := h.auth.Rotate(c.Request.Context(), refreshToken)
	if err != nil {
		h.clearRefreshCookie(c)
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"access": pair.AccessToken})
}

func (h *Handler) logout(c *gin.Context) {
	if refreshToken, err := c.Cookie(h.cookie.Name); err == nil && refreshToken != "" {
		h.auth.Revoke(c.Request.Context(), refreshToken)
	}
	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondErrorCode(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Authentication credentials were not provided.", nil)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) listPosts(c *gin.Context) {
	query := service.ListPostsQuery{
		Category: c.Query("category"),
		Search:   strings.TrimSpace(c.Query("search")),
		Ordering: c.DefaultQuery("ordering", "-created_at"),
	}

	if raw := c.Query("status"); raw != "" {
		status := domain.PostStatus(raw)
		if !status.Valid() {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "One or more fields failed validation.", gin.H{"status": "must be draft or published"})
			return
		}
		query.Status = &status
	}
	for param, dest := range map[string]**time.Time{
		"created_after":  &query.CreatedAfter,
		"created_before": &query.CreatedBefore,
	} {
		if raw := c.Query(param); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "One or more fields failed validation.", gin.H{param: "must be an RFC 3339 timestamp"})
				return
			}
			*dest = &t
		}
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 || query.PageSize > 100 {
		query.PageSize = 10
	}

	posts, total, err := h.posts.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]PostListItem, len(posts))
	for i := range posts {
		items[i] = postToListItem(c.Request.Context(), h.posts, &posts[i])
	}
	c.JSON(http.StatusOK, PostListResponse{
		Results:    items,
		Page:       query.Page,
		PageSize:   query.PageSize,
		Total:      total,
		TotalPages: totalPages(total, query.PageSize),
	})
}

type createPostRequest struct {
	Title    string `json:"title" form:"title" binding:"required"`
	Content  string `json:"content" form:"content" binding:"required"`
	Excerpt  string `json:"excerpt" form:"excerpt"`
	Category string `json:"category" form:"category"`
	Status   string `json:"status" form:"status"`
}

func (h *Handler) createPost(c *gin.Context) {
	user := currentUser(c)

	var req createPostRequest
	var thumbnail *service.ThumbnailUpload
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&req); err != nil {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body.", gin.H{"detail": err.Error()})
			return
		}
		upload, cleanup, err := thumbnailFromForm(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if cleanup != nil {
			defer cleanup()
		}
		thumbnail = upload
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body.", gin.H{"detail": err.Error()})
			return
		}
	}

	status := domain.PostStatusDraft
	if req.Status != "" {
		status = domain.PostStatus(req.Status)
	}

	post, err := h.posts.Create(c.Request.Context(), service.CreatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Excerpt:   req.Excerpt,
		Category:  req.Category,
		Status:    status,
		Author:    user,
		Thumbnail: thumbnail,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, postToResponse(c.Request.Context(), h.posts, post))
}

// thumbnailFromForm extracts the optional thumbnail file from a multipart
// request. The returned cleanup closes the underlying file.
func thumbnailFromForm(c *gin.Context) (*service.ThumbnailUpload, func(), error) {
	header, err := c.FormFile("thumbnail")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, nil
		}
		return nil, nil, domain.NewValidationError("thumbnail", "could not read uploaded file")
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, domain.NewValidationError("thumbnail", "could not read uploaded file")
	}

	return &service.ThumbnailUpload{
		Filename:    header.Filename,
		ContentType: detectContentType(header),
		Size:        header.Size,
		Body:        file,
	}, func() { file.Close() }, nil
}

func detectContentType(header *multipart.FileHeader) string {
	return header.Header.Get("Content-Type")
}

func (h *Handler) getPost(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondErrorCode(c, http.StatusNotFound, "NOT_FOUND", "The requested resource was not found.", nil)
		return
	}

	post, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, postToResponse(c.Request.Context(), h.posts, post))
}

type updatePostRequest struct {
	Title    *string `json:"title" form:"title"`
	Content  *string `json:"content" form:"content"`
	Excerpt  *string `json:"excerpt" form:"excerpt"`
	Category *string `json:"category" form:"category"`
	Status   *string `json:"status" form:"status"`
}

func (h *Handler) updatePost(c *gin.Context) {
	user := currentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondErrorCode(c, http.StatusNotFound, "NOT_FOUND", "The requested resource was not found.", nil)
		return
	}

	var req updatePostRequest
	var thumbnail *service.ThumbnailUpload
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&req); err != nil {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body.", gin.H{"detail": err.Error()})
			return
		}
		upload, cleanup, err := thumbnailFromForm(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if cleanup != nil {
			defer cleanup()
		}
		thumbnail = upload
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body.", gin.H{"detail": err.Error()})
			return
		}
	}

	changes := service.UpdatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Excerpt:   req.Excerpt,
		Category:  req.Category,
		Thumbnail: thumbnail,
	}
	if req.Status != nil {
		status := domain.PostStatus(*req.Status)
		changes.Status = &status
	}

	post, err := h.posts.Update(c.Request.Context(), id, user, changes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, postToResponse(c.Request.Context(), h.posts, post))
}

func (h *Handler) deletePost(c *gin.Context) {
	user := currentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondErrorCode(c, http.StatusNotFound, "NOT_FOUND", "The requested resource was not found.", nil)
		return
	}

	if err := h.posts.Delete(c.Request.Context(), id, user); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
