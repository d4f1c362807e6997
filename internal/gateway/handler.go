package gateway

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/auth"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/models"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/orchestration"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/store"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	generationService *orchestration.Service
	jwtManager        *auth.JWTManager
	pool              *pgxpool.Pool
}

// NewHandler creates a new gateway handler
func NewHandler(generationService *orchestration.Service, jwtManager *auth.JWTManager, pool *pgxpool.Pool) *Handler {
	return &Handler{
		generationService: generationService,
		jwtManager:        jwtManager,
		pool:              pool,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request", Code: models.ErrCodeInvalidRequest})
		return
	}

	var userID string
	var hashedPassword string
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, hashed_password FROM users WHERE email = $1`,
		req.Email,
	).Scan(&userID, &hashedPassword)

	if err != nil {
		log.Printf(`{"level":"warn","message":"User not found","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password", Code: models.ErrCodeUnauthorized})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid password","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password", Code: models.ErrCodeUnauthorized})
		return
	}

	token, err := h.jwtManager.GenerateToken(
		c.Request.Context(),
		userID,
		req.Email,
		[]string{"admin"},
		auth.DefaultTokenDuration,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token", Code: models.ErrCodeInternalError})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		UserID: userID,
	})
}

// RefreshToken godoc
// @Summary Refresh JWT token
// @Description Exchange the presented bearer token for a fresh one with a full lifetime
// @Tags auth
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Missing bearer token", Code: models.ErrCodeUnauthorized})
		return
	}

	token, err := h.jwtManager.RefreshToken(c.Request.Context(), strings.TrimSpace(authHeader[len(prefix):]), auth.DefaultTokenDuration)
	if err != nil {
		log.Printf(`{"level":"warn","message":"Token refresh rejected","error":"%v"}`, err)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or expired token", Code: models.ErrCodeUnauthorized})
		return
	}

	userIDVal, _ := c.Get("user_id")
	userID, _ := userIDVal.(string)

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		UserID: userID,
	})
}

// CreateGenerationRequest represents a generation task creation request.
// Either model_id or model_slug must be set.
type CreateGenerationRequest struct {
	ModelID         string                 `json:"model_id"`
	ModelSlug       string                 `json:"model_slug"`
	Prompt          string                 `json:"prompt" binding:"required"`
	InputImages     []string               `json:"input_images"`
	NumberOfOutputs int                    `json:"number_of_outputs"`
	Parameters      map[string]interface{} `json:"parameters"`
}

// CreateGeneration godoc
// @Summary Create generation task
// @Description Create a generation task and dispatch it to the model's provider
// @Tags generations
// @Accept json
// @Produce json
// @Param request body CreateGenerationRequest true "Generation request"
// @Success 201 {object} store.Task
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/generations [post]
func (h *Handler) CreateGeneration(c *gin.Context) {
	var req CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request", Code: models.ErrCodeInvalidRequest})
		return
	}
	if req.ModelID == "" && req.ModelSlug == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Either model_id or model_slug is required", Code: models.ErrCodeInvalidRequest})
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "User not authenticated", Code: models.ErrCodeUnauthorized})
		return
	}
	userID := userIDVal.(string)

	task, err := h.generationService.CreateGeneration(c.Request.Context(), orchestration.CreateGenerationInput{
		ModelID:         req.ModelID,
		ModelSlug:       req.ModelSlug,
		UserID:          userID,
		Prompt:          req.Prompt,
		InputImages:     req.InputImages,
		NumberOfOutputs: req.NumberOfOutputs,
		Parameters:      req.Parameters,
	})
	if err != nil {
		if errors.Is(err, store.ErrModelNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Model not found", Code: models.ErrCodeModelNotFound})
			return
		}
		log.Printf(`{"level":"error","message":"Failed to create generation","error":"%v","user_id":"%s"}`, err, userID)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create generation", Code: models.ErrCodeInternalError, Details: map[string]string{"reason": err.Error()}})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetGeneration godoc
// @Summary Get generation task
// @Description Fetch a generation task by id
// @Tags generations
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} store.Task
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/generations/{id} [get]
func (h *Handler) GetGeneration(c *gin.Context) {
	task, err := h.generationService.GetGeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Generation not found", Code: models.ErrCodeTaskNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to fetch generation", Code: models.ErrCodeInternalError})
		return
	}

	c.JSON(http.StatusOK, task)
}

// DeleteGeneration godoc
// @Summary Delete generation task
// @Description Soft-delete a generation task. An in-flight reconciliation loop notices the deletion and stops polling.
// @Tags generations
// @Produce json
// @Param id path string true "Task ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/generations/{id} [delete]
func (h *Handler) DeleteGeneration(c *gin.Context) {
	err := h.generationService.DeleteGeneration(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Generation not found", Code: models.ErrCodeTaskNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to delete generation", Code: models.ErrCodeInternalError})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListModels godoc
// @Summary List generation models
// @Description List the configured generation model catalog
// @Tags models
// @Produce json
// @Success 200 {array} store.Model
// @Security BearerAuth
// @Router /api/models [get]
func (h *Handler) ListModels(c *gin.Context) {
	catalog, err := h.generationService.ListModels(c.Request.Context())
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to list models","error":"%v"}`, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list models", Code: models.ErrCodeInternalError})
		return
	}

	c.JSON(http.StatusOK, catalog)
}

// ListAdapters godoc
// @Summary List registered adapters
// @Description List the adapter names available for model configuration
// @Tags models
// @Produce json
// @Success 200 {array} string
// @Security BearerAuth
// @Router /api/adapters [get]
func (h *Handler) ListAdapters(c *gin.Context) {
	c.JSON(http.StatusOK, h.generationService.ListAdapters())
}
