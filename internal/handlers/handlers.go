package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Brownie44l1/inference-api/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const defaultMaxBodyBytes = 10 << 20

type Handler struct {
	pipeline     *pipeline.Pipeline
	maxBodyBytes int64
}

// NewHandler caps every request body at maxBodyBytes; non-positive means 10 MiB.
func NewHandler(p *pipeline.Pipeline, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		pipeline:     p,
		maxBodyBytes: maxBodyBytes,
	}
}

// NewRouter registers the health, predict and invoke routes.
func NewRouter(h *Handler, env string) *gin.Engine {
	if env == "prod" || env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(enableCORS())

	router.GET("/health", h.Health)
	router.POST("/predict", h.Predict)
	router.POST("/predict/image", h.PredictFromImage)
	router.POST("/invoke", h.Invoke)
	return router
}

func enableCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "task": h.pipeline.Task()})
}

// Predict takes the request payload as the HTTP body and answers with the
// envelope's status and body.
func (h *Handler) Predict(c *gin.Context) {
	if h.tooLarge(c) {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if h.abortIfTooLarge(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, pipeline.ErrorResponse{Error: pipeline.KindBadRequest, Message: "Failed to read request body"})
		return
	}

	resp := h.pipeline.Handle(c.Request.Context(), body)
	c.Data(resp.StatusCode, "application/json", []byte(resp.Body))
}

// Invoke takes a serverless event ({"body": "<json>"}) and returns the full
// envelope.
func (h *Handler) Invoke(c *gin.Context) {
	if h.tooLarge(c) {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	var event pipeline.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		if h.abortIfTooLarge(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, pipeline.ErrorResponse{Error: pipeline.KindBadRequest, Message: "Invalid event: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.pipeline.HandleEvent(c.Request.Context(), event))
}

// PredictFromImage classifies an uploaded image. The form field is "image" and
// the count comes from the n_predictions query parameter (default 5).
func (h *Handler) PredictFromImage(c *gin.Context) {
	if h.tooLarge(c) {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	topN, err := strconv.Atoi(c.DefaultQuery("n_predictions", "5"))
	if err != nil {
		c.JSON(http.StatusBadRequest, pipeline.ErrorResponse{Error: pipeline.KindBadRequest, Message: "n_predictions must be an integer"})
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		if h.abortIfTooLarge(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, pipeline.ErrorResponse{
			Error:   pipeline.KindBadRequest,
			Message: "No image file provided. Use 'image' as the form field name",
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, pipeline.ErrorResponse{Error: pipeline.KindBadRequest, Message: "Failed to open upload"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, pipeline.ErrorResponse{Error: pipeline.KindBadRequest, Message: "Failed to read upload"})
		return
	}
	log.Info().Str("file", header.Filename).Int64("size", header.Size).Msg("Received file")

	resp := h.pipeline.HandleImage(raw, topN)
	c.Data(resp.StatusCode, "application/json", []byte(resp.Body))
}

// tooLarge rejects requests whose declared length already exceeds the cap.
func (h *Handler) tooLarge(c *gin.Context) bool {
	if c.Request.ContentLength <= h.maxBodyBytes {
		return false
	}
	h.rejectTooLarge(c)
	return true
}

// abortIfTooLarge answers 413 when err came from the body size cap.
func (h *Handler) abortIfTooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return false
	}
	h.rejectTooLarge(c)
	return true
}

func (h *Handler) rejectTooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, pipeline.ErrorResponse{
		Error:   pipeline.KindBadRequest,
		Message: fmt.Sprintf("Request body exceeds %d bytes", h.maxBodyBytes),
	})
}
