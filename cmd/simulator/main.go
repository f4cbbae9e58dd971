package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SendRequest is the subset of the Cloud API send payload the simulator
// cares about. Everything else is accepted and ignored.
type SendRequest struct {
	MessagingProduct string `json:"messaging_product" binding:"required"`
	To               string `json:"to" binding:"required"`
	Type             string `json:"type" binding:"required"`
}

// SendResponse mirrors the Cloud API acknowledgement shape.
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// GraphError mirrors the Cloud API error envelope.
type GraphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status       string    `json:"status"`
	GraphID      string    `json:"graph_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

type storedMedia struct {
	data     []byte
	mimeType string
}

// MockGraph simulates the WhatsApp Business Cloud API: accepts message
// sends, mints media ids on upload, and serves descriptors and bytes back.
type MockGraph struct {
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	graphID      string
	rng          *rand.Rand

	mu    sync.RWMutex
	media map[string]storedMedia
}

func NewMockGraph(deliveryRate float64, minDelay, maxDelay time.Duration) *MockGraph {
	return &MockGraph{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		graphID:      "MOCK_GRAPH_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		media:        make(map[string]storedMedia),
	}
}

func (m *MockGraph) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockGraph) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockGraph) randomError() (int, string) {
	errs := []struct {
		code int
		msg  string
	}{
		{131026, "Message undeliverable"},
		{131047, "Re-engagement message: more than 24 hours have passed since the customer last replied"},
		{131048, "Spam rate limit hit"},
		{100, "Invalid parameter"},
	}
	e := errs[m.rng.Intn(len(errs))]
	return e.code, e.msg
}

func (m *MockGraph) putMedia(data []byte, mimeType string) string {
	id := uuid.New().String()
	m.mu.Lock()
	m.media[id] = storedMedia{data: data, mimeType: mimeType}
	m.mu.Unlock()
	return id
}

func (m *MockGraph) getMedia(id string) (storedMedia, bool) {
	m.mu.RLock()
	sm, ok := m.media[id]
	m.mu.RUnlock()
	return sm, ok
}

// Handler struct holds the mock graph and routes
type Handler struct {
	graph *MockGraph
}

func NewHandler(graph *MockGraph) *Handler {
	return &Handler{graph: graph}
}

func requireBearer(c *gin.Context) bool {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= len("Bearer ") {
		var ge GraphError
		ge.Error.Message = "Invalid OAuth access token"
		ge.Error.Type = "OAuthException"
		ge.Error.Code = 190
		c.JSON(http.StatusUnauthorized, ge)
		return false
	}
	return true
}

// SendMessage handles POST /{phone_number_id}/messages.
func (h *Handler) SendMessage(c *gin.Context) {
	if !requireBearer(c) {
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var ge GraphError
		ge.Error.Message = "Invalid parameter: " + err.Error()
		ge.Error.Type = "GraphMethodException"
		ge.Error.Code = 100
		c.JSON(http.StatusBadRequest, ge)
		return
	}

	time.Sleep(h.graph.randomDelay())

	if !h.graph.shouldSucceed() {
		code, msg := h.graph.randomError()
		var ge GraphError
		ge.Error.Message = msg
		ge.Error.Type = "OAuthException"
		ge.Error.Code = code

		log.Warn().
			Str("phone_number_id", c.Param("id")).
			Str("to", req.To).
			Int("code", code).
			Msg("send rejected")

		c.JSON(http.StatusBadRequest, ge)
		return
	}

	resp := SendResponse{MessagingProduct: "whatsapp"}
	resp.Messages = append(resp.Messages, struct {
		ID string `json:"id"`
	}{ID: "wamid." + uuid.New().String()})

	log.Info().
		Str("phone_number_id", c.Param("id")).
		Str("to", req.To).
		Str("type", req.Type).
		Str("message_id", resp.Messages[0].ID).
		Msg("message accepted")

	c.JSON(http.StatusOK, resp)
}

// UploadMedia handles POST /{phone_number_id}/media.
func (h *Handler) UploadMedia(c *gin.Context) {
	if !requireBearer(c) {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var ge GraphError
		ge.Error.Message = "Missing file part"
		ge.Error.Type = "GraphMethodException"
		ge.Error.Code = 100
		c.JSON(http.StatusBadRequest, ge)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = c.Request.FormValue("type")
	}

	id := h.graph.putMedia(data, mimeType)

	log.Info().
		Str("media_id", id).
		Str("mime_type", mimeType).
		Int("size", len(data)).
		Msg("media uploaded")

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// GetMedia handles GET /{media_id}: the descriptor lookup.
func (h *Handler) GetMedia(c *gin.Context) {
	if !requireBearer(c) {
		return
	}

	id := c.Param("id")
	sm, ok := h.graph.getMedia(id)
	if !ok {
		var ge GraphError
		ge.Error.Message = "Unsupported get request. Object with ID '" + id + "' does not exist"
		ge.Error.Type = "GraphMethodException"
		ge.Error.Code = 100
		c.JSON(http.StatusNotFound, ge)
		return
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"url":       fmt.Sprintf("%s://%s/%s/file", scheme, c.Request.Host, id),
		"mime_type": sm.mimeType,
		"file_size": len(sm.data),
	})
}

// DownloadMedia handles GET /{media_id}/file: raw bytes behind the
// short-lived URL the descriptor hands out.
func (h *Handler) DownloadMedia(c *gin.Context) {
	if !requireBearer(c) {
		return
	}

	sm, ok := h.graph.getMedia(c.Param("id"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	c.Data(http.StatusOK, sm.mimeType, sm.data)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		GraphID:      h.graph.graphID,
		Timestamp:    time.Now(),
		DeliveryRate: h.graph.deliveryRate,
	})
}

// UpdateConfig allows changing simulator behaviour at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.graph.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": h.graph.deliveryRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	router.GET("/health", handler.HealthCheck)
	router.PUT("/config", handler.UpdateConfig)

	// Graph-shaped routes. The :id segment is a phone number id for the
	// message and upload endpoints and a media id for the rest.
	router.POST("/:id/messages", handler.SendMessage)
	router.POST("/:id/media", handler.UploadMedia)
	router.GET("/:id", handler.GetMedia)
	router.GET("/:id/file", handler.DownloadMedia)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Cloud API simulator")

	graph := NewMockGraph(deliveryRate, minDelay, maxDelay)
	handler := NewHandler(graph)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
