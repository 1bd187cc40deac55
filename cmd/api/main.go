package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"supplier-pricing/export"
	"supplier-pricing/extractor"
	"supplier-pricing/internal/config"
	"supplier-pricing/internal/types"
)

// APIRequest represents the request body for the API. Either list the
// configurations or name a supplier and product type to generate them.
type APIRequest struct {
	Configurations []types.ProductConfiguration `json:"configurations"`
	Supplier       string                       `json:"supplier"`
	ProductType    types.ProductType            `json:"product_type"`
	Limit          int                          `json:"limit"`
}

// APIResponse represents the response from the API
type APIResponse struct {
	Success bool               `json:"success"`
	Data    *types.BatchReport `json:"data,omitempty"`
	Summary *export.Summary    `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Extractor prices a batch of configurations
type Extractor interface {
	Extract(ctx context.Context, configs []types.ProductConfiguration) (*types.BatchReport, error)
}

// Server holds the API server configuration
type Server struct {
	logger       *logrus.Logger
	config       *types.Config
	extractor    Extractor
	batchTimeout time.Duration
}

// NewServer creates a new API server
func NewServer(config *types.Config, extractor Extractor, logger *logrus.Logger) *Server {
	return &Server{
		logger:       logger,
		config:       config,
		extractor:    extractor,
		batchTimeout: 10 * time.Minute,
	}
}

// handleExtract handles the extraction API endpoint
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Set CORS headers
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// Handle preflight requests
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req APIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	configs, err := s.configurations(req)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Infof("API request received for %d configurations", len(configs))

	ctx, cancel := context.WithTimeout(r.Context(), s.batchTimeout)
	defer cancel()

	report, err := s.extractor.Extract(ctx, configs)
	if err != nil {
		var integrity *types.IntegrityError
		if errors.As(err, &integrity) {
			s.sendError(w, err.Error(), http.StatusConflict)
			return
		}
		s.logger.Errorf("Extraction failed: %v", err)
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	summary := export.Summarize(report)
	response := APIResponse{
		Success: true,
		Data:    report,
		Summary: &summary,
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// configurations resolves the request into the batch to price
func (s *Server) configurations(req APIRequest) ([]types.ProductConfiguration, error) {
	if len(req.Configurations) > 0 {
		for i := range req.Configurations {
			c := &req.Configurations[i]
			c.Supplier = strings.ToLower(strings.TrimSpace(c.Supplier))
			if c.Supplier == "" {
				c.Supplier = strings.ToLower(strings.TrimSpace(req.Supplier))
			}
			if c.Supplier == "" {
				return nil, fmt.Errorf("configuration %d has no supplier", i+1)
			}
		}
		return req.Configurations, nil
	}

	if req.Supplier == "" || req.ProductType == "" {
		return nil, errors.New("No configurations provided")
	}
	settings, ok := s.config.Supplier(req.Supplier)
	if !ok {
		return nil, fmt.Errorf("unknown supplier: %s", req.Supplier)
	}
	configs := config.Matrix(settings, types.ProductType(strings.ToLower(string(req.ProductType))), req.Limit)
	if len(configs) == 0 {
		return nil, fmt.Errorf("no configurations for product type %s", req.ProductType)
	}
	return configs, nil
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	response := APIResponse{
		Success: false,
		Error:   message,
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorf("Failed to encode error response: %v", err)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/extract", s.handleExtract)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start starts the API server
func (s *Server) Start(port string) error {
	s.logger.Infof("Starting API server on port %s", port)
	s.logger.Info("Available endpoints:")
	s.logger.Info("  POST /extract - Price product configurations")
	s.logger.Info("  GET  /health  - Health check")

	return http.ListenAndServe(":"+port, s.Handler())
}

func newLogger() *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	logger := newLogger()

	cfg, err := config.Load(os.Getenv("PRICING_CONFIG"))
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Get port from environment variable, default to 8080
	serverPort := "8080"
	if envPort := os.Getenv("API_PORT"); envPort != "" {
		serverPort = envPort
	}

	svc := extractor.NewBrowserService(cfg, export.NewFileSink(filepath.Join(cfg.OutputDir, "artifacts"), logger), logger)
	defer svc.Close()

	server := NewServer(cfg, svc, logger)
	log.Fatal(server.Start(serverPort))
}
