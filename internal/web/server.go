package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"image-compressor-go/internal/compressor"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/metadata"
	"image-compressor-go/internal/statistics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	comp       compressor.Compressor
	inspector  *metadata.Inspector
	stats      *statistics.Statistics
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// Current batch state
	operationMutex sync.RWMutex
	isRunning      bool
	currentJob     string
	cancelBatch    context.CancelFunc
	lastBatch      *BatchSummary
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CompressRequest struct {
	Input           string              `json:"input"`
	OutputDirectory string              `json:"output_directory,omitempty"`
	Preset          string              `json:"preset,omitempty"`
	Options         *compressor.Options `json:"options,omitempty"`
}

type BatchRequest struct {
	Inputs          []string            `json:"inputs"`
	OutputDirectory string              `json:"output_directory,omitempty"`
	Preset          string              `json:"preset,omitempty"`
	Options         *compressor.Options `json:"options,omitempty"`
}

// BatchSummary is the outcome of a finished batch job.
type BatchSummary struct {
	JobID   string              `json:"job_id"`
	Results []compressor.Result `json:"results"`
	Errors  []string            `json:"errors"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer wires the HTTP API around comp. stats should be the same
// instance the compressor records into.
func NewServer(cfg *config.Config, log *logrus.Logger, comp compressor.Compressor, inspector *metadata.Inspector, stats *statistics.Statistics) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		comp:      comp,
		inspector: inspector,
		stats:     stats,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/formats", s.handleFormats).Methods("GET")
	api.HandleFunc("/presets", s.handlePresets).Methods("GET")
	api.HandleFunc("/file-stats", s.handleFileStats).Methods("GET")
	api.HandleFunc("/info", s.handleInfo).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/batch", s.handleBatch).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)

	if s.cfg.Web.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.cfg.Web.StaticDir)))
	}
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop cancels a running batch and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.operationMutex.Lock()
	if s.cancelBatch != nil {
		s.cancelBatch()
	}
	s.operationMutex.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	data := map[string]interface{}{
		"running":    s.isRunning,
		"job_id":     s.currentJob,
		"last_batch": s.lastBatch,
	}
	s.operationMutex.RUnlock()

	if s.stats != nil {
		data["statistics"] = s.stats.Snapshot()
	}
	if s.inspector != nil {
		data["inspector_cache"] = s.inspector.GetCacheStats()
	}

	s.writeJSON(w, APIResponse{Success: true, Data: data})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	formats := compressor.SupportedFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	s.writeJSON(w, APIResponse{Success: true, Data: names})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	presets := make([]map[string]interface{}, 0, len(s.cfg.Presets))
	for _, name := range s.cfg.PresetNames() {
		p := s.cfg.Presets[name]
		presets = append(presets, map[string]interface{}{
			"name":        name,
			"quality":     p.Quality,
			"max_width":   p.MaxWidth,
			"max_height":  p.MaxHeight,
			"format":      p.Format,
			"description": p.Description,
		})
	}
	s.writeJSON(w, APIResponse{Success: true, Data: presets})
}

func (s *Server) handleFileStats(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, "path is required", http.StatusBadRequest)
		return
	}

	size, err := compressor.FileSize(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, "File does not exist", http.StatusNotFound)
			return
		}
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"path": path,
			"size": size,
		},
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, "path is required", http.StatusBadRequest)
		return
	}

	info, err := s.inspector.Inspect(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, "File does not exist", http.StatusNotFound)
			return
		}
		s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.writeJSON(w, APIResponse{Success: true, Data: info})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Input == "" {
		s.writeError(w, "Input is required", http.StatusBadRequest)
		return
	}

	opts, err := s.options(req.Preset, req.Options)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.comp.Compress(r.Context(), req.Input, s.outputDir(req.OutputDirectory), opts)
	if err != nil {
		s.writeError(w, err.Error(), statusFor(err))
		return
	}

	s.writeJSON(w, APIResponse{Success: true, Data: res})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		s.writeError(w, "At least one input is required", http.StatusBadRequest)
		return
	}

	opts, err := s.options(req.Preset, req.Options)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		s.writeError(w, "Batch already in progress", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	jobID := uuid.NewString()
	s.isRunning = true
	s.currentJob = jobID
	s.cancelBatch = cancel
	s.operationMutex.Unlock()

	go s.runBatchAsync(ctx, jobID, req.Inputs, s.outputDir(req.OutputDirectory), opts)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Batch started",
		Data:    map[string]string{"job_id": jobID},
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.Lock()
	running := s.isRunning
	if s.cancelBatch != nil {
		s.cancelBatch()
	}
	s.operationMutex.Unlock()

	if !running {
		s.writeJSON(w, APIResponse{Success: true, Message: "No batch running"})
		return
	}

	s.broadcastWSMessage("operation_stopped", map[string]interface{}{
		"message": "Batch stopped by user",
	})
	s.writeJSON(w, APIResponse{Success: true, Message: "Batch stopping"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runBatchAsync(ctx context.Context, jobID string, inputs []string, outputDir string, opts compressor.Options) {
	defer func() {
		s.operationMutex.Lock()
		if s.cancelBatch != nil {
			s.cancelBatch()
		}
		s.isRunning = false
		s.currentJob = ""
		s.cancelBatch = nil
		s.operationMutex.Unlock()
	}()

	s.broadcastWSMessage("batch_started", map[string]interface{}{
		"job_id":           jobID,
		"inputs":           len(inputs),
		"output_directory": outputDir,
	})

	batch := s.comp.BatchCompress(ctx, inputs, outputDir, opts, func(input string, progress int) {
		s.broadcastWSMessage("compress_progress", map[string]interface{}{
			"job_id":   jobID,
			"path":     input,
			"progress": progress,
		})
	})

	summary := &BatchSummary{
		JobID:   jobID,
		Results: batch.Results,
		Errors:  batch.Messages(),
	}
	if summary.Results == nil {
		summary.Results = []compressor.Result{}
	}

	s.operationMutex.Lock()
	s.lastBatch = summary
	s.operationMutex.Unlock()

	s.broadcastWSMessage("batch_completed", summary)
}

// options starts from the configured defaults, or the named preset, and
// overlays the fields the client set. Zero values count as unset.
func (s *Server) options(preset string, req *compressor.Options) (compressor.Options, error) {
	opts := s.cfg.CompressionOptions()
	if preset != "" {
		var err error
		if opts, err = s.cfg.PresetOptions(preset); err != nil {
			return opts, err
		}
	}
	if req == nil {
		return opts, nil
	}

	if req.Quality < 0 || req.Quality > 100 {
		return opts, fmt.Errorf("quality must be between 1 and 100, got %d", req.Quality)
	}
	if req.MaxWidth < 0 || req.MaxHeight < 0 {
		return opts, fmt.Errorf("max_width and max_height must not be negative")
	}
	if req.Format != "" {
		if _, ok := compressor.ParseFormat(req.Format); !ok {
			return opts, fmt.Errorf("unsupported format: %s", req.Format)
		}
	}

	if req.Quality != 0 {
		opts.Quality = req.Quality
	}
	if req.MaxWidth != 0 {
		opts.MaxWidth = req.MaxWidth
	}
	if req.MaxHeight != 0 {
		opts.MaxHeight = req.MaxHeight
	}
	if req.MaintainAspectRatio != nil {
		opts = opts.WithAspect(*req.MaintainAspectRatio)
	}
	if req.Lossless {
		opts.Lossless = true
	}
	if req.Format != "" {
		opts.Format = req.Format
	}
	return opts, nil
}

func (s *Server) outputDir(requested string) string {
	if requested != "" {
		return requested
	}
	return s.cfg.OutputDirectory
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, compressor.ErrInputNotFound):
		return http.StatusNotFound
	case errors.Is(err, compressor.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, compressor.ErrOutputDirInvalid):
		return http.StatusBadRequest
	case errors.Is(err, compressor.ErrTranscodeFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// gorilla connections allow one concurrent writer.
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
