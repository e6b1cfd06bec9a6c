// Package server exposes the pipeline over HTTP. Runs are started with a
// POST and observed live over a websocket that streams stage progress.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vidgen-pipeline/assemble"
	"vidgen-pipeline/bgaudio"
	"vidgen-pipeline/config"
	"vidgen-pipeline/files"
	"vidgen-pipeline/imagery"
	"vidgen-pipeline/pipeline"
	"vidgen-pipeline/script"
	"vidgen-pipeline/segment"
	"vidgen-pipeline/speech"
	"vidgen-pipeline/types"
	"vidgen-pipeline/upload"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressEvent is one progress update pushed to websocket subscribers.
type ProgressEvent struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
	Done    bool   `json:"done"`
}

type run struct {
	mu     sync.Mutex
	id     string
	state  *types.PipelineState
	events []ProgressEvent
	subs   map[chan ProgressEvent]struct{}
	done   bool
}

func (r *run) publish(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if ev.Done {
		r.done = true
	}
	for ch := range r.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, skip
		}
	}
}

// subscribe returns a replay of past events plus a channel for new ones.
func (r *run) subscribe() ([]ProgressEvent, chan ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replay := make([]ProgressEvent, len(r.events))
	copy(replay, r.events)
	if r.done {
		return replay, nil
	}
	ch := make(chan ProgressEvent, 16)
	r.subs[ch] = struct{}{}
	return replay, ch
}

func (r *run) unsubscribe(ch chan ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, ch)
}

// Server wires the pipeline behind a gin router.
type Server struct {
	cfg    *config.Config
	engine *gin.Engine

	mu   sync.Mutex
	runs map[string]*run
}

func New(cfg *config.Config) *Server {
	s := &Server{
		cfg:  cfg,
		runs: make(map[string]*run),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/api/health", s.handleHealth)
	engine.POST("/api/generate", s.handleGenerate)
	engine.GET("/api/runs/:run_id", s.handleRunStatus)
	engine.GET("/ws/progress/:run_id", s.handleProgress)

	s.engine = engine
	return s
}

func (s *Server) Run() error {
	log.Printf("[server] Listening on %s", s.cfg.Server.Addr)
	return s.engine.Run(s.cfg.Server.Addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

type generateRequest struct {
	Script          string `json:"script" binding:"required"`
	SegmentDuration int    `json:"segment_duration"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "GEMINI_API_KEY not configured"})
		return
	}

	runID := uuid.New().String()
	r := &run{
		id:   runID,
		subs: make(map[chan ProgressEvent]struct{}),
	}
	s.mu.Lock()
	s.runs[runID] = r
	s.mu.Unlock()

	go s.execute(r, req, apiKey)

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *Server) execute(r *run, req generateRequest, apiKey string) {
	ws, err := files.NewWorkspace(filepath.Join(s.cfg.Paths.Output, r.id))
	if err != nil {
		r.mu.Lock()
		r.state = &types.PipelineState{
			RunID: r.id,
			Stage: types.StageFailed,
			Error: err.Error(),
		}
		r.mu.Unlock()
		r.publish(ProgressEvent{RunID: r.id, Stage: string(types.StageFailed), Message: err.Error(), Done: true})
		return
	}
	defer ws.Cleanup()

	orch := pipeline.New(s.cfg, ws, pipeline.Deps{
		Expander:   script.NewExpander(s.cfg.Expansion),
		Builder:    segment.NewBuilder(s.cfg.Video, s.cfg.Imagery, ws, speech.New(s.cfg.Speech, ws), imagery.New(s.cfg.Imagery, s.cfg.Video, ws)),
		Background: bgaudio.New(ws),
		Assembler:  assemble.New(s.cfg.Assembly, ws),
		Publisher:  optionalPublisher(s.cfg),
	})
	orch.OnProgress(func(stage types.Stage, message string, percent int) {
		r.publish(ProgressEvent{RunID: r.id, Stage: string(stage), Message: message, Percent: percent})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	state := orch.Run(ctx, pipeline.Request{
		Script:          req.Script,
		APIKey:          apiKey,
		SegmentDuration: req.SegmentDuration,
	})

	r.mu.Lock()
	r.state = state
	r.mu.Unlock()

	final := ProgressEvent{RunID: r.id, Stage: string(state.Stage), Percent: 100, Done: true}
	if state.Stage == types.StageFailed {
		final.Message = state.Error
	} else {
		final.Message = state.FinalVideo
	}
	r.publish(final)
}

func optionalPublisher(cfg *config.Config) pipeline.Publisher {
	p := upload.New(cfg.Upload)
	if !p.Enabled() {
		return nil
	}
	return p
}

func (s *Server) handleRunStatus(c *gin.Context) {
	s.mu.Lock()
	r, ok := s.runs[c.Param("run_id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		c.JSON(http.StatusOK, gin.H{"run_id": r.id, "status": "running"})
		return
	}
	c.JSON(http.StatusOK, r.state)
}

func (s *Server) handleProgress(c *gin.Context) {
	s.mu.Lock()
	r, ok := s.runs[c.Param("run_id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[server] ⚠️ Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	replay, ch := r.subscribe()
	for _, ev := range replay {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
	if ch == nil {
		return
	}
	defer r.unsubscribe(ch)

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Done {
				return
			}
		case <-time.After(30 * time.Second):
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
