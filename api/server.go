// Package api exposes mirror runs over HTTP. Jobs run in the background;
// clients poll their status and can cancel a whole job or single transfers.
package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/lukemcguire/sitecapture/asset"
	"github.com/lukemcguire/sitecapture/mirror"
)

// Server owns the job table and the HTTP routes over it.
type Server struct {
	ctx     context.Context
	base    mirror.Config
	log     logrus.FieldLogger
	running *atomic.Int64

	mu   sync.RWMutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewServer creates a Server. Jobs inherit every field of base except the
// page URL, label and preview limits, and stop when ctx is done.
func NewServer(ctx context.Context, base mirror.Config) *Server {
	log := base.Logger
	if log == nil {
		log = logrus.StandardLogger()
		base.Logger = log
	}
	return &Server{
		ctx:     ctx,
		base:    base,
		log:     log,
		running: atomic.NewInt64(0),
		jobs:    make(map[string]*Job),
	}
}

// Router returns the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.POST("/mirrors", s.createMirror)
	r.GET("/mirrors", s.listMirrors)
	r.GET("/mirrors/:id", s.getMirror)
	r.DELETE("/mirrors/:id", s.cancelMirror)
	r.POST("/mirrors/:id/assets/cancel", s.cancelAsset)
	return r
}

// Wait blocks until every started job has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Millisecond),
		}).Debug("api request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": s.running.Load()})
}

func (s *Server) createMirror(c *gin.Context) {
	var req MirrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := &Job{
		ID:        uuid.NewString(),
		Request:   req,
		CreatedAt: time.Now(),
		recorder:  mirror.NewRecorder(),
		status:    StatusRunning,
	}
	job.updatedAt = job.CreatedAt

	cfg := s.base
	cfg.PageURL = req.URL
	cfg.Label = req.Label
	cfg.MaxPerCategory = req.PreviewLimit
	cfg.MaxStylesheetRefs = req.CSSRefLimit
	cfg.InsecureSkipVerify = cfg.InsecureSkipVerify || req.Insecure
	cfg.Logger = s.log.WithField("job", job.ID)
	cfg.AssetCanceled = job.assetCanceled

	m, err := mirror.New(cfg, job.recorder)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	job.cancel = cancel

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.wg.Add(1)
	s.running.Inc()
	go func() {
		defer s.wg.Done()
		defer s.running.Dec()
		defer cancel()

		res, runErr := m.Run(ctx)
		switch {
		case errors.Is(runErr, mirror.ErrCanceled):
			job.finish(StatusCancelled, nil, runErr)
		case runErr != nil:
			job.finish(StatusFailed, nil, runErr)
		default:
			job.finish(StatusCompleted, res, nil)
		}
		s.log.WithFields(logrus.Fields{"job": job.ID, "status": job.Status()}).Info("Mirror job finished")
	}()

	c.JSON(http.StatusAccepted, job.View())
}

func (s *Server) listMirrors(c *gin.Context) {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool { return jobs[a].CreatedAt.Before(jobs[b].CreatedAt) })

	views := make([]JobView, len(jobs))
	for i, j := range jobs {
		views[i] = j.View()
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) lookup(c *gin.Context) (*Job, bool) {
	s.mu.RLock()
	job, ok := s.jobs[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "mirror job not found"})
	}
	return job, ok
}

func (s *Server) getMirror(c *gin.Context) {
	if job, ok := s.lookup(c); ok {
		c.JSON(http.StatusOK, job.View())
	}
}

func (s *Server) cancelMirror(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	job.cancel()
	c.JSON(http.StatusAccepted, job.View())
}

func (s *Server) cancelAsset(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	var req AssetCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := asset.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job.cancelAsset(category, req.URL)
	c.JSON(http.StatusAccepted, gin.H{"id": job.ID, "category": category, "url": req.URL})
}
