/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes editor sessions over a local HTTP JSON API so a display
// surface (browser, desktop shell) can drive the translation workflow.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gotranslator/internal/align"
	"gotranslator/internal/editor"
	applog "gotranslator/internal/log"
	"gotranslator/internal/storage"
	"gotranslator/internal/telemetry"
	"gotranslator/internal/version"
)

// Searcher answers full-text queries; *storage.Index implements it.
type Searcher interface {
	Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error)
}

// History lists saved translation snapshots of a chapter; *storage.Index implements it.
type History interface {
	ChapterName(sourcePath string) string
	ListSnapshots(ctx context.Context, chapter string, limit int) ([]storage.Snapshot, error)
}

// Options configures a Server.
type Options struct {
	Addr    string
	Token   string        // bearer token required on /api when set
	Timeout time.Duration // read and write timeout, default 15s
	// Root confines the documents sessions may open. Relative paths resolve
	// against it. Empty allows any path.
	Root      string
	Search    Searcher // optional
	History   History  // optional
	Telemetry *telemetry.Client
}

// Server is the HTTP bridge over an editor.Service.
type Server struct {
	svc    *editor.Service
	opts   Options
	engine *gin.Engine
	log    *slog.Logger
}

// New builds the routes. Nothing listens until Run.
func New(svc *editor.Service, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{svc: svc, opts: opts, engine: gin.New(), log: applog.WithComponent("server")}
	s.engine.Use(gin.Recovery(), s.accessLog(), s.checkHost())
	s.routes()
	if opts.Root == "" {
		s.log.Warn("sessions may open any file; no workspace root set")
	}
	return s
}

// Handler returns the HTTP handler, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.opts.Timeout,
		WriteTimeout:      s.opts.Timeout,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", s.opts.Addr), slog.Bool("auth", s.opts.Token != ""))
	s.opts.Telemetry.Event(telemetry.EventServerStarted, map[string]any{"auth": s.opts.Token != ""})

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("stopped")
	return nil
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/version", func(c *gin.Context) { c.String(http.StatusOK, version.String()) })

	api := r.Group("/api", s.withAuth(), requireJSON())
	api.GET("/sessions", s.listSessions)
	api.POST("/sessions", s.openSession)
	api.GET("/sessions/:id", s.getSession)
	api.DELETE("/sessions/:id", s.closeSession)
	api.GET("/sessions/:id/translations", s.getTranslations)
	api.POST("/sessions/:id/save", s.save)
	api.POST("/sessions/:id/theme", s.toggleTheme)
	api.GET("/sessions/:id/snapshots", s.snapshots)
	api.POST("/sessions/:id/autosave/recover", s.recoverAutosave)
	api.DELETE("/sessions/:id/autosave", s.discardAutosave)

	p := api.Group("/sessions/:id/paragraphs/:index")
	p.PUT("/translation", s.updateTranslation)
	p.POST("/edit", s.beginEdit)
	p.PUT("/buffer", s.setBuffer)
	p.POST("/commit", s.commitEdit)
	p.POST("/undo", s.undo)
	p.POST("/redo", s.redo)

	api.POST("/sessions/:id/selection", s.selectParagraph)
	api.POST("/sessions/:id/highlights", s.addHighlight)
	api.POST("/sessions/:id/note-prompt", s.openNotePrompt)
	api.DELETE("/sessions/:id/note-prompt", s.closeNotePrompt)
	api.POST("/sessions/:id/notes", s.authorNote)

	api.GET("/search", s.search)
}

// withAuth enforces the bearer token when one is configured.
func (s *Server) withAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := strings.TrimSpace(auth[len(prefix):])
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.Token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// checkHost rejects requests addressed to a host name other than loopback or the
// configured listen host, so a rebound DNS name cannot reach the API.
func (s *Server) checkHost() gin.HandlerFunc {
	allowed := map[string]bool{"localhost": true, "127.0.0.1": true, "::1": true}
	open := false
	if host, _, err := net.SplitHostPort(s.opts.Addr); err == nil {
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			open = true
		} else {
			allowed[strings.ToLower(host)] = true
		}
	}
	return func(c *gin.Context) {
		if open {
			c.Next()
			return
		}
		host := c.Request.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.ToLower(strings.Trim(host, "[]"))
		if !allowed[host] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unexpected host " + strconv.Quote(c.Request.Host)})
			return
		}
		c.Next()
	}
}

// requireJSON rejects request bodies that are not declared as JSON. Browsers send
// form and text/plain bodies cross-origin without a preflight.
func requireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mt != "application/json" {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "request body must be application/json"})
			return
		}
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)))
	}
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, editor.ErrUnknownSession):
		status = http.StatusNotFound
	case errors.Is(err, align.ErrIndexOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, align.ErrMalformedInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, editor.ErrNoSelection), errors.Is(err, align.ErrNotEditing):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrIOFailure):
		status = http.StatusInternalServerError
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, errOutsideRoot):
		status = http.StatusForbidden
	}
	if status >= 500 {
		s.log.Error("request failed", slog.String("path", c.FullPath()), slog.Any("err", err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
