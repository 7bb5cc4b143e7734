/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gotranslator/internal/editor"
	"gotranslator/internal/storage"
	"gotranslator/internal/telemetry"
)

var (
	errBadRequest  = errors.New("bad request")
	errOutsideRoot = errors.New("path outside the workspace")
)

type openRequest struct {
	Path string `json:"path" binding:"required"`
}

type textRequest struct {
	Text string `json:"text"`
}

type selectRequest struct {
	Index int `json:"index"`
}

type highlightRequest struct {
	Word string `json:"word"`
}

type noteRequest struct {
	Note string `json:"note"`
}

// SessionSummary is one entry of GET /api/sessions.
type SessionSummary struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Dirty bool   `json:"dirty"`
}

// CommitResponse tells the display surface where to move focus after a commit.
type CommitResponse struct {
	Next    int  `json:"next"`
	HasNext bool `json:"hasNext"`
}

// NoteResponse reports an authored note.
type NoteResponse struct {
	Applied      bool        `json:"applied"`
	NoteLogEntry string      `json:"noteLogEntry,omitempty"`
	View         editor.View `json:"view"`
}

func (s *Server) session(c *gin.Context) (*editor.Session, bool) {
	sess, err := s.svc.Session(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) paragraph(c *gin.Context) (*editor.Session, int, bool) {
	sess, ok := s.session(c)
	if !ok {
		return nil, 0, false
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.writeError(c, fmt.Errorf("%w: paragraph index %q", errBadRequest, c.Param("index")))
		return nil, 0, false
	}
	return sess, idx, true
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func (s *Server) listSessions(c *gin.Context) {
	out := []SessionSummary{}
	for _, sess := range s.svc.Sessions() {
		out = append(out, SessionSummary{ID: sess.ID, Path: sess.Path, Dirty: sess.Dirty()})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) openSession(c *gin.Context) {
	var req openRequest
	if !s.bind(c, &req) {
		return
	}
	path, err := s.confine(req.Path)
	if err != nil {
		s.writeError(c, err)
		return
	}
	sess, err := s.svc.Open(c.Request.Context(), path)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess.View())
}

// confine resolves path against Options.Root and rejects anything outside it,
// including symlinks that lead out.
func (s *Server) confine(path string) (string, error) {
	if s.opts.Root == "" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.opts.Root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(resolveLinks(s.opts.Root), resolveLinks(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", errOutsideRoot, path)
	}
	return path, nil
}

func resolveLinks(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return filepath.Clean(p)
}

func (s *Server) getSession(c *gin.Context) {
	if sess, ok := s.session(c); ok {
		c.JSON(http.StatusOK, sess.View())
	}
}

func (s *Server) closeSession(c *gin.Context) {
	if _, ok := s.session(c); ok {
		s.svc.Close(c.Param("id"))
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) getTranslations(c *gin.Context) {
	if sess, ok := s.session(c); ok {
		c.JSON(http.StatusOK, gin.H{"translations": sess.Translations()})
	}
}

func (s *Server) updateTranslation(c *gin.Context) {
	sess, idx, ok := s.paragraph(c)
	var req textRequest
	if !ok || !s.bind(c, &req) {
		return
	}
	if err := s.svc.UpdateTranslation(sess, idx, req.Text); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) beginEdit(c *gin.Context) {
	sess, idx, ok := s.paragraph(c)
	if !ok {
		return
	}
	if err := s.svc.BeginEdit(sess, idx); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) setBuffer(c *gin.Context) {
	sess, idx, ok := s.paragraph(c)
	var req textRequest
	if !ok || !s.bind(c, &req) {
		return
	}
	if err := s.svc.SetBuffer(sess, idx, req.Text); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) commitEdit(c *gin.Context) {
	sess, idx, ok := s.paragraph(c)
	if !ok {
		return
	}
	next, has, err := s.svc.CommitEdit(sess, idx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CommitResponse{Next: next, HasNext: has})
}

func (s *Server) undo(c *gin.Context) { s.history(c, s.svc.Undo) }

func (s *Server) redo(c *gin.Context) { s.history(c, s.svc.Redo) }

func (s *Server) history(c *gin.Context, step func(*editor.Session, int) (bool, error)) {
	sess, idx, ok := s.paragraph(c)
	if !ok {
		return
	}
	changed, err := step(sess, idx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "view": sess.View()})
}

func (s *Server) save(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := s.svc.Save(c.Request.Context(), sess); err != nil {
		s.writeError(c, err)
		return
	}
	s.opts.Telemetry.Count(telemetry.EventSessionSaved)
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) snapshots(c *gin.Context) {
	if s.opts.History == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "snapshot history not available"})
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.writeError(c, err)
		return
	}
	list, err := s.opts.History.ListSnapshots(c.Request.Context(), s.opts.History.ChapterName(sess.Path), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if list == nil {
		list = []storage.Snapshot{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) recoverAutosave(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	recovered, err := s.svc.RecoverAutosave(c.Request.Context(), sess)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recovered": recovered, "view": sess.View()})
}

func (s *Server) discardAutosave(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := s.svc.DiscardAutosave(c.Request.Context(), sess); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) toggleTheme(c *gin.Context) {
	if sess, ok := s.session(c); ok {
		c.JSON(http.StatusOK, gin.H{"theme": s.svc.ToggleTheme(sess)})
	}
}

func (s *Server) selectParagraph(c *gin.Context) {
	sess, ok := s.session(c)
	var req selectRequest
	if !ok || !s.bind(c, &req) {
		return
	}
	if err := s.svc.SelectParagraph(sess, req.Index); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) addHighlight(c *gin.Context) {
	sess, ok := s.session(c)
	var req highlightRequest
	if !ok || !s.bind(c, &req) {
		return
	}
	if err := s.svc.AddHighlight(sess, req.Word); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) openNotePrompt(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := s.svc.OpenNotePrompt(sess); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) closeNotePrompt(c *gin.Context) {
	if sess, ok := s.session(c); ok {
		s.svc.CloseNotePrompt(sess)
		c.JSON(http.StatusOK, sess.View())
	}
}

func (s *Server) authorNote(c *gin.Context) {
	sess, ok := s.session(c)
	var req noteRequest
	if !ok || !s.bind(c, &req) {
		return
	}
	res, err := s.svc.AuthorNote(c.Request.Context(), sess, req.Note)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if res.Applied {
		s.opts.Telemetry.Count(telemetry.EventNoteAuthored)
	}
	c.JSON(http.StatusOK, NoteResponse{Applied: res.Applied, NoteLogEntry: res.NoteLogEntry, View: sess.View()})
}

func (s *Server) search(c *gin.Context) {
	if s.opts.Search == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "search index not available"})
		return
	}
	q := storage.SearchQuery{
		Text:    c.Query("q"),
		Chapter: c.Query("chapter"),
	}
	if k := strings.TrimSpace(c.Query("kind")); k != "" {
		q.Kinds = strings.Split(k, ",")
	}
	var err error
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		s.writeError(c, err)
		return
	}
	if q.Offset, err = queryInt(c, "offset"); err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.opts.Search.Search(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if res == nil {
		res = []storage.SearchResult{}
	}
	c.JSON(http.StatusOK, res)
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", errBadRequest, key, v)
	}
	return n, nil
}
