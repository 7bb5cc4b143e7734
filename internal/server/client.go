/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gotranslator/internal/editor"
	"gotranslator/internal/storage"
)

// Client is a minimal HTTP client for the session API, used by scripts and tests.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server: %d %s", e.Status, e.Message)
}

// NewClient creates a client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func paragraphPath(id string, index int, action string) string {
	return "/api/sessions/" + url.PathEscape(id) + "/paragraphs/" + strconv.Itoa(index) + "/" + action
}

// Open opens the source file at path.
func (c *Client) Open(ctx context.Context, path string) (editor.View, error) {
	var v editor.View
	err := c.doJSON(ctx, http.MethodPost, "/api/sessions", openRequest{Path: path}, &v)
	return v, err
}

// Sessions lists open sessions.
func (c *Client) Sessions(ctx context.Context) ([]SessionSummary, error) {
	var list []SessionSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// View fetches the current view of a session.
func (c *Client) View(ctx context.Context, id string) (editor.View, error) {
	var v editor.View
	err := c.doJSON(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &v)
	return v, err
}

// UpdateTranslation sets the translation of one paragraph.
func (c *Client) UpdateTranslation(ctx context.Context, id string, index int, text string) error {
	return c.doJSON(ctx, http.MethodPut, paragraphPath(id, index, "translation"), textRequest{Text: text}, nil)
}

// Commit commits the editing buffer of one paragraph.
func (c *Client) Commit(ctx context.Context, id string, index int) (CommitResponse, error) {
	var r CommitResponse
	err := c.doJSON(ctx, http.MethodPost, paragraphPath(id, index, "commit"), nil, &r)
	return r, err
}

// Save persists the session's translation.
func (c *Client) Save(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/save", nil, nil)
}

// Snapshots lists saved translations of the session's chapter, newest first.
func (c *Client) Snapshots(ctx context.Context, id string, limit int) ([]storage.Snapshot, error) {
	path := "/api/sessions/" + url.PathEscape(id) + "/snapshots"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var list []storage.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// RecoverAutosave loads the session's pending autosave into its document.
func (c *Client) RecoverAutosave(ctx context.Context, id string) (bool, error) {
	var r struct {
		Recovered bool `json:"recovered"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/autosave/recover", nil, &r)
	return r.Recovered, err
}

// AuthorNote selects index, highlights words and writes note.
func (c *Client) AuthorNote(ctx context.Context, id string, index int, words []string, note string) (NoteResponse, error) {
	base := "/api/sessions/" + url.PathEscape(id)
	var r NoteResponse
	if err := c.doJSON(ctx, http.MethodPost, base+"/selection", selectRequest{Index: index}, nil); err != nil {
		return r, err
	}
	for _, w := range words {
		if err := c.doJSON(ctx, http.MethodPost, base+"/highlights", highlightRequest{Word: w}, nil); err != nil {
			return r, err
		}
	}
	err := c.doJSON(ctx, http.MethodPost, base+"/notes", noteRequest{Note: note}, &r)
	return r, err
}

// Search runs a full-text query.
func (c *Client) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Chapter != "" {
		v.Set("chapter", q.Chapter)
	}
	if len(q.Kinds) > 0 {
		v.Set("kind", strings.Join(q.Kinds, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/api/search"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var res []storage.SearchResult
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}
