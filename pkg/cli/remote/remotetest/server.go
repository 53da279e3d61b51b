/* Copyright 2025 Everjot Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package remotetest provides an in-memory implementation of the everjot
// server contract for tests. The server clock is authoritative for
// last_updated on every write, mirroring the production behavior.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/everjot/everjot/pkg/cli/remote"
	"github.com/gorilla/mux"
)

// Server is an in-memory everjot server
type Server struct {
	mu         sync.Mutex
	entries    map[string]remote.RespEntry
	notes      map[string]remote.RespNote
	now        int64
	failures   int
	writeCalls int

	httpServer *httptest.Server
}

// New starts an in-memory server
func New() *Server {
	s := &Server{
		entries: map[string]remote.RespEntry{},
		notes:   map[string]remote.RespNote{},
		now:     1000,
	}

	r := mux.NewRouter()
	r.Handle("/v1/entries", s.requireAuth(s.handleListEntries)).Methods("GET")
	r.Handle("/v1/entries", s.requireAuth(s.handleCreateEntry)).Methods("POST")
	r.Handle("/v1/entries/{uuid}", s.requireAuth(s.handleUpdateEntry)).Methods("PATCH")
	r.Handle("/v1/entries/{uuid}", s.requireAuth(s.handleDeleteEntry)).Methods("DELETE")
	r.Handle("/v1/notes", s.requireAuth(s.handleListNotes)).Methods("GET")
	r.Handle("/v1/notes", s.requireAuth(s.handleCreateNote)).Methods("POST")
	r.Handle("/v1/notes/{uuid}", s.requireAuth(s.handleUpdateNote)).Methods("PATCH")
	r.Handle("/v1/notes/{uuid}", s.requireAuth(s.handleDeleteNote)).Methods("DELETE")
	r.Handle("/v1/sync/manifest", s.requireAuth(s.handleManifest)).Methods("GET")

	s.httpServer = httptest.NewServer(r)

	return s
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.httpServer.Close()
}

// FailNext makes the next n write requests fail with a 500
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// WriteCalls returns the number of write requests received, including failed
// ones
func (s *Server) WriteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCalls
}

// Entry returns the stored entry for the uuid
func (s *Server) Entry(uuid string) (remote.RespEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[uuid]
	return e, ok
}

// PutEntry stores an entry directly, bypassing the HTTP surface
func (s *Server) PutEntry(e remote.RespEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.UUID] = e
	if e.LastUpdated > s.now {
		s.now = e.LastUpdated
	}
}

// Note returns the stored note for the uuid
func (s *Server) Note(uuid string) (remote.RespNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[uuid]
	return n, ok
}

// PutNote stores a note directly, bypassing the HTTP surface
func (s *Server) PutNote(n remote.RespNote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.UUID] = n
	if n.LastUpdated > s.now {
		s.now = n.LastUpdated
	}
}

// EntryCount returns the number of stored entries
func (s *Server) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	})
}

// failWrite consumes one injected failure, if configured. It also counts the
// write attempt.
func (s *Server) failWrite(w http.ResponseWriter) bool {
	s.writeCalls++
	if s.failures > 0 {
		s.failures--
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return true
	}

	return false
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func parseUpdatedAfter(r *http.Request) int64 {
	v := r.URL.Query().Get("updated_after")
	if v == "" {
		return 0
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}

	return n
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	after := parseUpdatedAfter(r)

	resp := remote.GetEntriesResp{CurrentTime: s.now, Entries: []remote.RespEntry{}}
	for _, e := range s.entries {
		if e.LastUpdated > after {
			resp.Entries = append(resp.Entries, e)
		}
	}

	respondJSON(w, resp)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	respondJSON(w, remote.SyncManifest{
		CurrentTime: s.now,
		EntryCount:  len(s.entries),
		NoteCount:   len(s.notes),
	})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite(w) {
		return
	}

	var payload remote.EntryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	if _, ok := s.entries[payload.UUID]; ok {
		http.Error(w, "duplicate entry", http.StatusConflict)
		return
	}

	s.now++
	e := remote.RespEntry{
		UUID:        payload.UUID,
		Title:       payload.Title,
		Body:        payload.Body,
		CreatedAt:   payload.CreatedAt,
		LastUpdated: s.now,
	}
	s.entries[e.UUID] = e

	respondJSON(w, remote.EntryResp{Entry: e})
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite(w) {
		return
	}

	uuid := mux.Vars(r)["uuid"]
	e, ok := s.entries[uuid]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var payload remote.EntryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	s.now++
	e.Title = payload.Title
	e.Body = payload.Body
	e.LastUpdated = s.now
	s.entries[uuid] = e

	respondJSON(w, remote.EntryResp{Entry: e})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite(w) {
		return
	}

	uuid := mux.Vars(r)["uuid"]
	e, ok := s.entries[uuid]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	s.now++
	e.Deleted = true
	e.LastUpdated = s.now
	s.entries[uuid] = e

	respondJSON(w, remote.EntryResp{Entry: e})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	after := parseUpdatedAfter(r)

	resp := remote.GetNotesResp{CurrentTime: s.now, Notes: []remote.RespNote{}}
	for _, n := range s.notes {
		if n.LastUpdated > after {
			resp.Notes = append(resp.Notes, n)
		}
	}

	respondJSON(w, resp)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite(w) {
		return
	}

	var payload remote.NotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	if _, ok := s.notes[payload.UUID]; ok {
		http.Error(w, "duplicate note", http.StatusConflict)
		return
	}

	s.now++
	n := remote.RespNote{
		UUID:        payload.UUID,
		Body:        payload.Body,
		RecordedAt:  payload.RecordedAt,
		LastUpdated: s.now,
	}
	s.notes[n.UUID] = n

	respondJSON(w, remote.NoteResp{Note: n})
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite(w) {
		return
	}

	uuid := mux.Vars(r)["uuid"]
	n, ok := s.notes[uuid]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var payload remote.NotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	s.now++
	n.Body = payload.Body
	n.LastUpdated = s.now
	s.notes[uuid] = n

	respondJSON(w, remote.NoteResp{Note: n})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite(w) {
		return
	}

	uuid := mux.Vars(r)["uuid"]
	n, ok := s.notes[uuid]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	s.now++
	n.Deleted = true
	n.LastUpdated = s.now
	s.notes[uuid] = n

	respondJSON(w, remote.NoteResp{Note: n})
}
