// Package desktest provides an in-process fake of the ticket-system API for cross-package tests.
package desktest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// AccessToken is the only token the fake accepts.
const AccessToken = "desk-token"

// CreatedTicket is a ticket create call captured by the fake.
type CreatedTicket struct {
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	DepartmentID string `json:"departmentId"`
	ContactID    string `json:"contactId"`
	Channel      string `json:"channel"`
	Status       string `json:"status"`
}

// Server fakes contact search, contact create and ticket create.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	contacts    map[string]string
	tickets     []CreatedTicket
	nextNumber  int
	failTickets bool
}

// NewServer starts a fake closed on test cleanup. Ticket numbers start at 101.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{contacts: map[string]string{}, nextNumber: 101}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/contacts/search", s.authorized(s.handleSearch))
	mux.HandleFunc("/api/v1/contacts", s.authorized(s.handleCreateContact))
	mux.HandleFunc("/api/v1/tickets", s.authorized(s.handleCreateTicket))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// FailTickets makes ticket creation answer 500.
func (s *Server) FailTickets(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTickets = fail
}

// Tickets returns the captured ticket creations.
func (s *Server) Tickets() []CreatedTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CreatedTicket(nil), s.tickets...)
}

// Contacts returns a copy of the directory keyed by email.
func (s *Server) Contacts() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.contacts))
	for k, v := range s.contacts {
		out[k] = v
	}
	return out
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Zoho-oauthtoken "+AccessToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"errorCode": "INVALID_OAUTH"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	id, ok := s.contacts[r.URL.Query().Get("email")]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]string{{"id": id}}})
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	id := "c-" + strings.TrimSuffix(body.Email, "@example.com")
	s.mu.Lock()
	s.contacts[body.Email] = id
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "email": body.Email})
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var body CreatedTicket
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	s.mu.Lock()
	if s.failTickets {
		s.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "ticket store unavailable"})
		return
	}
	number := strconv.Itoa(s.nextNumber)
	s.nextNumber++
	s.tickets = append(s.tickets, body)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": "t-" + number, "ticketNumber": number})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
