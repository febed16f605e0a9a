package desk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/domain"
)

// fakeDesk emulates the token endpoint and the desk API. Requests carrying a token other
// than validToken are rejected with 401.
type fakeDesk struct {
	t *testing.T

	mu         sync.Mutex
	validToken string
	nextToken  string
	contacts   map[string]string
	created    []createContactRequest
	tickets    []createTicketRequest

	apiCalls      atomic.Int32
	refreshCalls  atomic.Int32
	alwaysUnauth  bool
	refreshStatus int
	searchStatus  int
	ticketStatus  int

	server *httptest.Server
}

func newFakeDesk(t *testing.T) *fakeDesk {
	t.Helper()
	f := &fakeDesk{
		t:          t,
		validToken: "fresh",
		nextToken:  "fresh",
		contacts:   map[string]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", f.handleToken)
	mux.HandleFunc("/api/v1/contacts/search", f.authorized(f.handleSearch))
	mux.HandleFunc("/api/v1/contacts", f.authorized(f.handleCreateContact))
	mux.HandleFunc("/api/v1/tickets", f.authorized(f.handleCreateTicket))
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDesk) tokenURL() string { return f.server.URL + "/oauth/v2/token" }

func (f *fakeDesk) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)
		if r.Header.Get("orgId") != "org-1" {
			http.Error(w, "missing org", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		valid := f.validToken
		f.mu.Unlock()
		if f.alwaysUnauth || r.Header.Get("Authorization") != "Zoho-oauthtoken "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorCode":"INVALID_OAUTH"}`))
			return
		}
		next(w, r)
	}
}

func (f *fakeDesk) handleToken(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if f.refreshStatus != 0 {
		w.WriteHeader(f.refreshStatus)
		_, _ = w.Write([]byte(`{"error":"invalid_code"}`))
		return
	}
	f.mu.Lock()
	token := f.nextToken
	f.validToken = token
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{"access_token": token, "expires_in": 3600})
}

func (f *fakeDesk) handleSearch(w http.ResponseWriter, r *http.Request) {
	if f.searchStatus != 0 {
		w.WriteHeader(f.searchStatus)
		_, _ = w.Write([]byte(`{"message":"search broken"}`))
		return
	}
	email := r.URL.Query().Get("email")
	f.mu.Lock()
	id, ok := f.contacts[email]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{{"id": id, "email": email}}})
}

func (f *fakeDesk) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req createContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	id := "c-" + strings.TrimSuffix(req.Email, "@example.com")
	f.contacts[req.Email] = id
	f.created = append(f.created, req)
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (f *fakeDesk) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	if f.ticketStatus != 0 {
		w.WriteHeader(f.ticketStatus)
		_, _ = w.Write([]byte(`{"message":"nope"}`))
		return
	}
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.tickets = append(f.tickets, req)
	number := 100 + len(f.tickets)
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{"id": "t-1", "ticketNumber": itoa(number), "subject": req.Subject})
}

func (f *fakeDesk) createdContacts() []createContactRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createContactRequest(nil), f.created...)
}

func (f *fakeDesk) createdTickets() []createTicketRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createTicketRequest(nil), f.tickets...)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestStack(f *fakeDesk, cred domain.Credential) (*TokenStore, *RetryingClient) {
	store := NewTokenStore(cred, f.tokenURL(), TokenStoreDependencies{Logger: zap.NewNop()})
	client := NewRetryingClient(f.server.URL, "org-1", ClientDependencies{Credentials: store, Logger: zap.NewNop()})
	return store, client
}

func refreshableCredential(access string) domain.Credential {
	return domain.Credential{AccessToken: access, RefreshToken: "refresh", ClientID: "id", ClientSecret: "secret"}
}
