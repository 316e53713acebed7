// Package dnspodtest provides an in-process fake of the DNSPod API for tests.
package dnspodtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Call is one request received by the fake.
type Call struct {
	Op      string
	Form    url.Values
	Cookies map[string]string
}

type Server struct {
	*httptest.Server

	mu sync.Mutex
	// domains maps domain name to domain id.
	domains map[string]string
	// records holds record lists by domain id, in listing order.
	records map[string][]map[string]string
	// status forces every response to carry this status code when set.
	status string
	// loginCookies are issued on responses to requests carrying login_code.
	loginCookies map[string]string

	calls []Call
}

func NewServer() *Server {
	s := &Server{
		domains: map[string]string{},
		records: map[string][]map[string]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint returns the API base URL, with trailing slash.
func (s *Server) Endpoint() string {
	return s.Server.URL + "/"
}

func (s *Server) AddDomain(name, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[name] = id
}

func (s *Server) SetRecords(domainID string, records ...map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[domainID] = records
}

func (s *Server) SetStatus(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *Server) SetLoginCookies(cookies map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCookies = cookies
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Server) CallsTo(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func statusBody(code, message string) map[string]any {
	return map[string]any{"code": code, "message": message}
}

// numeric ids are sent as JSON numbers, as the real API does for some objects
func id(v string) any {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return v
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	call := Call{
		Op:      strings.TrimPrefix(r.URL.Path, "/"),
		Form:    r.PostForm,
		Cookies: map[string]string{},
	}
	for _, c := range r.Cookies() {
		call.Cookies[c.Name] = c.Value
	}
	s.calls = append(s.calls, call)

	if call.Form.Get("login_code") != "" {
		for name, value := range s.loginCookies {
			http.SetCookie(w, &http.Cookie{Name: name, Value: value})
		}
	}

	resp := s.respond(call)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) respond(call Call) map[string]any {
	if s.status != "" {
		return map[string]any{"status": statusBody(s.status, "forced failure")}
	}

	switch call.Op {
	case "Domain.Info":
		name := call.Form.Get("domain")
		domainID, ok := s.domains[name]
		if !ok {
			return map[string]any{"status": statusBody("6", "domain not found")}
		}
		return map[string]any{
			"status": statusBody("1", "Action completed successful"),
			"domain": map[string]any{"id": id(domainID), "name": name},
		}

	case "Record.List":
		domainID := call.Form.Get("domain_id")
		records := make([]map[string]any, 0, len(s.records[domainID]))
		for _, rec := range s.records[domainID] {
			out := map[string]any{}
			for k, v := range rec {
				out[k] = v
			}
			records = append(records, out)
		}
		return map[string]any{
			"status":  statusBody("1", "Action completed successful"),
			"domain":  map[string]any{"id": id(domainID)},
			"records": records,
		}

	case "Record.Ddns":
		domainID := call.Form.Get("domain_id")
		for _, rec := range s.records[domainID] {
			if rec["id"] == call.Form.Get("record_id") {
				rec["value"] = call.Form.Get("value")
				return map[string]any{
					"status": statusBody("1", "Action completed successful"),
					"record": map[string]any{"id": id(rec["id"]), "name": rec["name"], "value": rec["value"]},
				}
			}
		}
		return map[string]any{"status": statusBody("8", "record id invalid")}
	}

	return map[string]any{"status": statusBody("-1", "unknown operation")}
}
