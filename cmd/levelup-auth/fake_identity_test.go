// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeIdentity is a minimal identity service. Routes answer with canned
// JSON; every request is recorded with its decoded body.
type fakeIdentity struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]fakeRoute
	requests []fakeRequest
}

type fakeRoute struct {
	status int
	body   string
}

type fakeRequest struct {
	route string
	body  map[string]string
}

func newFakeIdentity(t *testing.T) *fakeIdentity {
	t.Helper()
	f := &fakeIdentity{routes: map[string]fakeRoute{
		"GET /health":   {http.StatusOK, `{"name":"GoTrue","version":"2.158.1","description":"auth"}`},
		"POST /recover": {http.StatusOK, `{}`},
		"POST /token":   {http.StatusOK, `{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"user":{"email":"ada@example.com"}}`},
		"PUT /user":     {http.StatusOK, `{"email":"ada@example.com"}`},
		"POST /logout":  {http.StatusNoContent, ``},
		"POST /resend":  {http.StatusOK, `{}`},
		"POST /signup":  {http.StatusOK, `{}`},
	}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeIdentity) set(route string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = fakeRoute{status, body}
}

func (f *fakeIdentity) serve(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	body := map[string]string{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, fakeRequest{route: route, body: body})
	resp, ok := f.routes[route]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

// calls returns the recorded requests for route.
func (f *fakeIdentity) calls(route string) []fakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeRequest
	for _, req := range f.requests {
		if req.route == route {
			out = append(out, req)
		}
	}
	return out
}
