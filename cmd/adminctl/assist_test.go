package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallAssist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/blog-ai-assist", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Admin privileges required."}`))
			return
		}
		var p assistPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "<h2>" + p.Title + "</h2>"})
	}))
	defer srv.Close()

	body, err := callAssist(context.Background(), srv.Client(), srv.URL+"/", "good", assistPayload{Type: "outline", Title: "Visas"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"<h2>Visas</h2>"}`, string(body))

	_, err = callAssist(context.Background(), srv.Client(), srv.URL, "bad", assistPayload{Type: "outline", Title: "Visas"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=403")
	assert.Contains(t, err.Error(), "Admin privileges required.")
}

func TestConsole(t *testing.T) {
	var out, errOut bytes.Buffer
	c := &console{out: &out, errOut: &errOut}

	c.Success("Welcome back!")
	c.Error("Access denied. Admin privileges required.")
	c.Navigate("/dashboard")

	assert.Contains(t, out.String(), "Welcome back!")
	assert.Contains(t, out.String(), "/dashboard")
	assert.Contains(t, errOut.String(), "Access denied.")
	assert.Equal(t, "/dashboard", c.route)
}

func TestCheckLoginFlags(t *testing.T) {
	require.NoError(t, checkLoginFlags(false, false))
	require.NoError(t, checkLoginFlags(true, false))
	require.NoError(t, checkLoginFlags(true, true))
	require.Error(t, checkLoginFlags(false, true))
}
