package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"jammertime/internal/repository"
	"jammertime/internal/service"
)

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandlers_SignUp(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		auth     *mockAuth
		wantCode int
		wantID   int
	}{
		{"created", `{"username":"shiftlead","password":"pw"}`, &mockAuth{signUpID: 42}, http.StatusOK, 42},
		{"missing password", `{"username":"shiftlead"}`, &mockAuth{}, http.StatusBadRequest, 0},
		{"wrong type", `{"username":1,"password":"pw"}`, &mockAuth{}, http.StatusBadRequest, 0},
		{
			"duplicate username",
			`{"username":"shiftlead","password":"pw"}`,
			&mockAuth{signUpErr: fmt.Errorf("insert user %q: %w", "shiftlead", repository.ErrUsernameTaken)},
			http.StatusConflict, 0,
		},
		{"rejected by service", `{"username":" ","password":"pw"}`, &mockAuth{signUpErr: errors.New("username is empty")}, http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: tc.auth})
			w := postJSON(r, "/auth/sign-up", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantID == 0 {
				return
			}
			var out struct {
				ID int `json:"id"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.ID != tc.wantID {
				t.Fatalf("id=%d want %d", out.ID, tc.wantID)
			}
			if tc.auth.lastSignUpUsername != "shiftlead" || tc.auth.lastSignUpPassword != "pw" {
				t.Fatalf("service got %q/%q", tc.auth.lastSignUpUsername, tc.auth.lastSignUpPassword)
			}
		})
	}
}

func TestAuthHandlers_SignIn(t *testing.T) {
	auth := &mockAuth{genTokenToken: "tok123"}
	r := newTestRouter(&service.Service{Authorization: auth})

	w := postJSON(r, "/auth/sign-in", `{"username":"u","password":"p"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("sign-in status=%d, body=%s", w.Code, w.Body.String())
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["token"] != "tok123" {
		t.Fatalf("expected token tok123, got %v", m["token"])
	}
	if auth.lastGenUsername != "u" || auth.lastGenPassword != "p" {
		t.Fatalf("service got %q/%q", auth.lastGenUsername, auth.lastGenPassword)
	}

	// wrong credentials do not leak which part was wrong
	auth.genTokenErr = service.ErrInvalidPassword
	w = postJSON(r, "/auth/sign-in", `{"username":"u","password":"nope"}`)
	if w.Code != http.StatusUnauthorized || errorOf(t, w) != "invalid credentials" {
		t.Fatalf("bad password: %d %s", w.Code, w.Body.String())
	}

	w = postJSON(r, "/auth/sign-in", `{"username":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}
}
