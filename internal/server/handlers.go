package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"supplydash/internal/broker"
	"supplydash/internal/proxy"
	"supplydash/internal/sales"
	"supplydash/pkg/logging"
)

const (
	maxRequestBody = 64 << 10

	// healthTimeout bounds the database ping behind /health.
	healthTimeout = 2 * time.Second

	noGuestSessionMessage = "No guest session available. Owner must log in once first."
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// tokenRequest is the code exchange body sent by the browser.
type tokenRequest struct {
	Code         string `json:"code"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Host         string `json:"host"`
	RedirectURI  string `json:"redirectUri"`
}

// TokenResponse is returned by the token and guest endpoints.
type TokenResponse struct {
	AccessToken      string `json:"accessToken"`
	TokenType        string `json:"tokenType,omitempty"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	RefreshToken     string `json:"refreshToken,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

func newTokenResponse(r *broker.TokenResult) TokenResponse {
	return TokenResponse{
		AccessToken:      r.AccessToken,
		TokenType:        r.TokenType,
		ExpiresInSeconds: r.ExpiresInSeconds,
		RefreshToken:     r.RefreshToken,
		Scope:            r.Scope,
	}
}

// decodeBody decodes an optional JSON body into v. An empty body is fine.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body", Details: err.Error()})
		return
	}

	creds := broker.Credentials{ClientID: req.ClientID, ClientSecret: req.ClientSecret, Host: req.Host}
	res, err := s.deps.Broker.ExchangeCode(r.Context(), creds, req.Code, req.RedirectURI)
	if err != nil {
		writeBrokerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Guest == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Guest access is disabled"})
		return
	}

	var req tokenRequest
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body", Details: err.Error()})
			return
		}
	}

	creds := broker.Credentials{ClientID: req.ClientID, ClientSecret: req.ClientSecret, Host: req.Host}
	res, err := s.deps.Guest.Login(r.Context(), creds)
	if err != nil {
		writeBrokerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

// writeBrokerError maps broker failures to HTTP responses. Provider
// rejections are passed through with their status and body untouched.
func writeBrokerError(w http.ResponseWriter, err error) {
	if errors.Is(err, broker.ErrNoGuestSession) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: noGuestSessionMessage})
		return
	}

	var be *broker.Error
	if !errors.As(err, &be) {
		logging.Error("Server", err, "Token request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Token request failed", Details: err.Error()})
		return
	}

	switch be.Kind {
	case broker.KindConfiguration:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: be.Error()})
	case broker.KindRejected:
		if json.Valid(be.Body) {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(be.StatusCode)
		_, _ = w.Write(be.Body)
	case broker.KindNetwork, broker.KindMalformed:
		writeJSON(w, http.StatusBadGateway, errorBody{Error: be.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: be.Error()})
	}
}

type healthResponse struct {
	Status   string       `json:"status"`
	Database string       `json:"database"`
	Tunnel   *proxy.Stats `json:"tunnel,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Database: "disabled"}
	if s.deps.Proxy != nil {
		stats := s.deps.Proxy.Stats()
		resp.Tunnel = &stats
	}

	status := http.StatusOK
	if s.deps.Sales != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Sales.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Database = "disconnected"
			resp.Error = err.Error()
			status = http.StatusInternalServerError
		} else {
			resp.Database = "connected"
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	sales.WriteJSON(w, status, v)
}
