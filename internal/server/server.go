package server

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/gateway"
	"github.com/mshop/payments/internal/manager"
	"github.com/mshop/payments/internal/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodySize = 1 << 20

// Server exposes the notification endpoints the gateways call back on:
//
//	POST /notify/{alias}              order payments
//	POST /notify/{alias}/registration registration fees
//
// Query and form parameters are merged; adapters never see the HTTP layer.
type Server struct {
	manager *manager.Manager
	logger  zerolog.Logger
}

func New(m *manager.Manager, logger zerolog.Logger) *Server {
	return &Server{manager: m, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/notify/{alias}", s.handleNotification(manager.NotificationOrder))
	mux.HandleFunc("/notify/{alias}/registration", s.handleNotification(manager.NotificationRegistration))
	mux.HandleFunc("POST /redirect/{alias}", s.handleRedirect)
	mux.HandleFunc("POST /redirect/{alias}/registration", s.handleRegistrationRedirect)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// handleRedirect answers the shop frontend with the gateway-specific checkout
// redirect for an order.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	alias := r.PathValue("alias")

	var req gateway.RedirectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	redirect, err := s.manager.Redirect(r.Context(), alias, req)
	if err != nil {
		s.writeRedirectError(w, r, alias, err)
		return
	}

	s.writeJSON(w, alias, redirect)
}

func (s *Server) handleRegistrationRedirect(w http.ResponseWriter, r *http.Request) {
	alias := r.PathValue("alias")

	var req gateway.RedirectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	redirect, err := s.manager.RedirectRegistration(r.Context(), alias, r.URL.Query().Get("country"), req)
	if err != nil {
		s.writeRedirectError(w, r, alias, err)
		return
	}

	s.writeJSON(w, alias, redirect)
}

func (s *Server) writeRedirectError(w http.ResponseWriter, r *http.Request, alias string, err error) {
	if errors.Is(err, gateway.ErrUndefinedSystem) || errors.Is(err, port.ErrNotFound) {
		http.NotFound(w, r)
		return
	}

	s.logger.Error().Err(err).Str("alias", alias).Msg("redirect building failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, alias string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Str("alias", alias).Msg("response write failed")
	}
}

func (s *Server) handleNotification(typ manager.NotificationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alias := r.PathValue("alias")

		n, err := buildNotification(r)
		if err != nil {
			s.logger.Warn().Err(err).Str("alias", alias).Msg("malformed notification")
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		countryCode := r.URL.Query().Get("country")

		resp, err := s.manager.HandleNotification(r.Context(), alias, n, countryCode, typ)
		if err != nil {
			if errors.Is(err, gateway.ErrUndefinedSystem) {
				http.NotFound(w, r)
				return
			}

			// an unverified notification must not be acknowledged; 5xx makes
			// the gateway retry
			s.logger.Error().Err(err).Str("alias", alias).Msg("notification processing failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(resp.Body); err != nil {
			s.logger.Error().Err(err).Str("alias", alias).Msg("response write failed")
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func buildNotification(r *http.Request) (domain.Notification, error) {
	var n domain.Notification

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return n, err
	}

	params := url.Values{}
	for key, values := range r.URL.Query() {
		params[key] = values
	}

	if strings.Contains(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return n, err
		}
		for key, values := range form {
			params[key] = values
		}
	}

	return domain.Notification{
		URI:          r.URL.RequestURI(),
		Params:       params,
		Body:         body,
		ClientIP:     clientIP(r),
		LanguageCode: params.Get("lang"),
	}, nil
}

// clientIP prefers the proxy-provided address: the service sits behind a
// reverse proxy and r.RemoteAddr is the proxy, not the gateway.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
