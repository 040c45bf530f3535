package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"i4.energy/across/atlink/link"
	"i4.energy/across/atlink/modem"
)

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger  *slog.Logger
	Modem   *modem.Modem
	Session *link.Session
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sms", s.handleSMS)
	mux.HandleFunc("POST /command", s.handleCommand)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)

}

// handleSMS processes incoming HTTP POST requests to send SMS messages
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	type SMSRequest struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}

	var req SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.To == "" || req.Message == "" {
		s.sendError(w, "both 'to' and 'message' fields are required", http.StatusBadRequest)
		return
	}

	if err := s.Modem.SendSMS(r.Context(), req.To, req.Message); err != nil {
		s.Logger.Error("Failed to send SMS", "error", err, "to", req.To)
		s.sendError(w, err.Error(), statusForError(err))
		return
	}

	s.Logger.Info("SMS sent successfully", "to", req.To, "message_length", len(req.Message))
	w.WriteHeader(http.StatusOK)
}

// handleCommand runs a raw AT command and returns the modem's response.
// Intended for diagnostics; the command goes through the same transaction
// queue as everything else.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	type CommandRequest struct {
		Command   string `json:"command"`
		TimeoutMS int    `json:"timeout_ms"`
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Command == "" {
		s.sendError(w, "'command' field is required", http.StatusBadRequest)
		return
	}

	var opts []link.SendOption
	if req.TimeoutMS > 0 {
		opts = append(opts, link.WithTimeout(time.Duration(req.TimeoutMS)*time.Millisecond))
	}

	resp, err := s.Session.Send(r.Context(), req.Command, opts...)
	if err != nil {
		var modemErr *link.ModemError
		if errors.As(err, &modemErr) {
			// The command completed; the modem said no. Return the
			// failure detail rather than an opaque 5xx.
			type CommandError struct {
				Final  string `json:"final"`
				Detail string `json:"detail"`
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(CommandError{Final: modemErr.Line, Detail: modemErr.Detail})
			return
		}
		s.Logger.Error("Command failed", "error", err, "command", req.Command)
		s.sendError(w, err.Error(), statusForError(err))
		return
	}

	type CommandResponse struct {
		Lines []string `json:"lines"`
		Final string   `json:"final"`
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CommandResponse{Lines: resp.Lines, Final: resp.Final})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, link.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, link.ErrSessionClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
