package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/eltako2mqtt/internal/bridges/eltako"
	"github.com/nerrad567/eltako2mqtt/internal/device"
)

// CommandRequest is the body of POST /api/v1/devices/{id}/command.
type CommandRequest struct {
	Command string `json:"command"`
}

// handleListDevices returns all devices sorted by ID.
//
// Query parameters:
//   - class: filter by device class (dimmer, switch, blind, weather, unknown)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.bridge.Devices()

	if name := r.URL.Query().Get("class"); name != "" {
		class, ok := device.ClassFromName(name)
		if !ok && !strings.EqualFold(name, device.ClassUnknown.String()) {
			writeBadRequest(w, "unknown device class: "+name)
			return
		}
		filtered := devices[:0]
		for _, d := range devices {
			if d.Class == class {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.bridge.Device(id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDeviceCommand submits a command and waits for the outcome.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeBadRequest(w, "command is required")
		return
	}

	res, err := s.bridge.Submit(r.Context(), id, req.Command)
	if err != nil {
		status, code := commandErrorStatus(err)
		s.logger.Debug("api command not applied",
			"device_id", id,
			"command_id", res.CommandID,
			"error", err,
		)
		writeJSON(w, status, map[string]any{
			"status":  status,
			"code":    code,
			"message": err.Error(),
			"result":  res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// commandErrorStatus maps bridge errors to an HTTP status and error code.
func commandErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, eltako.ErrUnknownDevice):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, eltako.ErrUnsupportedCommand), errors.Is(err, eltako.ErrOutOfRange):
		return http.StatusUnprocessableEntity, ErrCodeValidation
	case errors.Is(err, eltako.ErrSuppressed):
		return http.StatusConflict, ErrCodeSuppressed
	case errors.Is(err, eltako.ErrGateway):
		return http.StatusBadGateway, ErrCodeGateway
	case errors.Is(err, eltako.ErrQueueFull), errors.Is(err, eltako.ErrStopped):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
