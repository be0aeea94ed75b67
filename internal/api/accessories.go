package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
	"github.com/nerrad567/gray-logic-airpurifier/internal/history"
)

// deviceRequestTimeout bounds a characteristic read or write.
const deviceRequestTimeout = 10 * time.Second

// CharacteristicResponse is the body of characteristic read and write
// responses.
type CharacteristicResponse struct {
	AccessoryID    string `json:"accessory_id"`
	Service        string `json:"service"`
	Characteristic string `json:"characteristic"`
	Value          any    `json:"value"`
}

type setCharacteristicRequest struct {
	Value *json.RawMessage `json:"value"`
}

func (s *Server) handleListAccessories(w http.ResponseWriter, _ *http.Request) {
	accessories := s.accessories.Accessories()
	out := make([]accessory.Description, 0, len(accessories))
	for _, acc := range accessories {
		out = append(out, acc.Describe())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessories": out,
		"count":       len(out),
	})
}

func (s *Server) handleGetAccessory(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.lookupAccessory(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, acc.Describe())
}

// handleGetCharacteristic reads the value from the device through the
// characteristic's get handler.
func (s *Server) handleGetCharacteristic(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.lookupAccessory(w, r)
	if !ok {
		return
	}
	c, err := acc.Find(r.URL.Query().Get("service"), chi.URLParam(r, "type"))
	if err != nil {
		writeCharacteristicError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), deviceRequestTimeout)
	defer cancel()

	value, err := c.Get(ctx)
	if err != nil {
		s.logger.Warn("characteristic read failed",
			"accessory_id", acc.ID(), "characteristic", c.Name(), "error", err)
		writeCharacteristicError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CharacteristicResponse{
		AccessoryID:    acc.ID(),
		Service:        c.Service().Type(),
		Characteristic: c.Name(),
		Value:          value,
	})
}

// handleSetCharacteristic writes {"value": ...} through the set handler
// and returns the cached value afterwards.
func (s *Server) handleSetCharacteristic(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.lookupAccessory(w, r)
	if !ok {
		return
	}
	c, err := acc.Find(r.URL.Query().Get("service"), chi.URLParam(r, "type"))
	if err != nil {
		writeCharacteristicError(w, err)
		return
	}

	var req setCharacteristicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}
	var value any
	if err := json.Unmarshal(*req.Value, &value); err != nil {
		writeBadRequest(w, "invalid value")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), deviceRequestTimeout)
	defer cancel()

	if err := c.Set(ctx, value); err != nil {
		s.logger.Warn("characteristic write failed",
			"accessory_id", acc.ID(), "characteristic", c.Name(), "subject", subject(r.Context()), "error", err)
		writeCharacteristicError(w, err)
		return
	}
	s.logger.Info("characteristic written",
		"accessory_id", acc.ID(), "characteristic", c.Name(), "value", c.Value(), "subject", subject(r.Context()))
	writeJSON(w, http.StatusOK, CharacteristicResponse{
		AccessoryID:    acc.ID(),
		Service:        c.Service().Type(),
		Characteristic: c.Name(),
		Value:          c.Value(),
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.lookupAccessory(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.GetHistory(r.Context(), acc.ID(), r.URL.Query().Get("characteristic"), limit)
	if err != nil {
		if errors.Is(err, history.ErrAccessoryRequired) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("history query failed", "accessory_id", acc.ID(), "error", err)
		writeInternalError(w, "history query failed")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessory_id": acc.ID(),
		"entries":      entries,
		"count":        len(entries),
	})
}

func (s *Server) lookupAccessory(w http.ResponseWriter, r *http.Request) (*accessory.Accessory, bool) {
	id := chi.URLParam(r, "id")
	acc := s.accessories.Accessory(id)
	if acc == nil {
		writeNotFound(w, "accessory not found: "+id)
		return nil, false
	}
	return acc, true
}
