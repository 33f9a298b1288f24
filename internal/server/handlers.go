package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/jacobszpz/CarPark/internal/board"
	"github.com/jacobszpz/CarPark/internal/carpark"
	"github.com/jacobszpz/CarPark/internal/telemetry"
)

// Handler serves the car park API. The invariants of the car park span all
// of its sets at once, so every mutating operation runs under the write
// lock; field-level locking would let readers observe a half-applied
// transition. Board updates are captured under the lock and published after
// it is released.
type Handler struct {
	mu          sync.RWMutex
	carPark     *carpark.Instrumented
	telemetry   *telemetry.Provider
	board       *board.Hub
	serviceName string
}

func NewHandler(carPark *carpark.Instrumented, tel *telemetry.Provider, hub *board.Hub, serviceName string) *Handler {
	return &Handler{
		carPark:     carPark,
		telemetry:   tel,
		board:       hub,
		serviceName: serviceName,
	}
}

// currentUpdate builds the board payload. Caller holds mu.
func (h *Handler) currentUpdate() board.Update {
	return board.Update{
		ReservedOpen: h.carPark.ReservedOpen(),
		Available:    h.carPark.CarPark.Available(),
		Occupied:     h.carPark.Occupied(),
		Reserved:     h.carPark.ReservedOccupied(),
		Subscribers:  h.carPark.Subscribers(),
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": h.serviceName,
		"meta":    extractMeta(r.Context()),
	})
}

func (h *Handler) CreateCarPark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateCarParkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	carPark, err := carpark.NewInstrumented(req.Capacity, req.ReservedCapacity, req.MinSpacesLeft, h.telemetry)
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	h.carPark = carPark
	update := h.currentUpdate()
	h.mu.Unlock()

	h.board.Publish(update)
	WriteSuccess(ctx, w, "Car park created successfully", map[string]any{
		"capacity":          req.Capacity,
		"reserved_capacity": req.ReservedCapacity,
		"min_spaces_left":   req.MinSpacesLeft,
	})
}

func (h *Handler) EnterCarPark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Registration == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Registration is required")
		return
	}

	h.mu.Lock()
	if h.carPark == nil {
		h.mu.Unlock()
		WriteError(ctx, w, http.StatusBadRequest, "Car park not created. Create car park first")
		return
	}
	admitted := h.carPark.Enter(ctx, req.Registration)
	update := h.currentUpdate()
	h.mu.Unlock()

	if !admitted {
		WriteError(ctx, w, http.StatusConflict, "Car park is full")
		return
	}

	h.board.Publish(update)
	WriteSuccess(ctx, w, "Car entered successfully", map[string]any{
		"registration": req.Registration,
		"available":    update.Available,
	})
}

func (h *Handler) EnterReservedArea(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Registration == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Registration is required")
		return
	}

	h.mu.Lock()
	if h.carPark == nil {
		h.mu.Unlock()
		WriteError(ctx, w, http.StatusBadRequest, "Car park not created. Create car park first")
		return
	}
	admitted, err := h.carPark.EnterReserved(ctx, req.Registration)
	update := h.currentUpdate()
	h.mu.Unlock()

	if err != nil {
		if errors.Is(err, carpark.ErrNotSubscribed) {
			WriteError(ctx, w, http.StatusForbidden, err.Error())
			return
		}
		WriteError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !admitted {
		WriteError(ctx, w, http.StatusConflict, "Car park is full")
		return
	}

	h.board.Publish(update)
	WriteSuccess(ctx, w, "Car entered reserved area successfully", map[string]any{
		"registration":  req.Registration,
		"available":     update.Available,
		"reserved_open": update.ReservedOpen,
	})
}

func (h *Handler) LeaveCarPark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Registration == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Registration is required")
		return
	}

	h.mu.Lock()
	if h.carPark == nil {
		h.mu.Unlock()
		WriteError(ctx, w, http.StatusBadRequest, "Car park not created. Create car park first")
		return
	}
	h.carPark.Leave(ctx, req.Registration)
	update := h.currentUpdate()
	h.mu.Unlock()

	h.board.Publish(update)
	WriteSuccess(ctx, w, "Car left successfully", map[string]any{
		"registration": req.Registration,
		"available":    update.Available,
	})
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Registration == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Registration is required")
		return
	}

	h.mu.Lock()
	if h.carPark == nil {
		h.mu.Unlock()
		WriteError(ctx, w, http.StatusBadRequest, "Car park not created. Create car park first")
		return
	}
	subscribed := h.carPark.Subscribe(ctx, req.Registration)
	update := h.currentUpdate()
	h.mu.Unlock()

	if !subscribed {
		WriteError(ctx, w, http.StatusConflict, "No subscription spaces left")
		return
	}

	h.board.Publish(update)
	WriteSuccess(ctx, w, "Car subscribed successfully", map[string]any{
		"registration": req.Registration,
		"subscribers":  update.Subscribers,
	})
}

func (h *Handler) OpenReservedArea(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.mu.Lock()
	if h.carPark == nil {
		h.mu.Unlock()
		WriteError(ctx, w, http.StatusBadRequest, "Car park not created. Create car park first")
		return
	}
	h.carPark.OpenReservedArea(ctx)
	update := h.currentUpdate()
	h.mu.Unlock()

	h.board.Publish(update)
	WriteSuccess(ctx, w, "Reserved area opened", map[string]any{
		"reserved_open": true,
		"available":     update.Available,
	})
}

func (h *Handler) CloseCarPark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.mu.Lock()
	if h.carPark == nil {
		h.mu.Unlock()
		WriteError(ctx, w, http.StatusBadRequest, "Car park not created. Create car park first")
		return
	}
	h.carPark.Close(ctx)
	update := h.currentUpdate()
	h.mu.Unlock()

	h.board.Publish(update)
	WriteSuccess(ctx, w, "Car park closed", map[string]any{
		"reserved_open": false,
		"occupied":      update.Occupied,
	})
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.mu.RLock()
	if h.carPark == nil {
		h.mu.RUnlock()
		WriteError(ctx, w, http.StatusBadRequest, "Car park not created. Create car park first")
		return
	}
	available := h.carPark.Available(ctx)
	response := AvailabilityResponse{
		Available:    available,
		Occupied:     h.carPark.Occupied(),
		ReservedOpen: h.carPark.ReservedOpen(),
	}
	h.mu.RUnlock()

	WriteSuccess(ctx, w, "Availability retrieved successfully", response)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.mu.RLock()
	if h.carPark == nil {
		h.mu.RUnlock()
		WriteError(ctx, w, http.StatusBadRequest, "Car park not created. Create car park first")
		return
	}
	snap := h.carPark.Snapshot(ctx)
	h.mu.RUnlock()

	WriteSuccess(ctx, w, "Status retrieved successfully", snap)
}
