package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// BindingHandler handles HTTP requests for binding resources. Every
// successful change calls the reload hook so the dispatcher picks it up.
type BindingHandler struct {
	store  *store.Store
	reload func() error
}

// NewBindingHandler creates a BindingHandler. reload may be nil.
func NewBindingHandler(s *store.Store, reload func() error) *BindingHandler {
	return &BindingHandler{store: s, reload: reload}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type bindingRequest struct {
	Mode         *string         `json:"mode"`
	Label        *string         `json:"label"`
	Action       *string         `json:"action"`
	PluginName   *string         `json:"plugin_name"`
	PluginAction *string         `json:"plugin_action"`
	Params       json.RawMessage `json:"params"`
	CooldownMs   *int64          `json:"cooldown_ms"`
	NextMode     *string         `json:"next_mode"`
	Enabled      *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID           string          `json:"id"`
	Mode         string          `json:"mode"`
	Label        string          `json:"label"`
	Action       string          `json:"action"`
	PluginName   string          `json:"plugin_name,omitempty"`
	PluginAction string          `json:"plugin_action,omitempty"`
	Params       json.RawMessage `json:"params"`
	CooldownMs   int64           `json:"cooldown_ms"`
	NextMode     string          `json:"next_mode,omitempty"`
	Enabled      bool            `json:"enabled"`
	CreatedAt    string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	params := b.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	return bindingResponse{
		ID:           b.ID,
		Mode:         b.Mode,
		Label:        b.Label,
		Action:       b.Action,
		PluginName:   b.PluginName,
		PluginAction: b.PluginAction,
		Params:       params,
		CooldownMs:   b.CooldownMs,
		NextMode:     b.NextMode,
		Enabled:      b.Enabled,
		CreatedAt:    b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// apply copies the fields present in req onto b.
func (req *bindingRequest) apply(b *store.Binding) {
	if req.Mode != nil {
		b.Mode = *req.Mode
	}
	if req.Label != nil {
		b.Label = *req.Label
	}
	if req.Action != nil {
		b.Action = *req.Action
	}
	if req.PluginName != nil {
		b.PluginName = *req.PluginName
	}
	if req.PluginAction != nil {
		b.PluginAction = *req.PluginAction
	}
	if req.Params != nil {
		b.Params = req.Params
	}
	if req.CooldownMs != nil {
		b.CooldownMs = *req.CooldownMs
	}
	if req.NextMode != nil {
		b.NextMode = *req.NextMode
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
}

// validateBinding canonicalizes the label and checks the fields a
// dispatcher needs.
func validateBinding(b *store.Binding) error {
	label, err := gesture.ParseLabel(b.Label)
	if err != nil {
		return err
	}
	if label == gesture.None {
		return fmt.Errorf("%s cannot be bound", gesture.None)
	}
	b.Label = label.String()

	if b.Action == "" {
		return errors.New("action is required")
	}
	if b.PluginName != "" && b.PluginAction == "" {
		return errors.New("plugin_action is required with plugin_name")
	}
	if b.CooldownMs < 0 {
		return errors.New("cooldown_ms must be >= 0")
	}
	if len(b.Params) > 0 && !json.Valid(b.Params) {
		return errors.New("params must be valid JSON")
	}
	return nil
}

// findConflict returns the binding that already holds (mode, label), if any.
func (h *BindingHandler) findConflict(b *store.Binding) (*store.Binding, error) {
	all, err := h.store.Bindings().List()
	if err != nil {
		return nil, err
	}
	for _, other := range all {
		if other.ID != b.ID && other.Mode == b.Mode && other.Label == b.Label {
			return other, nil
		}
	}
	return nil, nil
}

func (h *BindingHandler) reloadDispatcher() {
	if h.reload == nil {
		return
	}
	if err := h.reload(); err != nil {
		log.Printf("Failed to reload bindings: %v", err)
	}
}

// list handles GET /api/bindings.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{
		Bindings: make([]bindingResponse, 0, len(bindings)),
	}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/bindings/{id}.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// create handles POST /api/bindings.
func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	b := &store.Binding{
		ID:      uuid.New().String(),
		Enabled: true,
	}
	req.apply(b)

	if err := validateBinding(b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conflict, err := h.findConflict(b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing bindings")
		return
	}
	if conflict != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("%s is already bound in mode %q", b.Label, b.Mode))
		return
	}

	if err := h.store.Bindings().Create(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}

	h.reloadDispatcher()
	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

// update handles PUT /api/bindings/{id}. Absent fields are left unchanged.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.apply(b)

	if err := validateBinding(b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conflict, err := h.findConflict(b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing bindings")
		return
	}
	if conflict != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("%s is already bound in mode %q", b.Label, b.Mode))
		return
	}

	if err := h.store.Bindings().Update(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}

	h.reloadDispatcher()
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// delete handles DELETE /api/bindings/{id}.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}

	h.reloadDispatcher()
	w.WriteHeader(http.StatusNoContent)
}
