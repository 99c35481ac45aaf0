package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bookwell/cartsync/internal/application/admin"
	appcart "github.com/bookwell/cartsync/internal/application/cart"
	domcart "github.com/bookwell/cartsync/internal/domain/cart"
	"github.com/bookwell/cartsync/internal/observability"
	"github.com/go-chi/chi/v5"
)

const (
	componentHTTPHandler = "http_server"
	headerOwnerID        = "X-Owner-ID"
)

type Handler struct {
	manager *appcart.Manager
	admin   *admin.Service
	log     observability.Logger
	tel     observability.Observability
}

func NewHandler(manager *appcart.Manager, adminSvc *admin.Service, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		manager: manager,
		admin:   adminSvc,
		log:     tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Observability(h.log, h.tel))

	r.Get("/health", h.handleHealth)

	r.Route("/cart", func(r chi.Router) {
		r.Post("/", h.handleCreateOrGetCart)
		r.Get("/", h.handleGetCart)
		r.Post("/items", h.handleAddItem)
		r.Patch("/items/{itemID}", h.handleUpdateQuantity)
		r.Delete("/items/{itemID}", h.handleRemoveItem)
		r.Post("/refresh", h.handleRefresh)
	})

	r.Route("/admin/carts", func(r chi.Router) {
		r.Get("/", h.handleAdminListCarts)
		r.Post("/reload", h.handleAdminReload)
		r.Post("/owner/{ownerID}", h.handleAdminCreateOrGet)
		r.Get("/{cartID}", h.handleAdminGetCart)
		r.Post("/{cartID}/items", h.handleAdminAddItem)
		r.Patch("/{cartID}/items/{itemID}", h.handleAdminUpdateQuantity)
		r.Delete("/{cartID}/items/{itemID}", h.handleAdminRemoveItem)
	})

	return r
}

type lineItemResponse struct {
	ID              string    `json:"id"`
	ServiceID       string    `json:"service_id"`
	Quantity        int       `json:"quantity"`
	DisplayName     string    `json:"display_name"`
	UnitPrice       int64     `json:"unit_price"`
	DurationSeconds int64     `json:"duration_seconds"`
	ImageRef        string    `json:"image_ref,omitempty"`
	Available       bool      `json:"available"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

type cartResponse struct {
	ID                   string             `json:"id"`
	OwnerID              string             `json:"owner_id"`
	Items                []lineItemResponse `json:"items"`
	TotalPrice           int64              `json:"total_price"`
	TotalDurationSeconds int64              `json:"total_duration_seconds"`
	ItemCount            int                `json:"item_count"`
	HasUnavailable       bool               `json:"has_unavailable"`
}

func toCartResponse(c *domcart.Cart) cartResponse {
	resp := cartResponse{
		ID:                   c.ID,
		OwnerID:              c.OwnerID,
		Items:                make([]lineItemResponse, 0, len(c.Items)),
		TotalPrice:           c.Totals.TotalPrice,
		TotalDurationSeconds: c.Totals.TotalDurationSeconds,
		ItemCount:            c.Totals.ItemCount,
		HasUnavailable:       c.Totals.HasUnavailable,
	}
	for _, li := range c.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			ID:              li.ID,
			ServiceID:       li.ServiceID,
			Quantity:        li.Quantity,
			DisplayName:     li.Snapshot.DisplayName,
			UnitPrice:       li.Snapshot.UnitPrice,
			DurationSeconds: li.Snapshot.DurationSeconds,
			ImageRef:        li.Snapshot.ImageRef,
			Available:       li.Snapshot.Available,
			ResolvedAt:      li.Snapshot.ResolvedAt,
		})
	}
	return resp
}

func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*appcart.Service, bool) {
	ownerID := r.Header.Get(headerOwnerID)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing "+headerOwnerID+" header"))
		return nil, false
	}
	return h.manager.ForOwner(ownerID), true
}

func (h *Handler) handleCreateOrGetCart(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.engine(w, r)
	if !ok {
		return
	}
	cart, err := svc.CreateOrGetCart(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.engine(w, r)
	if !ok {
		return
	}
	cart := svc.Cart()
	if cart == nil {
		writeError(w, http.StatusNotFound, appcart.ErrCartNotResolved)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

type addItemRequest struct {
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := svc.AddItem(r.Context(), req.ServiceID, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResponse(svc.Cart()))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := svc.UpdateQuantity(r.Context(), chi.URLParam(r, "itemID"), req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(svc.Cart()))
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := svc.RemoveItem(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(svc.Cart()))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := svc.RefreshSnapshots(r.Context(), 0); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(svc.Cart()))
}

func (h *Handler) handleAdminListCarts(w http.ResponseWriter, _ *http.Request) {
	carts := h.admin.Carts()
	out := make([]cartResponse, 0, len(carts))
	for _, c := range carts {
		out = append(out, toCartResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAdminReload(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Load(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdminCreateOrGet(w http.ResponseWriter, r *http.Request) {
	cart, err := h.admin.CreateOrGet(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *Handler) handleAdminGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.admin.Cart(chi.URLParam(r, "cartID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *Handler) handleAdminAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cartID := chi.URLParam(r, "cartID")
	if _, err := h.admin.AddItem(r.Context(), cartID, req.ServiceID, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	cart, err := h.admin.Cart(cartID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResponse(cart))
}

func (h *Handler) handleAdminUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cartID := chi.URLParam(r, "cartID")
	if err := h.admin.UpdateQuantity(r.Context(), cartID, chi.URLParam(r, "itemID"), req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	cart, err := h.admin.Cart(cartID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *Handler) handleAdminRemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	if err := h.admin.RemoveItem(r.Context(), cartID, chi.URLParam(r, "itemID")); err != nil {
		writeDomainError(w, err)
		return
	}
	cart, err := h.admin.Cart(cartID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var syncErr *appcart.SyncError
	switch {
	case errors.Is(err, domcart.ErrLineBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domcart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domcart.ErrItemNotFound),
		errors.Is(err, admin.ErrCartNotFound),
		errors.Is(err, appcart.ErrCartNotResolved):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &syncErr):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
