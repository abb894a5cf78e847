package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/service"
	"storefront/backend/internal/source"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := a.service.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"at":       time.Now().UTC().Format(time.RFC3339),
		"products": snap.Catalog.Len(),
		"rules":    snap.Rules.Len(),
	})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if !a.sessionLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many session requests"))
		return
	}
	resp, err := a.sessions.Issue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.SetCookie(w, a.sessions.cookie(resp))
	writeJSON(w, http.StatusCreated, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	uniqueOnly, _ := strconv.ParseBool(strings.TrimSpace(query.Get("unique")))
	writeJSON(w, http.StatusOK, a.service.ListProducts(query.Get("q"), uniqueOnly))
}

func (a *API) handleProductLookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	product, err := a.service.LookupProduct(name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	if !a.reloadLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many reload requests"))
		return
	}
	snap, err := a.service.Load(r.Context())
	if err != nil {
		var loadErr *source.LoadError
		notice := "catalog reload failed, previous data kept"
		if errors.As(err, &loadErr) {
			notice = loadErr.Source + " reload failed, previous data kept"
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":      notice,
			"generation": snap.Generation,
		})
		return
	}
	writeJSON(w, http.StatusOK, domain.ReloadResponse{
		Products:   snap.Catalog.Len(),
		Rules:      snap.Rules.Len(),
		Generation: snap.Generation,
		LoadedAt:   snap.LoadedAt.Format(time.RFC3339),
	})
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.Cart(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.AddToCart(r.Context(), sessionIDFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("index must be an integer"))
		return
	}
	view, err := a.service.RemoveFromCart(r.Context(), sessionIDFromContext(r.Context()), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.ClearCart(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), a.defaultLimit, maxRecommendationLimit)
	resp, err := a.service.Recommend(r.Context(), sessionIDFromContext(r.Context()), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.Checkout(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoSession):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, service.ErrUnknownProduct):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
