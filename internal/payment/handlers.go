package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/toko-square/internal/common"
	"github.com/noah-isme/toko-square/internal/config"
)

// SessionCookie names the cookie carrying the buyer session id.
const SessionCookie = "toko_sid"

const maxBodyBytes = 1 << 20

// Handler exposes the Gateway over HTTP.
type Handler struct {
	Gateway *Gateway
	// Validate defaults to a validator with required-struct checks.
	Validate *validator.Validate
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	CookieTTL    time.Duration
}

// Routes mounts the Square endpoints. Transfer is wrapped with transferMW,
// typically the idempotency middleware.
func (h *Handler) Routes(transferMW ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/options", h.Options)
	r.With(transferMW...).Post("/transfer", h.Transfer)
	r.Post("/verify", h.Verify)
	r.Get("/settings", h.Settings)
	return r
}

// Options answers whether Square can be offered for the posted cart.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var cart Cart
	if !h.decode(w, r, &cart, true) {
		return
	}
	set := h.Gateway.Options(r.Context(), cart)
	if set == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.JSON(w, http.StatusOK, set)
}

// Transfer saves the posted order and returns the Square redirect.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var order Order
	if !h.decode(w, r, &order, true) {
		return
	}
	// The order store assigns ids; a posted id would let the caller rewrite
	// someone else's order.
	order.ID = ""
	res := h.Gateway.Transfer(r.Context(), h.sessionID(w, r), &order)
	status := http.StatusOK
	if res.Error != "" {
		status = common.StatusForKind(res.Kind)
	}
	common.JSON(w, status, res)
}

type verifyReq struct {
	OrderID string `json:"orderId"`
}

// Verify confirms the pending Square payment of the caller's session.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req verifyReq
	if !h.decode(w, r, &req, false) {
		return
	}
	res := h.Gateway.Verify(r.Context(), h.sessionID(w, r), &Order{ID: strings.TrimSpace(req.OrderID)})
	status := http.StatusOK
	if res.Error != "" {
		status = common.StatusForKind(res.Kind)
	}
	common.JSON(w, status, res)
}

type settingView struct {
	config.SettingField
	Value string `json:"value"`
}

// Settings lists the module settings schema with current values.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	values := h.Gateway.Settings.Values()
	schema := config.SquareSchema()
	out := make([]settingView, 0, len(schema))
	for _, f := range schema {
		out = append(out, settingView{SettingField: f, Value: values[f.Key]})
	}
	common.JSON(w, http.StatusOK, map[string]any{"module": providerName, "settings": out})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Gateway == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return false
	}
	return true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, required bool) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && !required {
			return true
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return false
	}
	if err := h.validator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid request", fields)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

var defaultValidate = validator.New(validator.WithRequiredStructEnabled())

func (h *Handler) validator() *validator.Validate {
	if h.Validate != nil {
		return h.Validate
	}
	return defaultValidate
}

// sessionID returns the buyer session id, issuing a new cookie when absent.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	id := uuid.NewString()
	ttl := h.CookieTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
