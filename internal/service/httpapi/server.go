package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/caseymorris321/waterslab/internal/domain"
	"github.com/caseymorris321/waterslab/internal/metrics"
	"github.com/caseymorris321/waterslab/internal/service/cart"
)

const (
	headerUserID     = "X-User-ID"
	headerGuestToken = "X-Guest-Token"
)

// Server — HTTP JSON API корзины для витрины. Действующее лицо запроса
// определяется заголовками: X-User-ID для авторизованного пользователя,
// X-Guest-Token для гостя. Запрос без обоих заголовков получает свежий
// гостевой токен в ответном X-Guest-Token.
type Server struct {
	carts       *cart.Service
	logger      *log.Entry
	httpMetrics *metrics.HTTPMetrics
}

// NewServer конструирует HTTP-сервер корзины.
func NewServer(carts *cart.Service, httpMetrics *metrics.HTTPMetrics, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "http-api")
	}
	return &Server{
		carts:       carts,
		logger:      logger,
		httpMetrics: httpMetrics,
	}
}

// Handler собирает маршрутизатор API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /v1/cart", s.instrument("get_cart", http.HandlerFunc(s.handleGetCart)))
	mux.Handle("POST /v1/cart/mutate", s.instrument("mutate_cart", http.HandlerFunc(s.handleMutateCart)))
	mux.Handle("POST /v1/cart/merge", s.instrument("merge_cart", http.HandlerFunc(s.handleMergeCart)))
	return mux
}

func (s *Server) instrument(name string, next http.Handler) http.Handler {
	if s.httpMetrics == nil {
		return next
	}
	labels := prometheus.Labels{"handler": name}
	handler := promhttp.InstrumentHandlerDuration(s.httpMetrics.RequestDuration().MustCurryWith(labels), next)
	return promhttp.InstrumentHandlerCounter(s.httpMetrics.RequestsTotal().MustCurryWith(labels), handler)
}

type mutateRequest struct {
	Op        string `json:"op"`
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type mergeRequest struct {
	GuestToken string `json:"guest_token"`
}

type lineView struct {
	ProductID  string    `json:"product_id"`
	Qty        int32     `json:"qty"`
	PriceMinor int64     `json:"price_minor"`
	AddedAt    time.Time `json:"added_at"`
}

type cartResponse struct {
	Lines         []lineView `json:"lines"`
	ItemCount     int32      `json:"item_count"`
	SubtotalMinor int64      `json:"subtotal_minor"`
	ShippingMinor int64      `json:"shipping_minor"`
	TotalMinor    int64      `json:"total_minor"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	owner := s.resolveOwner(w, r)

	snapshot, proj, err := s.carts.Snapshot(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCart(w, http.StatusOK, snapshot, proj)
}

func (s *Server) handleMutateCart(w http.ResponseWriter, r *http.Request) {
	owner := s.resolveOwner(w, r)

	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}

	op := cart.Op(strings.ToLower(strings.TrimSpace(req.Op)))
	switch op {
	case cart.OpAdd, cart.OpUpdate, cart.OpRemove, cart.OpClear:
	default:
		s.writeErrorStatus(w, http.StatusBadRequest, "bad_request", "unknown cart operation")
		return
	}

	if _, err := s.carts.Apply(r.Context(), owner, cart.Mutation{
		Op:        op,
		ProductID: strings.TrimSpace(req.ProductID),
		Qty:       req.Qty,
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshot, proj, err := s.carts.Snapshot(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCart(w, http.StatusOK, snapshot, proj)
}

func (s *Server) handleMergeCart(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		s.writeErrorStatus(w, http.StatusBadRequest, "bad_request", "X-User-ID header is required")
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeErrorStatus(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	guestToken := strings.TrimSpace(req.GuestToken)
	if guestToken == "" {
		guestToken = strings.TrimSpace(r.Header.Get(headerGuestToken))
	}
	if guestToken == "" {
		s.writeErrorStatus(w, http.StatusBadRequest, "bad_request", "guest token is required")
		return
	}

	if err := s.carts.Merge(r.Context(), guestToken, userID); err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshot, proj, err := s.carts.Snapshot(r.Context(), domain.UserOwner(userID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCart(w, http.StatusOK, snapshot, proj)
}

// resolveOwner определяет владельца корзины по заголовкам запроса.
// Гостевой токен всегда возвращается в ответе, чтобы браузер мог его сохранить.
func (s *Server) resolveOwner(w http.ResponseWriter, r *http.Request) domain.CartOwner {
	if userID := strings.TrimSpace(r.Header.Get(headerUserID)); userID != "" {
		return domain.UserOwner(userID)
	}

	token := strings.TrimSpace(r.Header.Get(headerGuestToken))
	if token == "" {
		token = uuid.NewString()
	}
	w.Header().Set(headerGuestToken, token)
	return domain.GuestOwner(token)
}

func (s *Server) writeCart(w http.ResponseWriter, status int, snapshot domain.Cart, proj cart.Projection) {
	resp := cartResponse{
		Lines:         make([]lineView, 0, len(snapshot.Lines)),
		ItemCount:     proj.ItemCount,
		SubtotalMinor: proj.SubtotalMinor,
		ShippingMinor: proj.ShippingMinor,
		TotalMinor:    proj.TotalMinor,
		UpdatedAt:     snapshot.UpdatedAt,
	}
	for _, line := range snapshot.Lines {
		resp.Lines = append(resp.Lines, lineView{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
			AddedAt:    line.AddedAt,
		})
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	s.writeErrorStatus(w, status, code, err.Error())
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("failed to encode response")
	}
}

// statusForError отображает доменные ошибки на HTTP-статусы.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, "invalid_quantity"
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, domain.ErrLineNotFound):
		return http.StatusNotFound, "line_not_found"
	case errors.Is(err, domain.ErrCartOwnerRequired), errors.Is(err, domain.ErrProductIDRequired):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, domain.ErrMergeConflict):
		return http.StatusConflict, "merge_conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
