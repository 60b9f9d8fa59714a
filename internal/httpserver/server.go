package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/driftmail/beacon/internal/analytics"
	"github.com/driftmail/beacon/internal/config"
	"github.com/driftmail/beacon/internal/database"
	"github.com/driftmail/beacon/internal/errs"
	"github.com/driftmail/beacon/internal/metrics"
	"github.com/driftmail/beacon/internal/middleware"
	"github.com/driftmail/beacon/internal/models"
	"github.com/driftmail/beacon/internal/storage"
	"github.com/driftmail/beacon/internal/tracker"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server wraps HTTP handlers and tracking services.
type Server struct {
	recorder        *tracker.Recorder
	emailService    *tracker.EmailService
	campaignService *tracker.CampaignService
	statsService    *analytics.Service
	db              *database.PostgresDB
	redis           *database.RedisDB
	logger          *zap.Logger
	config          *config.Config
	metrics         *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	// Initialize repositories
	var emailRepo storage.EmailRepo
	var campaignRepo storage.CampaignRepo
	var eventStore storage.EventStore

	if deps.DB != nil {
		emailRepo = storage.NewPostgresEmailRepo(deps.DB.Pool)
		campaignRepo = storage.NewPostgresCampaignRepo(deps.DB.Pool)
		eventStore = storage.NewPostgresEventStore(deps.DB.Pool)
	} else {
		emailRepo = storage.NewInMemoryEmailRepo()
		campaignRepo = storage.NewInMemoryCampaignRepo()
		eventStore = storage.NewInMemoryEventStore()
	}

	s := &Server{
		recorder:        tracker.NewRecorder(emailRepo, eventStore, deps.Logger),
		emailService:    tracker.NewEmailService(emailRepo, campaignRepo, eventStore, deps.Logger),
		campaignService: tracker.NewCampaignService(campaignRepo, deps.Logger),
		statsService:    analytics.NewService(emailRepo, campaignRepo, eventStore),
		db:              deps.DB,
		redis:           deps.Redis,
		logger:          deps.Logger,
		config:          deps.Config,
		metrics:         deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Anonymous tracking endpoints
	mux.HandleFunc("/track/pixel/", s.handlePixel)
	mux.HandleFunc("/track/click/", s.handleClickRedirect)
	mux.HandleFunc("/track/event", s.handleTrackEvent)

	// Analytics
	mux.HandleFunc("/api/analytics/overview", s.handleOverview)
	mux.HandleFunc("/api/analytics/email/", s.handleEmailStats)
	mux.HandleFunc("/api/analytics/campaign/", s.handleCampaignStats)
	mux.HandleFunc("/api/analytics/top-campaigns", s.handleTopCampaigns)

	// Email management
	mux.HandleFunc("/api/emails", s.handleEmails)
	mux.HandleFunc("/api/emails/", s.handleEmailByID)

	// Campaign management
	mux.HandleFunc("/api/campaigns", s.handleCampaigns)
	mux.HandleFunc("/api/campaigns/", s.handleCampaignByID)

	// Middleware chain, innermost first
	var handler http.Handler = mux
	handler = middleware.NewAuthMiddleware(deps.Config.Auth, deps.Logger).Handler(handler)
	handler = middleware.NewRateLimitMiddleware(deps.Config.RateLimit, redisClient(deps.Redis), deps.Logger, deps.Metrics).Handler(handler)
	handler = middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(deps.Logger).Handler(handler)

	return handler
}

func redisClient(db *database.RedisDB) *redis.Client {
	if db == nil {
		return nil
	}
	return db.Client
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}

	if s.db != nil {
		if err := s.db.Health(r.Context()); err != nil {
			status["postgres"] = "unavailable"
		} else {
			status["postgres"] = "ok"
		}
	}
	if s.redis != nil {
		if err := s.redis.Health(r.Context()); err != nil {
			status["redis"] = "unavailable"
		} else {
			status["redis"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// ---- Tracking ----

// handlePixel serves the tracking pixel for GET /track/pixel/{tid}.png.
// It always returns the pixel bytes with 200: a broken image in a
// recipient's mail client would leak that the identifier was invalid,
// so recording failures are logged and absorbed.
func (s *Server) handlePixel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	trackingID := strings.TrimPrefix(r.URL.Path, "/track/pixel/")
	trackingID = strings.TrimSuffix(trackingID, ".png")

	if _, err := s.recorder.RecordOpen(r.Context(), trackingID, s.actorInfo(r)); err != nil {
		s.absorb("pixel", trackingID, err)
	} else {
		s.metrics.RecordEvent(models.EventOpen)
	}

	pixel := tracker.TrackingPixel()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(pixel)))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Write(pixel)
}

// handleClickRedirect records a click for GET /track/click/{tid}?url=...
// and redirects to the destination. Unknown identifiers still redirect,
// for the same anti-enumeration reason the pixel always renders.
func (s *Server) handleClickRedirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	trackingID := strings.TrimPrefix(r.URL.Path, "/track/click/")
	destination := r.URL.Query().Get("url")
	if destination == "" {
		destination = "/"
	} else if !tracker.ValidURL(destination) {
		s.errorResponse(w, "invalid redirect url", http.StatusBadRequest)
		return
	}

	if _, err := s.recorder.RecordClick(r.Context(), trackingID, destination, s.actorInfo(r)); err != nil {
		s.absorb("click", trackingID, err)
	} else {
		s.metrics.RecordEvent(models.EventClick)
	}

	http.Redirect(w, r, destination, http.StatusFound)
}

type trackEventRequest struct {
	TrackingID string `json:"tracking_id"`
	EventType  string `json:"event_type"`
	ClickedURL string `json:"clicked_url"`
	Location   string `json:"location"`
}

// handleTrackEvent accepts explicit event reports on POST /track/event.
// Unlike the pixel and redirect endpoints this one reports failures:
// it is meant for integrations, not for mail clients.
func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req trackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	actor := s.actorInfo(r)
	if req.Location != "" {
		actor.Location = req.Location
	}

	event, err := s.recorder.RecordCustom(r.Context(), req.TrackingID, req.EventType, actor, req.ClickedURL)
	if err != nil {
		s.serviceError(w, err)
		return
	}

	s.metrics.RecordEvent(event.EventType)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(event)
}

// absorb logs a recording failure without surfacing it to the caller.
func (s *Server) absorb(endpoint, trackingID string, err error) {
	reason := "error"
	var nf *errs.NotFoundError
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &nf):
		reason = "not_found"
	case errors.As(err, &ve):
		reason = "invalid"
	}

	s.metrics.RecordAbsorbed(endpoint, reason)
	s.logger.Debug("tracking failure absorbed",
		zap.String("endpoint", endpoint),
		zap.String("tracking_id", trackingID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (s *Server) actorInfo(r *http.Request) tracker.ActorInfo {
	return tracker.ActorInfo{
		IPAddress: clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// clientIP prefers the X-Forwarded-For chain set by the edge proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host
}

// ---- Analytics ----

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A campaign_id narrows the overview to that campaign.
	if campaignID := r.URL.Query().Get("campaign_id"); campaignID != "" {
		stats, err := s.statsService.CampaignStats(r.Context(), campaignID)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		s.jsonResponse(w, stats)
		return
	}

	stats, err := s.statsService.GlobalStats(r.Context())
	if err != nil {
		s.logger.Error("failed to compute global stats", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, stats)
}

func (s *Server) handleEmailStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/analytics/email/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.statsService.EmailStats(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, stats)
}

func (s *Server) handleCampaignStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/analytics/campaign/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.statsService.CampaignStats(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, stats)
}

func (s *Server) handleTopCampaigns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	metric := q.Get("metric")

	limit := 10
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			s.errorResponse(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ranked, err := s.statsService.TopCampaigns(r.Context(), metric, limit)
	if err != nil {
		s.logger.Error("failed to rank campaigns", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]any{
		"metric":    metric,
		"campaigns": ranked,
	})
}

// ---- Emails CRUD ----

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := models.EmailFilter{
			CampaignID: q.Get("campaign_id"),
			Recipient:  q.Get("recipient"),
			Sender:     q.Get("sender"),
			Limit:      intQuery(q.Get("limit"), 0),
			Offset:     intQuery(q.Get("offset"), 0),
		}

		emails, total, err := s.emailService.List(r.Context(), filter)
		if err != nil {
			s.logger.Error("failed to list emails", zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, map[string]any{
			"emails": emails,
			"total":  total,
		})

	case http.MethodPost:
		var in tracker.CreateEmailInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}

		email, err := s.emailService.Create(r.Context(), in)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(email)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEmailByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/emails/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/events"); ok {
		s.handleEmailEvents(w, r, id)
		return
	}
	id := rest

	switch r.Method {
	case http.MethodGet:
		email, err := s.emailService.Get(r.Context(), id)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		s.jsonResponse(w, email)

	case http.MethodPut, http.MethodPatch:
		var in tracker.UpdateEmailInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}

		email, err := s.emailService.Update(r.Context(), id, in)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		s.jsonResponse(w, email)

	case http.MethodDelete:
		if err := s.emailService.Delete(r.Context(), id); err != nil {
			s.serviceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEmailEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events, err := s.emailService.Events(r.Context(), id, r.URL.Query().Get("event_type"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, map[string]any{
		"email_id": id,
		"events":   events,
		"total":    len(events),
	})
}

// ---- Campaigns CRUD ----

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := models.CampaignFilter{
			Status:    models.CampaignStatus(q.Get("status")),
			CreatedBy: q.Get("created_by"),
			Limit:     intQuery(q.Get("limit"), 0),
			Offset:    intQuery(q.Get("offset"), 0),
		}

		campaigns, err := s.campaignService.List(r.Context(), filter)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		s.jsonResponse(w, campaigns)

	case http.MethodPost:
		var in tracker.CreateCampaignInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}

		campaign, err := s.campaignService.Create(r.Context(), in)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(campaign)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCampaignByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/campaigns/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/events"); ok {
		s.handleCampaignEvents(w, r, id)
		return
	}
	id := rest

	switch r.Method {
	case http.MethodGet:
		campaign, err := s.campaignService.Get(r.Context(), id)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		s.jsonResponse(w, campaign)

	case http.MethodPut, http.MethodPatch:
		var in tracker.UpdateCampaignInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}

		campaign, err := s.campaignService.Update(r.Context(), id, in)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		s.jsonResponse(w, campaign)

	case http.MethodDelete:
		if err := s.campaignService.Delete(r.Context(), id); err != nil {
			s.serviceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCampaignEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events, err := s.emailService.EventsByCampaign(r.Context(), id, r.URL.Query().Get("event_type"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, map[string]any{
		"campaign_id": id,
		"events":      events,
		"total":       len(events),
	})
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// serviceError maps service errors onto HTTP status codes.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	var nf *errs.NotFoundError
	if errors.As(err, &nf) {
		s.errorResponse(w, nf.Message, http.StatusNotFound)
		return
	}

	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": ve.Message,
			"field": ve.Field,
		})
		return
	}

	s.logger.Error("request failed", zap.Error(err))
	s.errorResponse(w, "internal error", http.StatusInternalServerError)
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
