// Package httpserver contains HTTP handlers and middleware for the
// moderation pipeline's synchronous read/write surface.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blausher/modsvc/internal/config"
	"github.com/blausher/modsvc/internal/domain"
	"github.com/blausher/modsvc/internal/usecase"
	"github.com/blausher/modsvc/pkg/textx"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Listings    domain.ListingRepository
	Enqueue     usecase.EnqueueService
	ReadAPI     usecase.ReadAPIService
	DBCheck     func(ctx context.Context) error
	RedisCheck  func(ctx context.Context) error
	KafkaCheck  func(ctx context.Context) error
}

// NewServer constructs a Server with its dependencies.
func NewServer(cfg config.Config, listings domain.ListingRepository, enqueue usecase.EnqueueService, readAPI usecase.ReadAPIService, dbCheck, redisCheck, kafkaCheck func(context.Context) error) *Server {
	return &Server{
		Cfg:        cfg,
		Listings:   listings,
		Enqueue:    enqueue,
		ReadAPI:    readAPI,
		DBCheck:    dbCheck,
		RedisCheck: redisCheck,
		KafkaCheck: kafkaCheck,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}

func validateStruct(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := getValidator().Struct(v); err != nil {
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidInput), fieldErrors(err))
		return false
	}
	return true
}

// CreateUserHandler handles POST /users.
func (s *Server) CreateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidInput), nil)
			return
		}
		if !validateStruct(w, r, req) {
			return
		}
		seller, err := s.Listings.CreateSeller(r.Context(), req.ID, req.IsVerifiedSeller)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": seller.ID, "is_verified_seller": seller.IsVerifiedSeller})
	}
}

// CreateAdvertisementHandler handles POST /advertisements.
func (s *Server) CreateAdvertisementHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAdvertisementRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidInput), nil)
			return
		}
		if !validateStruct(w, r, req) {
			return
		}
		name := textx.SanitizeText(req.Name)
		description := textx.SanitizeText(req.Description)
		listing, err := s.Listings.CreateListing(r.Context(), req.SellerID, req.ItemID, name, description, req.Category, req.ImagesQty)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, listing)
	}
}

// CloseAdvertisementHandler handles POST /advertisements/{item_id}/close.
func (s *Server) CloseAdvertisementHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := parseItemID(r, "item_id")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: item_id must be an integer", domain.ErrInvalidInput), nil)
			return
		}
		ok, err := s.ReadAPI.CloseListing(r.Context(), itemID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if !ok {
			writeError(w, r, fmt.Errorf("%w: advertisement", domain.ErrNotFound), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "status": "closed", "message": "Advertisement closed"})
	}
}

// PredictHandler handles POST /predict (synchronous, uncached).
func (s *Server) PredictHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidInput), nil)
			return
		}
		if !validateStruct(w, r, req) {
			return
		}
		entry, err := s.ReadAPI.Predict(r.Context(), req.ItemID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// SimplePredictHandler handles GET /simple_predict?item_id=.
func (s *Server) SimplePredictHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := parseItemIDQuery(r, "item_id")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: item_id query param must be an integer", domain.ErrInvalidInput), nil)
			return
		}
		entry, err := s.ReadAPI.SimplePredict(r.Context(), itemID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// AsyncPredictHandler handles POST /async_predict.
func (s *Server) AsyncPredictHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidInput), nil)
			return
		}
		if !validateStruct(w, r, req) {
			return
		}
		task, err := s.Enqueue.Enqueue(r.Context(), req.ItemID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"task_id": task.ID, "status": string(task.Status), "message": "accepted"})
	}
}

// ModerationResultHandler handles GET /moderation_result/{task_id}.
func (s *Server) ModerationResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := parseItemID(r, "task_id")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: task_id must be an integer", domain.ErrInvalidInput), nil)
			return
		}
		entry, err := s.ReadAPI.GetTaskStatus(r.Context(), taskID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func parseItemID(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, param), 10, 64)
}

func parseItemIDQuery(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(param), 10, 64)
}

// HealthzHandler reports liveness unconditionally.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes Postgres, Redis and Kafka reachability.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make([]check, 0, 3)
		run := func(name string, probe func(context.Context) error) {
			if probe == nil {
				return
			}
			if err := probe(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
				return
			}
			checks = append(checks, check{Name: name, OK: true})
		}
		run("postgres", s.DBCheck)
		run("redis", s.RedisCheck)
		run("kafka", s.KafkaCheck)

		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"checks": checks})
	}
}
