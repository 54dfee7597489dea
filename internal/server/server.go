package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"festival-scoring/internal/domain"
	"festival-scoring/internal/middleware"
	"festival-scoring/internal/repository"
	"festival-scoring/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Server is the single HTTP boundary: it decodes JSON, enforces roles,
// delegates to the services and maps error kinds to status codes.
type Server struct {
	scoringSvc *service.ScoringService
	resultSvc  *service.ResultService
	recheckSvc *service.RecheckService
	paymentSvc *service.PaymentService
	validate   *validator.Validate
	logger     zerolog.Logger
}

func New(
	scoringSvc *service.ScoringService,
	resultSvc *service.ResultService,
	recheckSvc *service.RecheckService,
	paymentSvc *service.PaymentService,
	logger zerolog.Logger,
) *Server {
	return &Server{
		scoringSvc: scoringSvc,
		resultSvc:  resultSvc,
		recheckSvc: recheckSvc,
		paymentSvc: paymentSvc,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Register attaches every route to the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/scores", s.handleSubmitScore)
	mux.HandleFunc("GET /api/v1/events/{event_id}/summaries", s.handleEventSummaries)
	mux.HandleFunc("GET /api/v1/events/{event_id}/results", s.handleListResults)
	mux.HandleFunc("POST /api/v1/events/{event_id}/publish", s.handlePublishResults)
	mux.HandleFunc("GET /api/v1/scores/flagged", s.handleListFlagged)
	mux.HandleFunc("POST /api/v1/scores/{score_id}/review", s.handleMarkReviewed)
	mux.HandleFunc("POST /api/v1/rechecks", s.handleCreateRecheck)
	mux.HandleFunc("GET /api/v1/rechecks", s.handleListRechecks)
	mux.HandleFunc("POST /api/v1/rechecks/{request_id}/accept", s.handleAcceptRecheck)
	mux.HandleFunc("POST /api/v1/rechecks/{request_id}/complete", s.handleCompleteRecheck)
	mux.HandleFunc("GET /api/v1/rechecks/{request_id}/validate", s.handleValidateRecheck)
	mux.HandleFunc("POST /api/v1/rechecks/{request_id}/payment", s.handleInitiatePayment)
	mux.HandleFunc("GET /api/v1/rechecks/{request_id}/outstanding", s.handleOutstanding)
	mux.HandleFunc("POST /api/v1/payments/verify", s.handleVerifyPayment)
}

type submitScoreRequest struct {
	EventID       string             `json:"event_id" validate:"required"`
	ParticipantID string             `json:"participant_id" validate:"required"`
	Criteria      map[string]float64 `json:"criteria" validate:"required"`
	Notes         string             `json:"notes"`
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireRole(w, r, middleware.RoleJudge)
	if !ok {
		return
	}

	var req submitScoreRequest
	if !s.decode(w, r, &req) {
		return
	}

	rec, err := s.scoringSvc.SubmitScore(r.Context(), service.SubmitScoreInput{
		EventID:       req.EventID,
		ParticipantID: req.ParticipantID,
		JudgeID:       actor.ID,
		Criteria:      req.Criteria,
		Notes:         req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleEventSummaries(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireRole(w, r, middleware.RoleJudge, middleware.RoleAdmin)
	if !ok {
		return
	}

	summaries, err := s.scoringSvc.EventSummaries(r.Context(), r.PathValue("event_id"), actor.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAnyActor(w, r); !ok {
		return
	}

	views, err := s.resultSvc.ListByEvent(r.Context(), r.PathValue("event_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePublishResults(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, middleware.RoleAdmin); !ok {
		return
	}

	results, err := s.resultSvc.Publish(r.Context(), r.PathValue("event_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleListFlagged(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, middleware.RoleAdmin); !ok {
		return
	}

	filter := repository.FlaggedFilter{
		EventID:  r.URL.Query().Get("event_id"),
		JudgeID:  r.URL.Query().Get("judge_id"),
		Severity: domain.Severity(r.URL.Query().Get("severity")),
	}
	if v := r.URL.Query().Get("reviewed"); v != "" {
		reviewed, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, domain.NewValidation("reviewed must be true or false"))
			return
		}
		filter.Reviewed = &reviewed
	}

	records, err := s.scoringSvc.ListFlagged(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleMarkReviewed(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, middleware.RoleAdmin); !ok {
		return
	}

	scoreID, err := strconv.ParseInt(r.PathValue("score_id"), 10, 64)
	if err != nil {
		s.writeError(w, r, domain.NewValidation("score id must be numeric"))
		return
	}

	var req reviewRequest
	if !s.decode(w, r, &req) {
		return
	}

	rec, err := s.scoringSvc.MarkReviewed(r.Context(), scoreID, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type createRecheckRequest struct {
	ResultID int64  `json:"result_id" validate:"required"`
	Reason   string `json:"reason"`
}

func (s *Server) handleCreateRecheck(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireRole(w, r, middleware.RoleStudent)
	if !ok {
		return
	}

	var req createRecheckRequest
	if !s.decode(w, r, &req) {
		return
	}

	created, err := s.recheckSvc.CreateRequest(r.Context(), req.ResultID, actor.ID, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListRechecks(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireRole(w, r, middleware.RoleVolunteer, middleware.RoleJudge)
	if !ok {
		return
	}

	var (
		requests []domain.RecheckRequest
		err      error
	)
	if actor.Role == middleware.RoleVolunteer {
		requests, err = s.recheckSvc.VolunteerQueue(r.Context())
	} else {
		requests, err = s.recheckSvc.JudgeQueue(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, requests)
}

func (s *Server) handleAcceptRecheck(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireRole(w, r, middleware.RoleVolunteer)
	if !ok {
		return
	}

	req, err := s.recheckSvc.AcceptRequest(r.Context(), r.PathValue("request_id"), actor.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleCompleteRecheck(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, middleware.RoleVolunteer); !ok {
		return
	}

	req, err := s.recheckSvc.CompleteRequest(r.Context(), r.PathValue("request_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleValidateRecheck(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, middleware.RoleAdmin); !ok {
		return
	}

	problems, err := s.recheckSvc.ValidateRequestData(r.Context(), r.PathValue("request_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"consistent": len(problems) == 0,
		"problems":   problems,
	})
}

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireRole(w, r, middleware.RoleStudent)
	if !ok {
		return
	}

	result, err := s.paymentSvc.InitiatePayment(r.Context(), r.PathValue("request_id"), actor.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAnyActor(w, r); !ok {
		return
	}

	outstanding, err := s.paymentSvc.Outstanding(r.Context(), r.PathValue("request_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"outstanding": outstanding})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireRole(w, r, middleware.RoleStudent)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if !s.decode(w, r, &req) {
		return
	}

	rec, err := s.paymentSvc.VerifyPayment(r.Context(), req.OrderID, req.PaymentID, req.Signature, actor.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, domain.NewValidation("invalid request body"))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, r, domain.NewValidation("invalid request: %v", err))
		return false
	}
	return true
}

func (s *Server) requireAnyActor(w http.ResponseWriter, r *http.Request) (middleware.Actor, bool) {
	actor := middleware.GetActor(r.Context())
	if actor.ID == "" {
		s.writeJSON(w, http.StatusUnauthorized, errorBody("caller identity is missing"))
		return actor, false
	}
	return actor, true
}

func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (middleware.Actor, bool) {
	actor, ok := s.requireAnyActor(w, r)
	if !ok {
		return actor, false
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, true
		}
	}
	s.writeJSON(w, http.StatusForbidden, errorBody("role "+actor.Role+" may not perform this action"))
	return actor, false
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindDependency:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.writeJSON(w, status, errorBody(err.Error()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
