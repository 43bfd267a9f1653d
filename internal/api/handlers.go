package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/campaign"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/enrollment"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/version"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  version.Version,
		Revision: version.Revision,
	})
}

// Campaigns

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	req := campaign.CreateRequest{}
	if !decode(w, r, &req) {
		return
	}

	c, err := s.service.CreateCampaign(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns := s.service.ListCampaigns()

	writeJSON(w, http.StatusOK, CampaignList{
		Total:     len(campaigns),
		Campaigns: campaigns,
	})
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetCampaign(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (s *Server) transitionCampaign(w http.ResponseWriter, r *http.Request) {
	req := TransitionRequest{}
	if !decode(w, r, &req) {
		return
	}

	c, err := s.service.TransitionCampaign(r.Context(), chi.URLParam(r, "id"), req.To)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (s *Server) addOperation(w http.ResponseWriter, r *http.Request) {
	req := AddOperationRequest{}
	if !decode(w, r, &req) {
		return
	}

	c, err := s.service.AddOperation(r.Context(), chi.URLParam(r, "id"), req.OperationID, req.Name)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateOperation(w http.ResponseWriter, r *http.Request) {
	req := UpdateOperationRequest{}
	if !decode(w, r, &req) {
		return
	}

	c, err := s.service.UpdateOperation(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "operationID"), req.Status)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (s *Server) addError(w http.ResponseWriter, r *http.Request) {
	req := AddErrorRequest{}
	if !decode(w, r, &req) {
		return
	}

	c, err := s.service.AddError(r.Context(), chi.URLParam(r, "id"), req.Phase, req.Message, req.Severity)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) setReports(w http.ResponseWriter, r *http.Request) {
	req := SetReportsRequest{}
	if !decode(w, r, &req) {
		return
	}

	c, err := s.service.SetReports(r.Context(), chi.URLParam(r, "id"), req.Reports)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (s *Server) campaignAgents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	agents, err := s.service.CampaignAgents(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, CampaignAgents{
		CampaignID:  id,
		TotalAgents: len(agents),
		Agents:      agents,
	})
}

// Webhooks

func (s *Server) registerWebhook(w http.ResponseWriter, r *http.Request) {
	req := WebhookRequest{}
	if !decode(w, r, &req) {
		return
	}

	handle, err := s.service.RegisterWebhook(entity.Subscription{
		URL:         req.URL,
		Name:        req.Name,
		Exchanges:   req.Exchanges,
		Queues:      req.Queues,
		SinkType:    req.SinkType,
		Headers:     req.Headers,
		MaxAttempts: req.RetryAttempts,
		BaseDelay:   seconds(req.RetryDelay),
		Timeout:     seconds(req.Timeout),
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, WebhookHandle{Handle: handle})
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Webhooks())
}

func (s *Server) unregisterWebhook(w http.ResponseWriter, r *http.Request) {
	err := s.service.UnregisterWebhook(chi.URLParam(r, "handle"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Enrollments

func (s *Server) createEnrollment(w http.ResponseWriter, r *http.Request) {
	req := enrollment.CreateRequest{}
	if !decode(w, r, &req) {
		return
	}

	e, err := s.service.CreateEnrollment(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) getEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := s.service.GetEnrollment(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (s *Server) listEnrollments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := enrollment.ListFilter{
		CampaignID: query.Get("campaign_id"),
		Platform:   entity.Platform(query.Get("platform")),
		Status:     entity.EnrollmentStatus(query.Get("status")),
		Limit:      enrollment.DefaultListLimit,
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")

			return
		}

		filter.Limit = limit
	}

	requests := s.service.ListEnrollments(filter)

	writeJSON(w, http.StatusOK, EnrollmentList{
		Total:    len(requests),
		Limit:    filter.Limit,
		Requests: requests,
	})
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}

	return time.Duration(v * float64(time.Second))
}
