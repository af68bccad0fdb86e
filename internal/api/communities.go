package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/communities-core/internal/audit"
	"github.com/nerrad567/communities-core/internal/auth"
	"github.com/nerrad567/communities-core/internal/community"
)

// createCommunityRequest is the request body for POST /communities.
type createCommunityRequest struct {
	Name string `json:"name"`
}

// addAdminRequest is the request body for POST /communities/{id}/admins.
type addAdminRequest struct {
	UserID string `json:"user_id"`
}

// createAmenityRequest is the request body for POST /communities/{id}/amenities.
type createAmenityRequest struct {
	Name string `json:"name"`
}

// handleListCommunities returns the communities the caller administers.
func (s *Server) handleListCommunities(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	communities, err := s.communities.ListForAdmin(r.Context(), identity)
	if err != nil {
		s.writeFailure(w, r, "listing communities", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"communities": communities,
		"count":       len(communities),
	})
}

// handleCreateCommunity creates a community with the caller as its first admin.
func (s *Server) handleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	var req createCommunityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	c := &community.Community{Name: req.Name, CreatedBy: identity}
	if err := s.communities.Create(r.Context(), c); err != nil {
		s.writeFailure(w, r, "creating community", err)
		return
	}
	s.auditCommunity(r, audit.ActionCreate, c.ID, map[string]any{"name": c.Name})

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := s.communities.ListAdmins(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, "listing admins", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"admins": admins,
		"count":  len(admins),
	})
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	var req addAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	admin, err := s.communities.AddAdmin(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		s.writeFailure(w, r, "adding admin", err)
		return
	}
	s.auditCommunity(r, audit.ActionGrantAdmin, admin.CommunityID, map[string]any{"granted_to": admin.UserID})

	writeJSON(w, http.StatusCreated, admin)
}

func (s *Server) handleListAmenities(w http.ResponseWriter, r *http.Request) {
	amenities, err := s.communities.ListAmenities(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, "listing amenities", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"amenities": amenities,
		"count":     len(amenities),
	})
}

func (s *Server) handleCreateAmenity(w http.ResponseWriter, r *http.Request) {
	var req createAmenityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	a := &community.Amenity{CommunityID: chi.URLParam(r, "id"), Name: req.Name}
	if err := s.communities.CreateAmenity(r.Context(), a); err != nil {
		s.writeFailure(w, r, "creating amenity", err)
		return
	}
	s.auditCommunity(r, audit.ActionCreateAmenity, a.CommunityID, map[string]any{"amenity_id": a.ID, "name": a.Name})

	writeJSON(w, http.StatusCreated, a)
}

// handleListAudit returns the community's audit trail, most recent first.
// Query parameters: action, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeNotFound(w, "audit log not available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: audit.EntityCommunity,
		EntityID:   chi.URLParam(r, "id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditLog.List(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, "listing audit entries", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// auditCommunity records an action the caller took on a community.
func (s *Server) auditCommunity(r *http.Request, action, communityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	s.audit.Record(action, audit.EntityCommunity, communityID, identity, details)
}
