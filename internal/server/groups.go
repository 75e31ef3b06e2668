package server

import (
	"net/http"
	"time"

	"github.com/tabsplit/tabsplit/internal/models"
)

// personResponse is the wire shape for a person. Only the identity fields are
// exposed; timestamps on people are an internal bookkeeping detail.
type personResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type groupResponse struct {
	ID        string           `json:"id"`
	Slug      string           `json:"slug"`
	Name      string           `json:"name"`
	People    []personResponse `json:"people"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

func toPersonResponses(people []models.Person) []personResponse {
	out := make([]personResponse, len(people))
	for i, p := range people {
		out[i] = personResponse{ID: p.ID, Name: p.Name}
	}
	return out
}

// formatNanos renders a unix-nanosecond timestamp as RFC 3339 in UTC.
func formatNanos(nanos int64) string {
	return time.Unix(0, nanos).UTC().Format(time.RFC3339Nano)
}

func toGroupResponse(g *models.Group) groupResponse {
	return groupResponse{
		ID:        g.ID,
		Slug:      g.Slug,
		Name:      g.Name,
		People:    toPersonResponses(g.People),
		CreatedAt: formatNanos(g.CreatedAt),
		UpdatedAt: formatNanos(g.UpdatedAt),
	}
}

type createGroupRequest struct {
	Name   string   `json:"name"`
	People []string `json:"people"`
}

type updateGroupRequest struct {
	Name   *string   `json:"name"`
	People *[]string `json:"people"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	group, err := s.groups.Create(r.Context(), req.Name, req.People)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(group))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]groupResponse, len(groups))
	for i := range groups {
		out[i] = toGroupResponse(&groups[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

func (s *Server) handleGetGroupBySlug(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req updateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	group, err := s.groups.Update(r.Context(), r.PathValue("id"), models.GroupUpdate{
		Name:   req.Name,
		People: req.People,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGroupVersion serves the cheap change-detection probe: a bare version
// number clients compare against what they last saw.
func (s *Server) handleGroupVersion(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	version, err := s.groups.Version(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_id":   groupID,
		"version":    version,
		"updated_at": formatNanos(version),
	})
}
