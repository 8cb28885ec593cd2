package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type eventRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Type        string    `json:"type"`
}

func (req eventRequest) input() services.EventInput {
	return services.EventInput{
		Name:        req.Name,
		Description: req.Description,
		Date:        req.Date,
		Location:    req.Location,
		Type:        req.Type,
	}
}

type eventView struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Type        string    `json:"type"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newEventView(e *models.Event) eventView {
	return eventView{
		ID:          e.ID,
		OrganizerID: e.OrganizerID,
		Name:        e.Name,
		Description: e.Description,
		Date:        e.Date,
		Location:    e.Location,
		Type:        e.Type,
		CreatedAt:   e.CreatedAt,
	}
}

func eventViews(events []*models.Event) []eventView {
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, newEventView(e))
	}
	return out
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventViews(events))
}

func (s *Server) organizerEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListByOrganizer(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventViews(events))
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	v := newEventView(e)
	url, err := s.events.ImageURL(r.Context(), e)
	if err != nil {
		s.logger.Warn(r.Context(), "presign event image", "event_id", e.ID, "error", err)
	}
	v.ImageURL = url
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.events.Create(r.Context(), userIDFrom(r.Context()), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventView(e))
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.events.Update(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(e))
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Delete(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) eventImageUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.events.ImageUploadURL(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": up.Key, "uploadUrl": up.URL})
}
