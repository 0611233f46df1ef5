package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/familyconnect/familyconnect/internal/core"
)

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (s *Server) statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUserNotFound), errors.Is(err, core.ErrRecordNotFound), errors.Is(err, core.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateRecord):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var user core.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if user.Name == "" || user.Email == "" {
		s.respondError(w, http.StatusBadRequest, "Name and email required")
		return
	}
	if user.Role == "" {
		user.Role = "elderly"
	}

	created, err := s.stores.Users.Create(r.Context(), &user)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	user, err := s.stores.Users.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetConnections(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	conns, err := s.stores.Users.Connections(r.Context(), id)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	if conns == nil {
		conns = []core.FamilyConnection{}
	}
	s.respondJSON(w, http.StatusOK, conns)
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var conn core.FamilyConnection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	conn.UserID = id
	if conn.FamilyMemberID == 0 || conn.Relationship == "" {
		s.respondError(w, http.StatusBadRequest, "Family member and relationship required")
		return
	}

	created, err := s.stores.Users.CreateConnection(r.Context(), &conn)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetConversations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var convs []core.Conversation
	if agentID := core.AgentID(r.URL.Query().Get("agent")); agentID != "" {
		if !agentID.Valid() {
			s.respondError(w, http.StatusBadRequest, "Unknown agent")
			return
		}
		convs, err = s.stores.Conversations.RecentByAgent(r.Context(), id, agentID, limit)
	} else {
		convs, err = s.stores.Conversations.Recent(r.Context(), id, limit)
	}
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	if convs == nil {
		convs = []core.Conversation{}
	}
	s.respondJSON(w, http.StatusOK, convs)
}

func (s *Server) handleCreateCareNotification(w http.ResponseWriter, r *http.Request) {
	var n core.CareNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if n.ElderlyUserID == 0 || n.Title == "" {
		s.respondError(w, http.StatusBadRequest, "User and title required")
		return
	}

	created, err := s.stores.Care.CreateNotification(r.Context(), &n)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCareNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	list, err := s.stores.Care.Notifications(r.Context(), id)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	if list == nil {
		list = []core.CareNotification{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleAcknowledgeCareNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if err := s.stores.Care.AcknowledgeNotification(r.Context(), id); err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var rem core.Reminder
	if err := json.NewDecoder(r.Body).Decode(&rem); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if rem.UserID == 0 || rem.Title == "" {
		s.respondError(w, http.StatusBadRequest, "User and title required")
		return
	}

	created, err := s.stores.Care.CreateReminder(r.Context(), &rem)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetReminders(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var list []core.Reminder
	if r.URL.Query().Get("pending") == "true" {
		list, err = s.stores.Care.PendingReminders(r.Context(), id)
	} else {
		list, err = s.stores.Care.Reminders(r.Context(), id)
	}
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	if list == nil {
		list = []core.Reminder{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if err := s.stores.Care.CompleteReminder(r.Context(), id); err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (s *Server) handleSetSleepSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var sched core.SleepSchedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	sched.UserID = id
	if sched.Bedtime == "" || sched.WakeTime == "" {
		s.respondError(w, http.StatusBadRequest, "Bedtime and wake time required")
		return
	}

	saved, err := s.stores.Care.SetSleepSchedule(r.Context(), &sched)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGetSleepSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	sched, err := s.stores.Care.SleepSchedule(r.Context(), id)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, sched)
}

func (s *Server) handleCreateFrame(w http.ResponseWriter, r *http.Request) {
	var f core.PictureFrame
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if f.ElderlyUserID == 0 || f.Name == "" {
		s.respondError(w, http.StatusBadRequest, "User and name required")
		return
	}
	f.Active = true

	created, err := s.stores.Frames.CreateFrame(r.Context(), &f)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetFrames(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	frames, err := s.stores.Frames.Frames(r.Context(), id)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	if frames == nil {
		frames = []core.PictureFrame{}
	}
	s.respondJSON(w, http.StatusOK, frames)
}

// handleAddPhoto stores the photo and announces it to every connected
// client. The new_photo broadcast is global: no origin exclusion.
func (s *Server) handleAddPhoto(w http.ResponseWriter, r *http.Request) {
	frameID, err := pathID(r, "frameID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid frame id")
		return
	}

	var p core.FamilyPhoto
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	p.PictureFrameID = frameID
	if p.URL == "" {
		s.respondError(w, http.StatusBadRequest, "Photo URL required")
		return
	}

	created, err := s.stores.Frames.AddPhoto(r.Context(), &p)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}

	s.hub.NotifyNewPhoto(frameID, created)
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetPhotos(w http.ResponseWriter, r *http.Request) {
	frameID, err := pathID(r, "frameID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid frame id")
		return
	}
	photos, err := s.stores.Frames.Photos(r.Context(), frameID)
	if err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	if photos == nil {
		photos = []core.FamilyPhoto{}
	}
	s.respondJSON(w, http.StatusOK, photos)
}

func (s *Server) handleMarkPhotoViewed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if err := s.stores.Frames.MarkPhotoViewed(r.Context(), id); err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "viewed"})
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	if err := s.stores.Frames.DeletePhoto(r.Context(), id); err != nil {
		s.respondError(w, s.statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
