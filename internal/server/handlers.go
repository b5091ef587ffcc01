package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kruplan/kruplan/internal/export"
	"github.com/kruplan/kruplan/internal/fault"
	"github.com/kruplan/kruplan/internal/schedule"
)

type createSheetRequest struct {
	Name  string `json:"name" validate:"required"`
	Grade string `json:"grade"`
}

type setActiveSheetRequest struct {
	ID string `json:"id" validate:"required"`
}

type setOwnerRequest struct {
	// Owner may be empty to return to anonymous local-only mode.
	Owner string `json:"owner"`
}

type slotRequest struct {
	Day         string  `json:"day" validate:"required"`
	Period      int     `json:"period" validate:"gte=1"`
	SubjectCode string  `json:"subjectCode" validate:"required"`
	SubjectName string  `json:"subjectName"`
	TeacherID   *string `json:"teacherId"`
	RoomID      *string `json:"roomId"`
	Color       *string `json:"color"`
}

type schoolInfoRequest struct {
	Name             string `json:"name"`
	StartTime        string `json:"startTime" validate:"required"`
	EndTime          string `json:"endTime" validate:"required"`
	MinutesPerPeriod int    `json:"minutesPerPeriod" validate:"gte=1"`
}

type periodConfigsRequest struct {
	Configs []schedule.PeriodConfig `json:"configs" validate:"min=1,dive"`
}

type statusResponse struct {
	SaveStatus    string `json:"saveStatus"`
	IsLoaded      bool   `json:"isLoaded"`
	Owner         string `json:"owner,omitempty"`
	ActiveSheetID string `json:"activeSheetId,omitempty"`
	SheetCount    int    `json:"sheetCount"`
}

// decodeAndValidate reads the JSON body into dst and runs struct
// validation, returning a classified validation error on failure.
func (s *Server) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fault.ValidationError("invalid JSON body").WithCause(err).Build()
	}
	if err := s.validate.Struct(dst); err != nil {
		return fault.ValidationError("invalid request payload").WithCause(err).Build()
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		SaveStatus:    string(s.coord.Status()),
		IsLoaded:      s.coord.Loaded(),
		Owner:         s.coord.Owner(),
		ActiveSheetID: s.store.ActiveSheetID(),
		SheetCount:    len(s.store.Sheets()),
	})
}

func (s *Server) handleSetOwner(w http.ResponseWriter, r *http.Request) {
	var req setOwnerRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.coord.SetOwner(req.Owner)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSheets(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Sheets())
}

func (s *Server) handleCreateSheet(w http.ResponseWriter, r *http.Request) {
	var req createSheetRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	id := s.store.CreateSheet(req.Name, req.Grade)
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) findSheet(id string) (*schedule.Sheet, error) {
	for _, sheet := range s.store.Sheets() {
		if sheet.ID == id {
			return &sheet, nil
		}
	}
	return nil, fault.NotFoundError("sheet not found").WithContext("sheet_id", id).Build()
}

func (s *Server) handleGetSheet(w http.ResponseWriter, r *http.Request) {
	sheet, err := s.findSheet(r.PathValue("id"))
	if err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sheet)
}

func (s *Server) handleDeleteSheet(w http.ResponseWriter, r *http.Request) {
	if _, err := s.findSheet(r.PathValue("id")); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.store.DeleteSheet(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetActiveSheet(w http.ResponseWriter, r *http.Request) {
	sheet := s.store.ActiveSheet()
	if sheet == nil {
		s.adapter.WriteError(w, r, fault.NotFoundError("no active sheet").Build())
		return
	}
	s.writeJSON(w, http.StatusOK, sheet)
}

func (s *Server) handleSetActiveSheet(w http.ResponseWriter, r *http.Request) {
	var req setActiveSheetRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	if _, err := s.findSheet(req.ID); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.store.SetActiveSheetID(req.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportSheet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var sheet *schedule.Sheet
	if id == "active" {
		sheet = s.store.ActiveSheet()
		if sheet == nil {
			s.adapter.WriteError(w, r, fault.NotFoundError("no active sheet").Build())
			return
		}
	} else {
		found, err := s.findSheet(id)
		if err != nil {
			s.adapter.WriteError(w, r, err)
			return
		}
		sheet = found
	}

	switch r.URL.Query().Get("format") {
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(export.Markdown(*sheet)))
	case "", "html":
		page, err := export.HTML(*sheet)
		if err != nil {
			s.adapter.WriteError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	default:
		s.adapter.WriteError(w, r, fault.ValidationError("unknown export format").
			WithContext("format", r.URL.Query().Get("format")).
			Build())
	}
}

func (s *Server) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.store.UpdateSlot(schedule.Slot{
		Day:         req.Day,
		Period:      req.Period,
		SubjectCode: req.SubjectCode,
		SubjectName: req.SubjectName,
		TeacherID:   req.TeacherID,
		RoomID:      req.RoomID,
		Color:       req.Color,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveSlot(w http.ResponseWriter, r *http.Request) {
	period, err := strconv.Atoi(r.PathValue("period"))
	if err != nil {
		s.adapter.WriteError(w, r, fault.ValidationError("period must be an integer").WithCause(err).Build())
		return
	}
	s.store.RemoveSlot(r.PathValue("day"), period)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSubject(w http.ResponseWriter, r *http.Request) {
	var subject schedule.Subject
	if err := s.decodeAndValidate(r, &subject); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	if subject.Code == "" || subject.Name == "" {
		s.adapter.WriteError(w, r, fault.ValidationError("subject code and name are required").Build())
		return
	}
	s.store.AddSubject(subject)
	s.writeJSON(w, http.StatusCreated, subject)
}

func (s *Server) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	var subject schedule.Subject
	if err := s.decodeAndValidate(r, &subject); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	subject.ID = r.PathValue("id")
	s.store.UpdateSubject(subject)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	s.store.DeleteSubject(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddTeacher(w http.ResponseWriter, r *http.Request) {
	var teacher schedule.Teacher
	if err := s.decodeAndValidate(r, &teacher); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	if teacher.FirstName == "" {
		s.adapter.WriteError(w, r, fault.ValidationError("teacher first name is required").Build())
		return
	}
	s.store.AddTeacher(teacher)
	s.writeJSON(w, http.StatusCreated, teacher)
}

func (s *Server) handleUpdateTeacher(w http.ResponseWriter, r *http.Request) {
	var teacher schedule.Teacher
	if err := s.decodeAndValidate(r, &teacher); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	teacher.ID = r.PathValue("id")
	s.store.UpdateTeacher(teacher)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTeacher(w http.ResponseWriter, r *http.Request) {
	s.store.DeleteTeacher(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSubTeacher(w http.ResponseWriter, r *http.Request) {
	var link schedule.SubTeacher
	if err := s.decodeAndValidate(r, &link); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	if link.TeacherID == "" || link.SubjectID == "" {
		s.adapter.WriteError(w, r, fault.ValidationError("teacher_id and subject_id are required").Build())
		return
	}
	s.store.AddSubTeacher(link)
	s.writeJSON(w, http.StatusCreated, link)
}

func (s *Server) handleUpdateSubTeacher(w http.ResponseWriter, r *http.Request) {
	var link schedule.SubTeacher
	if err := s.decodeAndValidate(r, &link); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	link.ID = r.PathValue("id")
	s.store.UpdateSubTeacher(link)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSubTeacher(w http.ResponseWriter, r *http.Request) {
	s.store.DeleteSubTeacher(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddRoom(w http.ResponseWriter, r *http.Request) {
	var room schedule.Room
	if err := s.decodeAndValidate(r, &room); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	if room.Name == "" {
		s.adapter.WriteError(w, r, fault.ValidationError("room name is required").Build())
		return
	}
	s.store.AddRoom(room)
	s.writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	var room schedule.Room
	if err := s.decodeAndValidate(r, &room); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	room.ID = r.PathValue("id")
	s.store.UpdateRoom(room)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	s.store.DeleteRoom(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAllRooms(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.GetAllRooms())
}

func (s *Server) handleUpdateSchoolInfo(w http.ResponseWriter, r *http.Request) {
	var req schoolInfoRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.store.UpdateSchoolInfo(schedule.SchoolInfo{
		Name:             req.Name,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		MinutesPerPeriod: req.MinutesPerPeriod,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPeriodConfigs(w http.ResponseWriter, r *http.Request) {
	var req periodConfigsRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.store.SetPeriodConfigs(req.Configs)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatchPeriodConfig(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.adapter.WriteError(w, r, fault.ValidationError("period id must be an integer").WithCause(err).Build())
		return
	}
	var patch schedule.PeriodConfigPatch
	if err := s.decodeAndValidate(r, &patch); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.store.UpdatePeriodConfig(id, patch)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatchDayConfig(w http.ResponseWriter, r *http.Request) {
	var patch schedule.DayConfigPatch
	if err := s.decodeAndValidate(r, &patch); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	s.store.UpdateDayConfig(r.PathValue("key"), patch)
	w.WriteHeader(http.StatusNoContent)
}
