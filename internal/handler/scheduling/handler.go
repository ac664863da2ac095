package scheduling

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduling/internal/middleware"
	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/service/appointment"
	"github.com/jwalitptl/clinic-scheduling/internal/service/scheduling"
	apperrors "github.com/jwalitptl/clinic-scheduling/pkg/errors"
	"github.com/jwalitptl/clinic-scheduling/pkg/httputil"
	"github.com/jwalitptl/clinic-scheduling/pkg/validator"
)

// appointmentView adds the statuses the appointment may move to next.
type appointmentView struct {
	*model.Appointment
	NextStatuses []model.AppointmentStatus `json:"next_statuses"`
}

type Handler struct {
	service   *scheduling.Service
	validator validator.Validator
}

func NewHandler(service *scheduling.Service, validator validator.Validator) *Handler {
	return &Handler{service: service, validator: validator}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.BookAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id/status", h.ChangeStatus)
		appointments.GET("/:id/history", h.GetHistory)
		appointments.POST("/:id/diagnoses", h.AddDiagnosis)
		appointments.GET("/:id/diagnoses", h.ListDiagnoses)
	}

	r.GET("/patients/:patient_id/appointments", h.ListPatientAppointments)
	r.POST("/shifts", h.CreateShift)

	rooms := r.Group("/rooms/:room_id")
	{
		rooms.POST("/times", h.CreateRoomTime)
		rooms.GET("/times/available", h.ListAvailable)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req model.BookAppointmentRequest
	if !h.bind(c, &req) {
		return
	}

	apt, err := h.service.BookAppointment(c.Request.Context(), actor,
		uuid.MustParse(req.MedicalRoomTimeID), uuid.MustParse(req.PatientID), req.Notes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.param(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !h.canView(actor, apt) {
		httputil.RespondWithError(c, apperrors.Forbidden("not allowed to view this appointment"))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointmentView{
		Appointment:  apt,
		NextStatuses: appointment.NextStatuses(apt.Status),
	})
}

func (h *Handler) ChangeStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.param(c, "id")
	if !ok {
		return
	}
	var req model.ChangeStatusRequest
	if !h.bind(c, &req) {
		return
	}

	apt, err := h.service.ChangeStatus(c.Request.Context(), actor, id, req.Status, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) GetHistory(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if err := h.service.Authorize(actor, model.ActionViewHistory); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, ok := h.param(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.GetAppointmentHistory(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, entries)
}

func (h *Handler) AddDiagnosis(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if err := h.service.Authorize(actor, model.ActionRecordDiagnosis); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, ok := h.param(c, "id")
	if !ok {
		return
	}
	var req model.AddDiagnosisRequest
	if !h.bind(c, &req) {
		return
	}

	suggestion, err := h.service.AddDiagnosisSuggestion(c.Request.Context(), id, req.DiseaseID, *req.Confidence, req.AISuggested)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, suggestion)
}

func (h *Handler) ListDiagnoses(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if err := h.service.Authorize(actor, model.ActionViewHistory); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, ok := h.param(c, "id")
	if !ok {
		return
	}

	suggestions, err := h.service.ListDiagnosisSuggestions(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, suggestions)
}

func (h *Handler) ListPatientAppointments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	patientID, ok := h.param(c, "patient_id")
	if !ok {
		return
	}

	appointments, err := h.service.ListPatientAppointments(c.Request.Context(), actor, patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointments)
}

func (h *Handler) CreateShift(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req model.CreateShiftRequest
	if !h.bind(c, &req) {
		return
	}

	shift, err := h.service.CreateShift(c.Request.Context(), actor, &model.ShiftWorking{
		DoctorID:      uuid.MustParse(req.DoctorID),
		MedicalRoomID: uuid.MustParse(req.MedicalRoomID),
		FromTime:      req.FromTime.UTC(),
		ToTime:        req.ToTime.UTC(),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, shift)
}

func (h *Handler) CreateRoomTime(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	roomID, ok := h.param(c, "room_id")
	if !ok {
		return
	}
	var req model.CreateRoomTimeRequest
	if !h.bind(c, &req) {
		return
	}

	slot, err := h.service.CreateRoomTime(c.Request.Context(), actor, &model.MedicalRoomTime{
		MedicalRoomID: roomID,
		DoctorID:      uuid.MustParse(req.DoctorID),
		FromTime:      req.FromTime.UTC(),
		ToTime:        req.ToTime.UTC(),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, slot)
}

// ListAvailable takes RFC 3339 from and to query parameters.
func (h *Handler) ListAvailable(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	roomID, ok := h.param(c, "room_id")
	if !ok {
		return
	}
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("from must be an RFC 3339 time", err))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("to must be an RFC 3339 time", err))
		return
	}

	slots, err := h.service.ListAvailableSlots(c.Request.Context(), roomID, from.UTC(), to.UTC())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, slots)
}

func (h *Handler) actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
	}
	return actor, ok
}

func (h *Handler) param(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid request body", err))
		return false
	}
	if err := h.validator.Validate(req); err != nil {
		httputil.RespondWithError(c, err)
		return false
	}
	return true
}

// canView lets patients read their own appointments and everyone who may
// view history read any.
func (h *Handler) canView(actor model.Actor, apt *model.Appointment) bool {
	if actor.Role == model.RolePatient {
		return apt.PatientID == actor.AccountID
	}
	return h.service.Authorize(actor, model.ActionViewHistory) == nil
}
