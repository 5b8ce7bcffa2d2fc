package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/cartline/api/middleware"
	"github.com/example/cartline/api/responses"
	"github.com/example/cartline/api/validators"
	orderssvc "github.com/example/cartline/internal/orders"
	"github.com/example/cartline/pkg/enums"
	pkgerrors "github.com/example/cartline/pkg/errors"
	"github.com/example/cartline/pkg/logger"
)

// AdminGetOrder returns any order by code, with its timeline.
func AdminGetOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetByCode(r.Context(), chi.URLParam(r, "orderCode"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminOrderTimeline returns the status history of an order.
func AdminOrderTimeline(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.Timeline(r.Context(), chi.URLParam(r, "orderCode"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTimelineResponse(entries))
	}
}

type changeStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// AdminChangeOrderStatus moves an order through its lifecycle.
func AdminChangeOrderStatus(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload changeStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		next, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order status"))
			return
		}

		order, err := svc.ChangeStatus(r.Context(), orderssvc.ChangeStatusInput{
			Code:    chi.URLParam(r, "orderCode"),
			Next:    next,
			ActorID: actorID(r),
			Note:    payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminDeleteOrder removes an unsettled order and returns its stock.
func AdminDeleteOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "orderCode"), actorID(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminConvertOrderToCOD downgrades a stuck gateway order to cash on delivery.
func AdminConvertOrderToCOD(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.ConvertToCOD(r.Context(), chi.URLParam(r, "orderCode"), actorID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type crmLogRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// AdminAddCRMLog records an agent follow-up on an order.
func AdminAddCRMLog(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload crmLogRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseCRMStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown crm status"))
			return
		}

		if err := svc.AddCRMLog(r.Context(), orderssvc.CRMLogInput{
			Code:    chi.URLParam(r, "orderCode"),
			Status:  status,
			AgentID: actorID(r),
			Note:    payload.Note,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "recorded"})
	}
}

// AdminListCRMLogs returns the agent follow-up history of an order.
func AdminListCRMLogs(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := svc.ListCRMLogs(r.Context(), chi.URLParam(r, "orderCode"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCRMLogsResponse(logs))
	}
}

func actorID(r *http.Request) *uuid.UUID {
	id := middleware.UserIDFromContext(r.Context())
	if id == uuid.Nil {
		return nil
	}
	return &id
}
