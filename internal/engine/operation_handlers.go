package engine

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mesworks/shopsched/internal/services/operation"
	"github.com/mesworks/shopsched/internal/services/operationtype"
)

func (e *Engine) listOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := e.services.Operations.GetEnabled(r.Context())
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	resp := make([]OperationResponse, 0, len(ops))
	for i := range ops {
		resp = append(resp, toOperationResponse(&ops[i]))
	}
	e.writeJSONResponse(w, http.StatusOK, resp)
}

func (e *Engine) getOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	o, err := e.services.Operations.GetByID(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toOperationResponse(o))
}

func (e *Engine) createOperation(w http.ResponseWriter, r *http.Request) {
	var req OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	o, err := e.services.Operations.Create(r.Context(), operation.Input{
		Name:                req.Name,
		SetupTimeMinutes:    req.SetupTimeMinutes,
		CapacityTonsPerHour: req.CapacityTonsPerHour,
		OperationTypeID:     req.OperationTypeID,
		WorkCenterID:        req.WorkCenterID,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/operations/%d", o.ID))
	e.writeJSONResponse(w, http.StatusCreated, toOperationResponse(o))
}

func (e *Engine) updateOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	var req OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	o, err := e.services.Operations.Update(r.Context(), id, operation.Input{
		Name:                req.Name,
		SetupTimeMinutes:    req.SetupTimeMinutes,
		CapacityTonsPerHour: req.CapacityTonsPerHour,
		OperationTypeID:     req.OperationTypeID,
		WorkCenterID:        req.WorkCenterID,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toOperationResponse(o))
}

func (e *Engine) deleteOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	if err := e.services.Operations.Delete(r.Context(), id); err != nil {
		e.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *Engine) listOperationTypes(w http.ResponseWriter, r *http.Request) {
	types, err := e.services.OperationTypes.GetEnabled(r.Context())
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	resp := make([]OperationTypeResponse, 0, len(types))
	for i := range types {
		resp = append(resp, toOperationTypeResponse(&types[i]))
	}
	e.writeJSONResponse(w, http.StatusOK, resp)
}

func (e *Engine) getOperationType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	t, err := e.services.OperationTypes.GetByID(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toOperationTypeResponse(t))
}

func (e *Engine) createOperationType(w http.ResponseWriter, r *http.Request) {
	var req OperationTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	t, err := e.services.OperationTypes.Create(r.Context(), operationtype.Input{Name: req.Name})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/operationtypes/%d", t.ID))
	e.writeJSONResponse(w, http.StatusCreated, toOperationTypeResponse(t))
}

func (e *Engine) updateOperationType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	var req OperationTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	t, err := e.services.OperationTypes.Update(r.Context(), id, operationtype.Input{Name: req.Name})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toOperationTypeResponse(t))
}

func (e *Engine) deleteOperationType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	if err := e.services.OperationTypes.Delete(r.Context(), id); err != nil {
		e.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
