package engine

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mesworks/shopsched/internal/services/workcenter"
)

func (e *Engine) listWorkCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := e.services.WorkCenters.GetEnabled(r.Context())
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	resp := make([]WorkCenterResponse, 0, len(centers))
	for i := range centers {
		resp = append(resp, toWorkCenterResponse(&centers[i]))
	}
	e.writeJSONResponse(w, http.StatusOK, resp)
}

func (e *Engine) getWorkCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	wc, err := e.services.WorkCenters.GetByID(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toWorkCenterResponse(wc))
}

func (e *Engine) createWorkCenter(w http.ResponseWriter, r *http.Request) {
	var req WorkCenterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	wc, err := e.services.WorkCenters.Create(r.Context(), workcenter.Input{
		Name:             req.Name,
		OptimalBatchSize: req.OptimalBatchSize,
		LineID:           req.LineID,
		OperationTypeIDs: req.OperationTypeIDs,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/workcenters/%d", wc.ID))
	e.writeJSONResponse(w, http.StatusCreated, toWorkCenterResponse(wc))
}

func (e *Engine) updateWorkCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	var req WorkCenterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	wc, err := e.services.WorkCenters.Update(r.Context(), id, workcenter.Input{
		Name:             req.Name,
		OptimalBatchSize: req.OptimalBatchSize,
		LineID:           req.LineID,
		OperationTypeIDs: req.OperationTypeIDs,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toWorkCenterResponse(wc))
}

func (e *Engine) deleteWorkCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	if err := e.services.WorkCenters.Delete(r.Context(), id); err != nil {
		e.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
