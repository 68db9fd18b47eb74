package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mesworks/shopsched/internal/services/line"
)

// pathID extracts the numeric {id} path variable
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

func (e *Engine) listLines(w http.ResponseWriter, r *http.Request) {
	lines, err := e.services.Lines.GetEnabled(r.Context())
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	resp := make([]LineResponse, 0, len(lines))
	for i := range lines {
		resp = append(resp, toLineResponse(&lines[i]))
	}
	e.writeJSONResponse(w, http.StatusOK, resp)
}

func (e *Engine) getLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	l, err := e.services.Lines.GetByID(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toLineResponse(l))
}

func (e *Engine) createLine(w http.ResponseWriter, r *http.Request) {
	var req LineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	l, err := e.services.Lines.Create(r.Context(), line.Input{
		Name:          req.Name,
		WorkCenterIDs: req.WorkCenterIDs,
		ProductIDs:    req.ProductIDs,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/lines/%d", l.ID))
	e.writeJSONResponse(w, http.StatusCreated, toLineResponse(l))
}

func (e *Engine) updateLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	var req LineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	l, err := e.services.Lines.Update(r.Context(), id, line.Input{
		Name:          req.Name,
		WorkCenterIDs: req.WorkCenterIDs,
		ProductIDs:    req.ProductIDs,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toLineResponse(l))
}

func (e *Engine) deleteLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	if err := e.services.Lines.Delete(r.Context(), id); err != nil {
		e.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
