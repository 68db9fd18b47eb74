package engine

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mesworks/shopsched/internal/services/productionorder"
	"github.com/mesworks/shopsched/internal/services/surplus"
)

func orderInputFromRequest(req ProductionOrderRequest) productionorder.Input {
	items := make([]productionorder.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, productionorder.ItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	return productionorder.Input{
		OrderNumber:   req.OrderNumber,
		EarliestStart: req.EarliestStart,
		Deadline:      req.Deadline,
		Items:         items,
	}
}

func (e *Engine) listProductionOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := e.services.ProductionOrders.GetEnabled(r.Context())
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	resp := make([]ProductionOrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toProductionOrderResponse(&orders[i]))
	}
	e.writeJSONResponse(w, http.StatusOK, resp)
}

func (e *Engine) getProductionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	o, err := e.services.ProductionOrders.GetByID(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toProductionOrderResponse(o))
}

func (e *Engine) createProductionOrder(w http.ResponseWriter, r *http.Request) {
	var req ProductionOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	o, err := e.services.ProductionOrders.Create(r.Context(), orderInputFromRequest(req))
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/productionorders/%d", o.ID))
	e.writeJSONResponse(w, http.StatusCreated, toProductionOrderResponse(o))
}

func (e *Engine) updateProductionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	var req ProductionOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	o, err := e.services.ProductionOrders.Update(r.Context(), id, orderInputFromRequest(req))
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toProductionOrderResponse(o))
}

func (e *Engine) deleteProductionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	if err := e.services.ProductionOrders.Delete(r.Context(), id); err != nil {
		e.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *Engine) listSurplus(w http.ResponseWriter, r *http.Request) {
	records, err := e.services.Surplus.GetEnabled(r.Context())
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	resp := make([]SurplusResponse, 0, len(records))
	for i := range records {
		resp = append(resp, toSurplusResponse(&records[i]))
	}
	e.writeJSONResponse(w, http.StatusOK, resp)
}

func (e *Engine) getSurplus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	rec, err := e.services.Surplus.GetByID(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toSurplusResponse(rec))
}

func (e *Engine) createSurplus(w http.ResponseWriter, r *http.Request) {
	var req SurplusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	rec, err := e.services.Surplus.Create(r.Context(), surplus.Input{
		ProductID:    req.ProductID,
		WorkCenterID: req.WorkCenterID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/surplus/%d", rec.ID))
	e.writeJSONResponse(w, http.StatusCreated, toSurplusResponse(rec))
}

func (e *Engine) updateSurplus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	var req SurplusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	rec, err := e.services.Surplus.Update(r.Context(), id, surplus.Input{
		ProductID:    req.ProductID,
		WorkCenterID: req.WorkCenterID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toSurplusResponse(rec))
}

func (e *Engine) deleteSurplus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	if err := e.services.Surplus.Delete(r.Context(), id); err != nil {
		e.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
