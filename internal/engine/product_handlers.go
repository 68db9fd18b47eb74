package engine

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mesworks/shopsched/internal/services/product"
)

func (e *Engine) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := e.services.Products.GetEnabled(r.Context())
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	resp := make([]ProductResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	e.writeJSONResponse(w, http.StatusOK, resp)
}

func (e *Engine) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	p, err := e.services.Products.GetByID(r.Context(), id)
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toProductResponse(p))
}

func (e *Engine) createProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	p, err := e.services.Products.Create(r.Context(), product.Input{
		Name:             req.Name,
		UnitPrice:        req.UnitPrice,
		ProfitMargin:     req.ProfitMargin,
		Priority:         req.Priority,
		PenaltyCost:      req.PenaltyCost,
		OperationTypeIDs: req.OperationTypeIDs,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/products/%d", p.ID))
	e.writeJSONResponse(w, http.StatusCreated, toProductResponse(p))
}

func (e *Engine) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		e.writeBadRequest(w, "invalid request body")
		return
	}

	p, err := e.services.Products.Update(r.Context(), id, product.Input{
		Name:             req.Name,
		UnitPrice:        req.UnitPrice,
		ProfitMargin:     req.ProfitMargin,
		Priority:         req.Priority,
		PenaltyCost:      req.PenaltyCost,
		OperationTypeIDs: req.OperationTypeIDs,
	})
	if err != nil {
		e.writeServiceError(w, err)
		return
	}
	e.writeJSONResponse(w, http.StatusOK, toProductResponse(p))
}

func (e *Engine) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		e.writeBadRequest(w, err.Error())
		return
	}

	if err := e.services.Products.Delete(r.Context(), id); err != nil {
		e.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
