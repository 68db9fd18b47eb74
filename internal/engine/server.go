package engine

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router builds the full HTTP surface
func (e *Engine) Router() *mux.Router {
	router := mux.NewRouter()

	router.Use(e.corsMiddleware)
	router.Use(e.loggingMiddleware)
	router.Use(e.authMiddleware)

	router.HandleFunc("/health", e.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	registerResource(api, "/lines", resourceHandlers{
		list:   e.listLines,
		get:    e.getLine,
		create: e.createLine,
		update: e.updateLine,
		delete: e.deleteLine,
	})
	registerResource(api, "/workcenters", resourceHandlers{
		list:   e.listWorkCenters,
		get:    e.getWorkCenter,
		create: e.createWorkCenter,
		update: e.updateWorkCenter,
		delete: e.deleteWorkCenter,
	})
	registerResource(api, "/products", resourceHandlers{
		list:   e.listProducts,
		get:    e.getProduct,
		create: e.createProduct,
		update: e.updateProduct,
		delete: e.deleteProduct,
	})
	registerResource(api, "/operations", resourceHandlers{
		list:   e.listOperations,
		get:    e.getOperation,
		create: e.createOperation,
		update: e.updateOperation,
		delete: e.deleteOperation,
	})
	registerResource(api, "/operationtypes", resourceHandlers{
		list:   e.listOperationTypes,
		get:    e.getOperationType,
		create: e.createOperationType,
		update: e.updateOperationType,
		delete: e.deleteOperationType,
	})
	registerResource(api, "/productionorders", resourceHandlers{
		list:   e.listProductionOrders,
		get:    e.getProductionOrder,
		create: e.createProductionOrder,
		update: e.updateProductionOrder,
		delete: e.deleteProductionOrder,
	})
	registerResource(api, "/surplus", resourceHandlers{
		list:   e.listSurplus,
		get:    e.getSurplus,
		create: e.createSurplus,
		update: e.updateSurplus,
		delete: e.deleteSurplus,
	})

	authAPI := api.PathPrefix("/auth").Subrouter()
	authAPI.HandleFunc("/login", e.handleLogin).Methods(http.MethodPost)
	authAPI.HandleFunc("/register", e.handleRegister).Methods(http.MethodPost)
	authAPI.HandleFunc("/assign-role", e.requireRole(e.handleAssignRole, "Admin", "Developer")).Methods(http.MethodPost)
	authAPI.HandleFunc("/remove-role", e.requireRole(e.handleRemoveRole, "Admin", "Developer")).Methods(http.MethodDelete)
	authAPI.HandleFunc("/add-claim", e.requireRole(e.handleAddClaim, "Admin", "Developer")).Methods(http.MethodPost)
	authAPI.HandleFunc("/remove-claim", e.requireRole(e.handleRemoveClaim, "Admin", "Developer")).Methods(http.MethodDelete)
	authAPI.HandleFunc("/update-permissions", e.requireRole(e.handleUpdatePermissions, "Admin", "Developer")).Methods(http.MethodPost)
	authAPI.HandleFunc("/users/{userId}", e.requireRole(e.handleDeleteUser, "Admin", "Developer")).Methods(http.MethodDelete)
	authAPI.HandleFunc("/user-roles/{userId}", e.requireRole(e.handleGetUserRoles, "Admin", "Developer")).Methods(http.MethodGet)
	authAPI.HandleFunc("/user-claims/{userId}", e.requireRole(e.handleGetUserClaims, "Admin", "Developer")).Methods(http.MethodGet)
	authAPI.HandleFunc("/my-roles", e.handleMyRoles).Methods(http.MethodGet)
	authAPI.HandleFunc("/my-claims", e.handleMyClaims).Methods(http.MethodGet)

	return router
}

type resourceHandlers struct {
	list   http.HandlerFunc
	get    http.HandlerFunc
	create http.HandlerFunc
	update http.HandlerFunc
	delete http.HandlerFunc
}

func registerResource(api *mux.Router, path string, h resourceHandlers) {
	api.HandleFunc(path, h.list).Methods(http.MethodGet)
	api.HandleFunc(path, h.create).Methods(http.MethodPost)
	api.HandleFunc(path+"/{id}", h.get).Methods(http.MethodGet)
	api.HandleFunc(path+"/{id}", h.update).Methods(http.MethodPut)
	api.HandleFunc(path+"/{id}", h.delete).Methods(http.MethodDelete)
}

func (e *Engine) handleHealth(w http.ResponseWriter, r *http.Request) {
	e.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}
