// Copyright (c) 2026 Atrium. All rights reserved.

package shop

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/middleware"
	requestutil "github.com/atriumhq/atrium/internal/platform/request"
	"github.com/atriumhq/atrium/internal/platform/respond"
	"github.com/atriumhq/atrium/internal/platform/validate"
	"github.com/atriumhq/atrium/pkg/pagination"
)

// Handler implements the shop HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new shop [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the storefront and order endpoints.
//
// # Endpoints
//   - GET  /products        : Public storefront listing (active only).
//   - GET  /products/{id}   : Public product lookup.
//   - POST /orders          : Reserves an order (auth).
//   - POST /orders/confirm  : Reconciles the payment transaction (auth).
//   - GET  /orders          : Lists the caller's orders (auth).
//   - GET  /orders/{id}     : Single order lookup (auth, own orders only).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/products", handler.listProducts)
	router.Get("/products/{id}", handler.getProduct)

	router.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth)
		authed.Post("/orders", handler.createOrder)
		authed.Post("/orders/confirm", handler.confirmOrder)
		authed.Get("/orders", handler.listMyOrders)
		authed.Get("/orders/{id}", handler.getOrder)
	})

	return router
}

// AdminRoutes returns the order-management and catalog endpoints. The caller
// mounts these behind the admin session middleware.
//
// # Endpoints
//   - GET    /orders         : Lists all orders, optionally by status.
//   - POST   /order/status   : Reconciles an on-chain status transition.
//   - POST   /products       : Creates a product.
//   - PUT    /products/{id}  : Updates a product.
//   - DELETE /products/{id}  : Deletes a product.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()

	router.Get("/orders", handler.adminListOrders)
	router.Post("/order/status", handler.updateOrderStatus)
	router.Post("/products", handler.createProduct)
	router.Put("/products/{id}", handler.updateProduct)
	router.Delete("/products/{id}", handler.deleteProduct)

	return router
}

// # Storefront

// listProducts handles GET /api/v1/shop/products requests.
func (handler *Handler) listProducts(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	products, total, err := handler.service.ListProducts(request.Context(), true, params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, products, pagination.NewMeta(params.Page, params.Limit, total))
}

// getProduct handles GET /api/v1/shop/products/{id} requests.
func (handler *Handler) getProduct(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	product, err := handler.service.GetProduct(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !product.Active {
		respond.Error(writer, request, apperr.NotFound("Product"))
		return
	}

	respond.OK(writer, product)
}

// # Orders

// createOrderRequest is the JSON payload for order reservation.
type createOrderRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// createOrder handles POST /api/v1/shop/orders requests.
func (handler *Handler) createOrder(writer http.ResponseWriter, request *http.Request) {
	buyerUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload createOrderRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Custom("product_id", payload.ProductID <= 0, "must be a positive product ID").
		Range("quantity", payload.Quantity, 1, MaxOrderQuantity)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	order, err := handler.service.CreateOrder(request.Context(), CreateOrderInput{
		BuyerUID:  buyerUID,
		ProductID: payload.ProductID,
		Quantity:  payload.Quantity,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, order)
}

// confirmOrderRequest is the JSON payload for payment confirmation.
type confirmOrderRequest struct {
	OrderID        int64  `json:"order_id"`
	TxHash         string `json:"tx_hash"`
	OnchainOrderID string `json:"onchain_order_id"`
}

// confirmOrder handles POST /api/v1/shop/orders/confirm requests.
func (handler *Handler) confirmOrder(writer http.ResponseWriter, request *http.Request) {
	buyerUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload confirmOrderRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Custom("order_id", payload.OrderID <= 0, "must be a positive order ID").
		Required("tx_hash", payload.TxHash).
		TxHash("tx_hash", payload.TxHash).
		Required("onchain_order_id", payload.OnchainOrderID)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	order, err := handler.service.Confirm(request.Context(), ConfirmInput{
		BuyerUID:       buyerUID,
		OrderID:        payload.OrderID,
		TxHash:         payload.TxHash,
		OnchainOrderID: payload.OnchainOrderID,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, order)
}

// listMyOrders handles GET /api/v1/shop/orders requests.
func (handler *Handler) listMyOrders(writer http.ResponseWriter, request *http.Request) {
	buyerUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)

	orders, total, err := handler.service.ListMyOrders(request.Context(), buyerUID, params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, orders, pagination.NewMeta(params.Page, params.Limit, total))
}

// getOrder handles GET /api/v1/shop/orders/{id} requests.
func (handler *Handler) getOrder(writer http.ResponseWriter, request *http.Request) {
	buyerUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	order, err := handler.service.GetOrder(request.Context(), id, buyerUID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, order)
}

// # Admin

// adminListOrders handles GET /api/v1/admin/shop/orders requests.
func (handler *Handler) adminListOrders(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)
	status := OrderStatus(request.URL.Query().Get("status"))

	orders, total, err := handler.service.ListOrders(request.Context(), status, params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, orders, pagination.NewMeta(params.Page, params.Limit, total))
}

// updateStatusRequest is the JSON payload for admin status reconciliation.
type updateStatusRequest struct {
	OrderID        int64   `json:"order_id"`
	TxHash         string  `json:"tx_hash"`
	Status         string  `json:"status"`
	Note           *string `json:"note"`
	OnchainOrderID string  `json:"onchain_order_id"`
}

// updateOrderStatus handles POST /api/v1/admin/shop/order/status requests.
func (handler *Handler) updateOrderStatus(writer http.ResponseWriter, request *http.Request) {
	var payload updateStatusRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Custom("order_id", payload.OrderID <= 0, "must be a positive order ID").
		Required("tx_hash", payload.TxHash).
		TxHash("tx_hash", payload.TxHash).
		Required("status", payload.Status)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	order, err := handler.service.UpdateStatus(request.Context(), UpdateStatusInput{
		OrderID:        payload.OrderID,
		TxHash:         payload.TxHash,
		Status:         OrderStatus(payload.Status),
		Note:           payload.Note,
		OnchainOrderID: payload.OnchainOrderID,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, order)
}

// productRequest is the JSON payload for product create and update.
type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceWei    string `json:"price_wei"`
	Stock       int    `json:"stock"`
	OnchainSKU  string `json:"onchain_sku"`
	Active      bool   `json:"active"`
}

func (payload productRequest) validate() error {
	validator := &validate.Validator{}
	return validator.Required("name", payload.Name).
		MaxLen("name", payload.Name, MaxProductNameLength).
		Required("price_wei", payload.PriceWei).
		Custom("stock", payload.Stock < 0, "must not be negative").
		Required("onchain_sku", payload.OnchainSKU).
		Err()
}

// createProduct handles POST /api/v1/admin/shop/products requests.
func (handler *Handler) createProduct(writer http.ResponseWriter, request *http.Request) {
	var payload productRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := payload.validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	product := &Product{
		Name:        payload.Name,
		Description: payload.Description,
		PriceWei:    payload.PriceWei,
		Stock:       payload.Stock,
		OnchainSKU:  payload.OnchainSKU,
		Active:      payload.Active,
	}

	if err := handler.service.CreateProduct(request.Context(), product); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, product)
}

// updateProduct handles PUT /api/v1/admin/shop/products/{id} requests.
func (handler *Handler) updateProduct(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload productRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := payload.validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	product, err := handler.service.GetProduct(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	product.Name = payload.Name
	product.Description = payload.Description
	product.PriceWei = payload.PriceWei
	product.Stock = payload.Stock
	product.OnchainSKU = payload.OnchainSKU
	product.Active = payload.Active

	if err := handler.service.UpdateProduct(request.Context(), product); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, product)
}

// deleteProduct handles DELETE /api/v1/admin/shop/products/{id} requests.
func (handler *Handler) deleteProduct(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.DeleteProduct(request.Context(), id); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func pathID(request *http.Request) (int64, error) {
	id, err := strconv.ParseInt(requestutil.Param(request, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationError("id must be a positive integer")
	}
	return id, nil
}
