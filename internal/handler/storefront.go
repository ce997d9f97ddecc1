package handler

import (
	"net/http"

	"imperio/internal/dto"
	"imperio/internal/model"
	"imperio/internal/service"

	"github.com/gin-gonic/gin"
)

// StorefrontHandler is the public, unauthenticated surface the web menu uses.
type StorefrontHandler struct {
	orders  service.OrderService
	catalog service.CatalogService
}

func NewStorefrontHandler(orders service.OrderService, catalog service.CatalogService) *StorefrontHandler {
	return &StorefrontHandler{orders: orders, catalog: catalog}
}

// Catalog godoc
// @Summary Cardápio público: categorias, produtos disponíveis e bairros atendidos
// @Tags loja
// @Produce json
// @Success 200 {object} dto.CatalogResponse
// @Router /v1/storefront/catalog [get]
func (h *StorefrontHandler) Catalog(c *gin.Context) {
	resp, err := h.catalog.Storefront(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Quote godoc
// @Summary Simula o total do carrinho da loja
// @Tags loja
// @Accept json
// @Produce json
// @Param body body dto.QuoteRequest true "Carrinho"
// @Success 200 {object} dto.QuoteResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/storefront/quote [post]
func (h *StorefrontHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	origin := model.OriginStorefrontPickup
	if req.Zone != nil {
		origin = model.OriginStorefrontDelivery
	}
	quote(c, h.orders, origin, req)
}

// PlaceOrder godoc
// @Summary Envia um pedido de entrega ou retirada
// @Tags loja
// @Accept json
// @Produce json
// @Param body body dto.StorefrontOrderRequest true "Pedido"
// @Success 201 {object} dto.OrderResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/storefront/orders [post]
func (h *StorefrontHandler) PlaceOrder(c *gin.Context) {
	var req dto.StorefrontOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	method, err := paymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	origin := model.OriginStorefrontPickup
	if req.Fulfillment == "delivery" {
		origin = model.OriginStorefrontDelivery
	}
	resp, err := h.orders.Create(c.Request.Context(), service.NewOrder{
		Cart: service.Cart{
			Origin:        origin,
			Items:         cartItems(req.Items),
			PaymentMethod: method,
			Zone:          req.Zone,
		},
		CustomerName:    &req.CustomerName,
		CustomerPhone:   &req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
