package handler

import (
	"fmt"
	"net/http"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/model"
	"imperio/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderHandler serves the staff side of orders: the live board, status
// changes, tables and the kitchen queue.
type OrderHandler struct{ orders service.OrderService }

func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// List godoc
// @Summary Lista pedidos (ativos por padrão, status=all para todos)
// @Tags pedidos
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status ou all"
// @Param origin query string false "Origem"
// @Param date query string false "YYYY-MM-DD"
// @Success 200 {object} dto.OrderListResponse
// @Router /v1/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	var filter dto.OrderFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Detalhe de um pedido
// @Tags pedidos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Número do pedido"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	resp, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Quote godoc
// @Summary Calcula o total de um carrinho sem gravar nada
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.QuoteRequest true "Carrinho"
// @Success 200 {object} dto.QuoteResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/orders/quote [post]
func (h *OrderHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	origin := model.Origin(req.Origin)
	if req.Origin == "" {
		origin = model.OriginTillSale
	}
	if !origin.Valid() {
		respondError(c, fmt.Errorf("%w: origem %q desconhecida", apierror.ErrInvalidInput, req.Origin))
		return
	}
	quote(c, h.orders, origin, req)
}

// Advance godoc
// @Summary Avança o status do pedido
// @Description expected_status protege contra dois painéis movendo o mesmo pedido.
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Número do pedido"
// @Param body body dto.AdvanceOrderRequest true "Status esperado e destino"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/status [patch]
func (h *OrderHandler) Advance(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req dto.AdvanceOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	expected := model.OrderStatus(req.ExpectedStatus)
	if !expected.Valid() {
		respondError(c, fmt.Errorf("%w: status %q desconhecido", apierror.ErrInvalidInput, req.ExpectedStatus))
		return
	}
	var target *model.OrderStatus
	if req.TargetStatus != nil {
		t := model.OrderStatus(*req.TargetStatus)
		if !t.Valid() {
			respondError(c, fmt.Errorf("%w: status %q desconhecido", apierror.ErrInvalidInput, *req.TargetStatus))
			return
		}
		target = &t
	}
	resp, err := h.orders.Advance(c.Request.Context(), id, expected, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary Cancela um pedido pendente ou em preparo
// @Tags pedidos
// @Produce json
// @Security BearerAuth
// @Param id path int true "Número do pedido"
// @Success 200 {object} dto.OrderResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	resp, err := h.orders.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Tables godoc
// @Summary Mapa de mesas
// @Tags mesas
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.TableResponse
// @Router /v1/tables [get]
func (h *OrderHandler) Tables(c *gin.Context) {
	resp, err := h.orders.Tables(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TableTab godoc
// @Summary Comanda consolidada da mesa
// @Tags mesas
// @Produce json
// @Security BearerAuth
// @Param number path int true "Número da mesa"
// @Success 200 {object} dto.TableTabResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/tables/{number}/tab [get]
func (h *OrderHandler) TableTab(c *gin.Context) {
	n, ok := paramInt(c, "number")
	if !ok {
		return
	}
	resp, err := h.orders.TableTab(c.Request.Context(), int(n))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateTableOrder godoc
// @Summary Lança um pedido na mesa (abre a comanda se estiver livre)
// @Tags mesas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path int true "Número da mesa"
// @Param body body dto.TableOrderRequest true "Itens"
// @Success 201 {object} dto.OrderResponse
// @Router /v1/tables/{number}/orders [post]
func (h *OrderHandler) CreateTableOrder(c *gin.Context) {
	n, ok := paramInt(c, "number")
	if !ok {
		return
	}
	var req dto.TableOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	method, err := paymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	table := int(n)
	resp, err := h.orders.Create(c.Request.Context(), service.NewOrder{
		Cart: service.Cart{
			Origin:        model.OriginTable,
			Items:         cartItems(req.Items),
			PaymentMethod: method,
		},
		TableNumber: &table,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CloseTable godoc
// @Summary Fecha a comanda e libera a mesa
// @Tags mesas
// @Security BearerAuth
// @Param number path int true "Número da mesa"
// @Success 204
// @Router /v1/tables/{number}/close [post]
func (h *OrderHandler) CloseTable(c *gin.Context) {
	n, ok := paramInt(c, "number")
	if !ok {
		return
	}
	if err := h.orders.CloseTable(c.Request.Context(), int(n)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// KitchenTickets godoc
// @Summary Fila da cozinha
// @Tags cozinha
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.KitchenTicketResponse
// @Router /v1/kitchen/tickets [get]
func (h *OrderHandler) KitchenTickets(c *gin.Context) {
	resp, err := h.orders.KitchenTickets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func quote(c *gin.Context, orders service.OrderService, origin model.Origin, req dto.QuoteRequest) {
	method, err := paymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	q, err := orders.Quote(c.Request.Context(), service.Cart{
		Origin:        origin,
		Items:         cartItems(req.Items),
		PaymentMethod: method,
		Discount:      req.Discount,
		Zone:          req.Zone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToQuoteResponse(q))
}
