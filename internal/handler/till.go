package handler

import (
	"net/http"

	"imperio/internal/dto"
	"imperio/internal/infra"
	"imperio/internal/model"
	"imperio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TillHandler struct {
	till        service.TillService
	orders      service.OrderService
	storeName   string
	storagePath string
}

func NewTillHandler(till service.TillService, orders service.OrderService, storeName, storagePath string) *TillHandler {
	return &TillHandler{till: till, orders: orders, storeName: storeName, storagePath: storagePath}
}

// Open godoc
// @Summary Abre uma nova sessão de caixa
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenTillRequest true "Fundo de troco"
// @Success 201 {object} dto.TillReportResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/till/open [post]
func (h *TillHandler) Open(c *gin.Context) {
	var req dto.OpenTillRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.till.Open(c.Request.Context(), operatorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Current godoc
// @Summary Sessão de caixa aberta, com saldo parcial
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.TillReportResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/till/current [get]
func (h *TillHandler) Current(c *gin.Context) {
	resp, err := h.till.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordMovement godoc
// @Summary Registra sangria ou suprimento
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da sessão"
// @Param body body dto.MovementRequest true "Movimento"
// @Success 201 {object} dto.MovementResponse
// @Failure 400 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/till/{id}/movements [post]
func (h *TillHandler) RecordMovement(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.MovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.till.RecordMovement(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Movements godoc
// @Summary Lista o livro de movimentos da sessão
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da sessão"
// @Success 200 {array} dto.MovementResponse
// @Router /v1/till/{id}/movements [get]
func (h *TillHandler) Movements(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.till.Movements(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary Fecha a sessão com a contagem cega da gaveta
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da sessão"
// @Param body body dto.CloseTillRequest true "Valor declarado"
// @Success 200 {object} dto.TillReportResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/till/{id}/close [post]
func (h *TillHandler) Close(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseTillRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.till.Close(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Relatório de fechamento (JSON ou PDF com ?format=pdf)
// @Tags caixa
// @Produce json
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "ID da sessão"
// @Param format query string false "pdf"
// @Success 200 {object} dto.TillReportResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/till/{id}/report [get]
func (h *TillHandler) Report(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	report, err := h.till.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if c.Query("format") != "pdf" {
		c.JSON(http.StatusOK, report)
		return
	}
	path, err := infra.GenerateTillReportPDF(report, h.storeName, h.storagePath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(path, "caixa_"+report.SessionID+".pdf")
}

// History godoc
// @Summary Histórico de sessões de caixa
// @Tags caixa
// @Produce json
// @Security BearerAuth
// @Param page query int false "Página"
// @Param limit query int false "Itens por página"
// @Success 200 {object} dto.TillHistoryResponse
// @Router /v1/till/history [get]
func (h *TillHandler) History(c *gin.Context) {
	var filter dto.TillHistoryFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.till.History(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Checkout godoc
// @Summary Venda de balcão paga no caixa
// @Tags caixa
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CheckoutRequest true "Itens e pagamento"
// @Success 201 {object} dto.OrderResponse
// @Failure 400 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/till/checkout [post]
func (h *TillHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if !bindAndValidate(c, &req) {
		return
	}
	method, err := paymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	in := service.NewOrder{
		Cart: service.Cart{
			Origin:        model.OriginTillSale,
			Items:         cartItems(req.Items),
			PaymentMethod: method,
			Discount:      req.Discount,
		},
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
	}
	if req.SessionID != nil {
		sid := uuid.MustParse(*req.SessionID)
		in.TillSessionID = &sid
	}
	resp, err := h.orders.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
