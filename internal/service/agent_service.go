package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/model"

	"github.com/rs/zerolog/log"
)

// Tool names as registered with the conversational agent.
const (
	ToolCalculateTotal = "calcular_total_pedido"
	ToolDeliveryFee    = "calcular_taxa_entrega"
	ToolCreateOrder    = "criar_pedido"
)

const genericToolFailure = "Não consegui concluir agora. Tente novamente em instantes."

// Windows are the estimated fulfillment times quoted to customers.
type Windows struct {
	Delivery string
	Pickup   string
}

// AgentService exposes the pricing and ordering operations as agent tools.
// A tool never fails at the transport level for a business reason: the
// outcome is always a ToolResult with a sentence the agent can relay.
type AgentService interface {
	Call(ctx context.Context, tool string, args json.RawMessage) (dto.ToolResult, error)
	CalculateTotal(ctx context.Context, args dto.CalculateTotalArgs) dto.ToolResult
	DeliveryFee(ctx context.Context, args dto.DeliveryFeeArgs) dto.ToolResult
	CreateOrder(ctx context.Context, args dto.CreateOrderArgs) dto.ToolResult
}

type agentService struct {
	orders  OrderService
	catalog CatalogService
	windows Windows
}

func NewAgentService(orders OrderService, catalog CatalogService, windows Windows) AgentService {
	return &agentService{orders: orders, catalog: catalog, windows: windows}
}

// Call decodes args for the named tool. An unknown tool is the only error.
func (s *agentService) Call(ctx context.Context, tool string, args json.RawMessage) (dto.ToolResult, error) {
	switch tool {
	case ToolCalculateTotal:
		var a dto.CalculateTotalArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return badArgs(tool, err), nil
		}
		return s.CalculateTotal(ctx, a), nil
	case ToolDeliveryFee:
		var a dto.DeliveryFeeArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return badArgs(tool, err), nil
		}
		return s.DeliveryFee(ctx, a), nil
	case ToolCreateOrder:
		var a dto.CreateOrderArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return badArgs(tool, err), nil
		}
		return s.CreateOrder(ctx, a), nil
	}
	return dto.ToolResult{}, fmt.Errorf("tool %q: %w", tool, apierror.ErrNotFound)
}

func (s *agentService) CalculateTotal(ctx context.Context, args dto.CalculateTotalArgs) dto.ToolResult {
	method := model.PaymentCash
	if args.PaymentMethod != nil && strings.TrimSpace(*args.PaymentMethod) != "" {
		m, ok := model.ParsePaymentMethod(*args.PaymentMethod)
		if !ok {
			return unknownMethod(*args.PaymentMethod)
		}
		method = m
	}
	items, res, ok := s.resolve(ctx, args.Items)
	if !ok {
		return res
	}

	cart := Cart{Origin: model.OriginConversational, Items: items, PaymentMethod: method, Zone: trimmedOrNil(args.Zone)}
	q, err := s.orders.Quote(ctx, cart)
	if err != nil {
		return failed(ToolCalculateTotal, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Subtotal %s", apierror.BRL(q.Subtotal))
	if q.PaymentDiscount.IsPositive() {
		fmt.Fprintf(&b, ", desconto de %s%% no pix -%s", q.PaymentDiscountPct.String(), apierror.BRL(q.PaymentDiscount))
	}
	if q.Zone != nil {
		fmt.Fprintf(&b, ", taxa de entrega %s", apierror.BRL(q.DeliveryFee))
	}
	fmt.Fprintf(&b, ". Total: %s.", apierror.BRL(q.Total))

	return dto.ToolResult{
		OK:      true,
		Message: b.String(),
		Data: dto.TotalBreakdown{
			Subtotal:        q.Subtotal,
			Discount:        q.ManualDiscount,
			PaymentDiscount: q.PaymentDiscount,
			DeliveryFee:     q.DeliveryFee,
			Total:           q.Total,
		},
	}
}

// DeliveryFee answers ok=true for an unserved zone too; atende=false is an
// answer, not a failure.
func (s *agentService) DeliveryFee(ctx context.Context, args dto.DeliveryFeeArgs) dto.ToolResult {
	zone := strings.TrimSpace(args.Zone)
	if zone == "" {
		return dto.ToolResult{Message: "Informe o bairro para calcular a taxa de entrega."}
	}
	fee, served, err := s.catalog.ZoneFee(ctx, zone)
	if err != nil {
		return failed(ToolDeliveryFee, err)
	}
	if !served {
		return dto.ToolResult{
			OK:      true,
			Message: fmt.Sprintf("Não entregamos em %s. O pedido pode ser retirado no balcão.", zone),
			Data:    dto.DeliveryFeeResult{Serves: false, Zone: zone, Fee: fee},
		}
	}
	return dto.ToolResult{
		OK:      true,
		Message: fmt.Sprintf("Entregamos em %s. Taxa de entrega: %s.", zone, apierror.BRL(fee)),
		Data:    dto.DeliveryFeeResult{Serves: true, Zone: zone, Fee: fee},
	}
}

func (s *agentService) CreateOrder(ctx context.Context, args dto.CreateOrderArgs) dto.ToolResult {
	method, ok := model.ParsePaymentMethod(args.PaymentMethod)
	if !ok {
		return unknownMethod(args.PaymentMethod)
	}
	zone := trimmedOrNil(args.Zone)
	address := trimmedOrNil(args.Address)
	if zone != nil && address == nil {
		return dto.ToolResult{Message: "Para entrega, informe também o endereço completo."}
	}
	items, res, ok := s.resolve(ctx, args.Items)
	if !ok {
		return res
	}

	o, err := s.orders.Create(ctx, NewOrder{
		Cart: Cart{
			Origin:        model.OriginConversational,
			Items:         items,
			PaymentMethod: method,
			Zone:          zone,
		},
		CustomerName:    &args.Name,
		CustomerPhone:   &args.Phone,
		DeliveryAddress: address,
		Notes:           args.Notes,
	})
	if err != nil {
		return failed(ToolCreateOrder, err)
	}

	window := s.windows.Pickup
	how := "retirada no balcão"
	if zone != nil {
		window = s.windows.Delivery
		how = "entrega"
	}
	return dto.ToolResult{
		OK:      true,
		Message: fmt.Sprintf("Pedido #%d confirmado para %s. Total: %s. Previsão: %s.", o.ID, how, apierror.BRL(o.Total), window),
		Data:    dto.OrderCreatedResult{OrderID: o.ID, Total: o.Total, EstimatedWindow: window},
	}
}

// resolve maps item names to catalog ids. ok=false carries the result to
// return to the agent.
func (s *agentService) resolve(ctx context.Context, items dto.AgentItems) ([]CartItem, dto.ToolResult, bool) {
	if len(items) == 0 {
		return nil, dto.ToolResult{Message: "Nenhum item informado. Diga o que o cliente quer pedir."}, false
	}
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		p, err := s.catalog.ResolveByName(ctx, it.Name)
		if err != nil {
			return nil, failed("resolve", err), false
		}
		out = append(out, CartItem{ProductID: p.ID, Quantity: it.Quantity})
	}
	return out, dto.ToolResult{}, true
}

func failed(tool string, err error) dto.ToolResult {
	_, code, msg, ok := apierror.Describe(err)
	if !ok {
		log.Error().Err(err).Str("tool", tool).Msg("agent: tool failed")
		return dto.ToolResult{Message: genericToolFailure}
	}
	log.Info().Str("tool", tool).Str("code", code).Msg("agent: tool rejected")
	return dto.ToolResult{Message: msg}
}

func badArgs(tool string, err error) dto.ToolResult {
	log.Warn().Err(err).Str("tool", tool).Msg("agent: malformed arguments")
	return dto.ToolResult{Message: "Não entendi os dados do pedido. Envie os itens como lista de {nome, quantidade}."}
}

func unknownMethod(s string) dto.ToolResult {
	return dto.ToolResult{Message: fmt.Sprintf("Forma de pagamento %q não reconhecida. Aceitamos dinheiro, pix, débito ou crédito.", s)}
}
