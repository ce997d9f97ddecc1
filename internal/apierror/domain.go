package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Domain error taxonomy. None of these are retried: each reflects real-world
// state that the operator or the agent has to act on.
var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrUnserviceableZone  = errors.New("unserviceable zone")
	ErrBelowMinimumOrder  = errors.New("below minimum order")
	ErrSessionAlreadyOpen = errors.New("till session already open")
	ErrSessionNotOpen     = errors.New("till session not open")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStaleStatus        = errors.New("stale status")
	ErrNotFound           = errors.New("not found")
	ErrUnknownProduct     = errors.New("unknown product")
	ErrNotesRequired      = errors.New("notes required")
	ErrInvalidInput       = errors.New("invalid input")
)

// BelowMinimumOrderError carries how much is missing to reach the minimum.
type BelowMinimumOrderError struct {
	Minimum   decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *BelowMinimumOrderError) Error() string {
	return fmt.Sprintf("below minimum order of %s: short by %s", e.Minimum.StringFixed(2), e.Shortfall.StringFixed(2))
}

func (e *BelowMinimumOrderError) Is(target error) bool { return target == ErrBelowMinimumOrder }

// ZoneError names the zone that could not be served.
type ZoneError struct{ Zone string }

func (e *ZoneError) Error() string { return fmt.Sprintf("unserviceable zone %q", e.Zone) }

func (e *ZoneError) Is(target error) bool { return target == ErrUnserviceableZone }

// ProductError names the product that could not be resolved or sold.
type ProductError struct {
	Name        string
	Unavailable bool
}

func (e *ProductError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("product %q unavailable", e.Name)
	}
	return fmt.Sprintf("unknown product %q", e.Name)
}

func (e *ProductError) Is(target error) bool { return target == ErrUnknownProduct }

// StaleStatusError reports the status the store actually holds.
type StaleStatusError struct {
	Expected string
	Actual   string
}

func (e *StaleStatusError) Error() string {
	return fmt.Sprintf("stale status: expected %s, found %s", e.Expected, e.Actual)
}

func (e *StaleStatusError) Is(target error) bool { return target == ErrStaleStatus }

// AmountError says why an amount was refused, in words the operator can act on.
type AmountError struct{ Reason string }

func (e *AmountError) Error() string { return "invalid amount: " + e.Reason }

func (e *AmountError) Is(target error) bool { return target == ErrInvalidAmount }

// BRL formats an amount the way it is shown to customers: R$ 8,50.
func BRL(d decimal.Decimal) string {
	return "R$ " + strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// Describe maps a domain error to its HTTP status, code and an actionable
// Portuguese message. ok is false for errors outside the taxonomy.
func Describe(err error) (status int, code, msg string, ok bool) {
	var minErr *BelowMinimumOrderError
	var zoneErr *ZoneError
	var prodErr *ProductError
	var staleErr *StaleStatusError
	var amountErr *AmountError

	switch {
	case errors.As(err, &minErr):
		return http.StatusUnprocessableEntity, "below_minimum_order",
			fmt.Sprintf("Pedido mínimo de %s não atingido: adicione mais %s em itens.", BRL(minErr.Minimum), BRL(minErr.Shortfall)), true
	case errors.As(err, &zoneErr):
		return http.StatusUnprocessableEntity, "unserviceable_zone",
			fmt.Sprintf("Não entregamos em %q. Você pode retirar o pedido no balcão.", zoneErr.Zone), true
	case errors.As(err, &prodErr) && prodErr.Unavailable:
		return http.StatusUnprocessableEntity, "unknown_product",
			fmt.Sprintf("%s está indisponível no momento.", prodErr.Name), true
	case errors.As(err, &prodErr):
		return http.StatusUnprocessableEntity, "unknown_product",
			fmt.Sprintf("Não encontramos %q no cardápio.", prodErr.Name), true
	case errors.As(err, &staleErr):
		return http.StatusConflict, "stale_status",
			fmt.Sprintf("O pedido já foi atualizado por outra pessoa (status atual: %s). Recarregue a tela.", staleErr.Actual), true
	case errors.As(err, &amountErr):
		return http.StatusUnprocessableEntity, "invalid_amount", "Valor inválido: " + amountErr.Reason + ".", true
	case errors.Is(err, ErrBelowMinimumOrder):
		return http.StatusUnprocessableEntity, "below_minimum_order", "Pedido mínimo não atingido.", true
	case errors.Is(err, ErrUnserviceableZone):
		return http.StatusUnprocessableEntity, "unserviceable_zone", "Bairro fora da área de entrega. Ofereça retirada no balcão.", true
	case errors.Is(err, ErrUnknownProduct):
		return http.StatusUnprocessableEntity, "unknown_product", "Produto não encontrado no cardápio.", true
	case errors.Is(err, ErrStaleStatus):
		return http.StatusConflict, "stale_status", "O pedido já foi atualizado por outra pessoa. Recarregue a tela.", true
	case errors.Is(err, ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, "invalid_quantity", "Cada item precisa ter quantidade de pelo menos 1.", true
	case errors.Is(err, ErrSessionAlreadyOpen):
		return http.StatusConflict, "session_already_open", "Já existe um caixa aberto. Feche-o antes de abrir outro.", true
	case errors.Is(err, ErrSessionNotOpen):
		return http.StatusConflict, "session_not_open", "Não há caixa aberto. Abra o caixa para registrar a operação.", true
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount", "Valor inválido: informe um valor positivo.", true
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "Essa mudança de status não é permitida para o pedido.", true
	case errors.Is(err, ErrNotesRequired):
		return http.StatusUnprocessableEntity, "notes_required", "Diferença crítica no caixa: informe uma observação do supervisor.", true
	case errors.Is(err, ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input", "Dados do pedido incompletos ou inválidos: " + detail(err, ErrInvalidInput), true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found", "Registro não encontrado.", true
	}
	return http.StatusInternalServerError, "internal", "Erro interno do servidor", false
}

// detail strips the sentinel prefix from a wrapped "%w: detail" error.
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return msg
}
