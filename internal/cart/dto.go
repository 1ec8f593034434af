package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ActionRequest is the JSON envelope every cart mutation arrives in.
type ActionRequest struct {
	Action    string  `json:"action" validate:"required"`
	ProductID int64   `json:"product_id" validate:"gte=0"`
	Quantity  *int    `json:"quantity,omitempty"`
	Color     *string `json:"color,omitempty"`
	Size      *string `json:"size,omitempty"`
	Direction *string `json:"direction,omitempty"`
}

// ToAction converts the envelope into its typed action. An update with a
// direction is a relative step; otherwise quantity is the absolute target.
func (r ActionRequest) ToAction() (Action, error) {
	name, err := enums.ParseCartAction(r.Action)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown cart action").
			WithDetails(map[string]any{"action": r.Action})
	}

	key := NewVariantKey(r.ProductID, r.Color, r.Size)
	switch name {
	case enums.CartActionAdd:
		quantity := 1
		if r.Quantity != nil {
			quantity = *r.Quantity
		}
		return AddAction{Key: key, Quantity: quantity}, nil
	case enums.CartActionRemove:
		return RemoveAction{Key: key}, nil
	case enums.CartActionUpdate:
		if r.Direction != nil && *r.Direction != "" {
			direction, err := enums.ParseQuantityDirection(*r.Direction)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "direction must be increase or decrease")
			}
			return UpdateQuantityAction{Key: key, Update: StepQuantity(direction.Delta())}, nil
		}
		if r.Quantity == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity or direction is required for update")
		}
		return UpdateQuantityAction{Key: key, Update: SetQuantity(*r.Quantity)}, nil
	case enums.CartActionList:
		return ListAction{}, nil
	case enums.CartActionClear:
		return ClearAction{}, nil
	case enums.CartActionCount:
		return CountAction{}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown cart action")
}

// ActionResponse answers mutations and count requests.
type ActionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CartCount int    `json:"cart_count"`
}

// ItemResponse is one priced line of a listing.
type ItemResponse struct {
	ProductID int64       `json:"product_id"`
	Name      string      `json:"name"`
	ImageURL  *string     `json:"image_url,omitempty"`
	Color     *string     `json:"color"`
	Size      *string     `json:"size"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
	LineTotal json.Number `json:"line_total"`
}

// ListResponse answers list requests.
type ListResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Items     []ItemResponse `json:"items"`
	Subtotal  json.Number    `json:"subtotal"`
	Total     json.Number    `json:"total"`
	ItemCount int            `json:"item_count"`
	CartCount int            `json:"cart_count"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// NewFailureResponse is the body of a failed cart request. count is the
// owner's cart count when it could still be read, otherwise zero.
func NewFailureResponse(message string, count int) ActionResponse {
	return ActionResponse{Success: false, Message: message, CartCount: count}
}

// NewActionResponse renders a result; list results carry their items.
func NewActionResponse(result ActionResult) any {
	if result.View == nil {
		return ActionResponse{
			Success:   true,
			Message:   result.Message,
			CartCount: result.CartCount,
		}
	}
	return NewListResponse(result.Message, result.View)
}

// NewListResponse renders a cart view.
func NewListResponse(message string, view *CartView) ListResponse {
	items := make([]ItemResponse, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, ItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     money(item.UnitPrice),
			LineTotal: money(item.LineTotal),
		})
	}
	return ListResponse{
		Success:   true,
		Message:   message,
		Items:     items,
		Subtotal:  money(view.Totals.Subtotal),
		Total:     money(view.Totals.Total),
		ItemCount: view.Totals.ItemCount,
		CartCount: view.CartCount,
	}
}
