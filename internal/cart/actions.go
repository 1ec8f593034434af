package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Action is one cart operation with its typed payload.
type Action interface {
	Name() enums.CartAction
}

// AddAction adds Quantity of a variant to the cart.
type AddAction struct {
	Key      VariantKey
	Quantity int
}

// RemoveAction deletes the line for a variant.
type RemoveAction struct {
	Key VariantKey
}

// UpdateQuantityAction steps or sets the quantity of a variant's line.
type UpdateQuantityAction struct {
	Key    VariantKey
	Update QuantityUpdate
}

type ListAction struct{}

type ClearAction struct{}

type CountAction struct{}

func (AddAction) Name() enums.CartAction            { return enums.CartActionAdd }
func (RemoveAction) Name() enums.CartAction         { return enums.CartActionRemove }
func (UpdateQuantityAction) Name() enums.CartAction { return enums.CartActionUpdate }
func (ListAction) Name() enums.CartAction           { return enums.CartActionList }
func (ClearAction) Name() enums.CartAction          { return enums.CartActionClear }
func (CountAction) Name() enums.CartAction          { return enums.CartActionCount }

// ActionResult is the outcome of a dispatched action. View is only set for
// list actions.
type ActionResult struct {
	Action    enums.CartAction
	Message   string
	CartCount int
	View      *CartView
}

// Dispatcher routes typed actions to the cart service and counts outcomes.
type Dispatcher struct {
	svc     Service
	metrics *metrics.CartMetrics
}

// NewDispatcher constructs a dispatcher over svc. m may be nil.
func NewDispatcher(svc Service, m *metrics.CartMetrics) (*Dispatcher, error) {
	if svc == nil {
		return nil, fmt.Errorf("cart service is required")
	}
	return &Dispatcher{svc: svc, metrics: m}, nil
}

// Dispatch runs action for owner. Every successful action reports the
// owner's cart count afterwards.
func (d *Dispatcher) Dispatch(ctx context.Context, owner Owner, action Action) (ActionResult, error) {
	if action == nil {
		return ActionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "cart action is required")
	}
	result, err := d.dispatch(ctx, owner, action)
	outcome := "ok"
	if err != nil {
		outcome = string(pkgerrors.CodeOf(err))
	}
	d.metrics.ObserveOperation(string(action.Name()), owner.Kind.String(), outcome)
	return result, err
}

func (d *Dispatcher) dispatch(ctx context.Context, owner Owner, action Action) (ActionResult, error) {
	result := ActionResult{Action: action.Name()}

	switch a := action.(type) {
	case AddAction:
		if err := d.svc.AddLine(ctx, owner, a.Key, a.Quantity); err != nil {
			return result, err
		}
		result.Message = "item added to cart"
	case RemoveAction:
		if err := d.svc.RemoveLine(ctx, owner, a.Key); err != nil {
			return result, err
		}
		result.Message = "item removed from cart"
	case UpdateQuantityAction:
		if err := d.svc.UpdateQuantity(ctx, owner, a.Key, a.Update); err != nil {
			return result, err
		}
		result.Message = "cart updated"
	case ListAction:
		view, err := d.svc.View(ctx, owner)
		if err != nil {
			return result, err
		}
		result.Message = "cart loaded"
		result.View = view
		result.CartCount = view.CartCount
		return result, nil
	case ClearAction:
		if err := d.svc.Clear(ctx, owner); err != nil {
			return result, err
		}
		result.Message = "cart cleared"
	case CountAction:
		result.Message = "cart counted"
	default:
		return result, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported cart action %T", action))
	}

	count, err := d.svc.Count(ctx, owner)
	if err != nil {
		return result, err
	}
	result.CartCount = count
	return result, nil
}
