package enums

import (
	"fmt"
	"slices"
	"strings"
)

// CartAction is the wire name of a cart operation.
type CartAction string

const (
	CartActionAdd    CartAction = "add"
	CartActionRemove CartAction = "remove"
	CartActionUpdate CartAction = "update"
	CartActionList   CartAction = "list"
	CartActionClear  CartAction = "clear"
	CartActionCount  CartAction = "count"
)

var validCartActions = []CartAction{
	CartActionAdd,
	CartActionRemove,
	CartActionUpdate,
	CartActionList,
	CartActionClear,
	CartActionCount,
}

// String implements fmt.Stringer.
func (a CartAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known CartAction.
func (a CartAction) IsValid() bool {
	return slices.Contains(validCartActions, a)
}

// ParseCartAction converts raw input into a CartAction. Matching ignores case and padding.
func ParseCartAction(value string) (CartAction, error) {
	action, err := parse("cart action", strings.ToLower(strings.TrimSpace(value)), validCartActions)
	if err != nil {
		return "", fmt.Errorf("invalid cart action %q", value)
	}
	return action, nil
}

// QuantityDirection is the relative step requested by an update action.
type QuantityDirection string

const (
	QuantityIncrease QuantityDirection = "increase"
	QuantityDecrease QuantityDirection = "decrease"
)

// ParseQuantityDirection converts raw input into a QuantityDirection.
func ParseQuantityDirection(value string) (QuantityDirection, error) {
	switch QuantityDirection(strings.ToLower(strings.TrimSpace(value))) {
	case QuantityIncrease:
		return QuantityIncrease, nil
	case QuantityDecrease:
		return QuantityDecrease, nil
	}
	return "", fmt.Errorf("invalid quantity direction %q", value)
}

// Delta returns the signed step for the direction.
func (d QuantityDirection) Delta() int {
	if d == QuantityDecrease {
		return -1
	}
	return 1
}
