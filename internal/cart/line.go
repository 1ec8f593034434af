package cart

import "time"

// Line is one stored cart line.
type Line struct {
	ID        int64
	Owner     Owner
	ProductID int64
	Color     *string
	Size      *string
	Quantity  int
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Key returns the line's variant key.
func (l Line) Key() VariantKey {
	return NewVariantKey(l.ProductID, l.Color, l.Size)
}

// ListFilter narrows the lines a read returns. Nil fields apply no bound.
type ListFilter struct {
	ExpiresAfter *time.Time
	CreatedSince *time.Time
}

// QuantityMode selects how UpdateQuantity interprets its value.
type QuantityMode int

const (
	// QuantityAbsolute sets the line quantity to the value.
	QuantityAbsolute QuantityMode = iota
	// QuantityRelative adds a +1 or -1 step to the current quantity.
	QuantityRelative
)

func (m QuantityMode) String() string {
	if m == QuantityRelative {
		return "relative"
	}
	return "absolute"
}

// QuantityUpdate carries an explicit update mode and its value.
type QuantityUpdate struct {
	Mode  QuantityMode
	Value int
}

// SetQuantity builds an absolute update.
func SetQuantity(quantity int) QuantityUpdate {
	return QuantityUpdate{Mode: QuantityAbsolute, Value: quantity}
}

// StepQuantity builds a relative update of delta.
func StepQuantity(delta int) QuantityUpdate {
	return QuantityUpdate{Mode: QuantityRelative, Value: delta}
}
