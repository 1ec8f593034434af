package enums

import "slices"

// CartOwnerKind identifies which backing collection holds a cart.
type CartOwnerKind string

const (
	CartOwnerGuest CartOwnerKind = "guest"
	CartOwnerUser  CartOwnerKind = "user"
)

var validCartOwnerKinds = []CartOwnerKind{
	CartOwnerGuest,
	CartOwnerUser,
}

// String implements fmt.Stringer.
func (k CartOwnerKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known CartOwnerKind.
func (k CartOwnerKind) IsValid() bool {
	return slices.Contains(validCartOwnerKinds, k)
}

// ParseCartOwnerKind converts raw input into a CartOwnerKind.
func ParseCartOwnerKind(value string) (CartOwnerKind, error) {
	return parse("cart owner kind", value, validCartOwnerKinds)
}
