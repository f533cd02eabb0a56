// Package model holds the domain value objects exchanged between the persistence layer
// and the wire. They are plain snapshots: the protocol layer copies them into and out of
// message bodies and never mutates one it did not build.
package model

// User is a shop account.
type User struct {
	ID             int32
	Username       string
	Password       string
	Nickname       string
	AvatarURL      string
	Phone          string
	DefaultAddress string
	Balance        float64
	RegisterTime   string
	Level          int32
}

// Public returns a copy of u safe to send to a client: the password never leaves the server.
func (u User) Public() User {
	u.Password = ""
	return u
}

// ProductClass is one purchasable variant of a product, with its own price and stock.
type ProductClass struct {
	ID            int32
	Stock         int32
	SmallImageURL string
	Name          string
	Price         float64
}

// Product is a catalog entry.
type Product struct {
	ID                   int32
	Description          string
	BriefDescription     string
	DescriptionImageURLs []string
	Specification        string
	Brand                string
	Classes              []ProductClass
	Name                 string
	Category             string
	SellerID             int32
	SalesCount           int32
}

// Class returns the variant with the given id.
func (p *Product) Class(id int32) (*ProductClass, bool) {
	for i := range p.Classes {
		if p.Classes[i].ID == id {
			return &p.Classes[i], true
		}
	}
	return nil, false
}

// OrderItem is a quantity of one product variant, used by both carts and orders.
type OrderItem struct {
	ProductID int32
	ClassID   int32
	Quantity  int32
}

// Cart is a user's pending selection.
type Cart struct {
	UserID int32
	Items  []OrderItem
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus int32

const (
	WaitToPay  OrderStatus = 1
	Collecting OrderStatus = 2
	Shipping   OrderStatus = 3
	Finished   OrderStatus = 4
	Canceled   OrderStatus = 5
)

func (s OrderStatus) Valid() bool {
	return s >= WaitToPay && s <= Canceled
}

func (s OrderStatus) String() string {
	switch s {
	case WaitToPay:
		return "wait_to_pay"
	case Collecting:
		return "collecting"
	case Shipping:
		return "shipping"
	case Finished:
		return "finished"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// CanMoveTo reports whether an order in status s may transition to next.
// Orders only move forward; cancellation is allowed before shipping.
func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	switch next {
	case Canceled:
		return s == WaitToPay || s == Collecting
	case Collecting, Shipping, Finished:
		return next == s+1
	}
	return false
}

// Order is a placed purchase.
type Order struct {
	ID          int32
	UserID      int32
	SellerID    int32
	TotalAmount float64
	Status      OrderStatus
	Address     string
	Items       []OrderItem
}
