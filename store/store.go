// Package store persists the shop's users, products, carts and orders.
//
// Store implementations are safe for concurrent use. Every method that changes more
// than one record does so atomically: a failing PlaceOrder or a rejected status change
// leaves nothing behind.
package store

import (
	"context"
	"errors"
	"fmt"

	"shopwire/model"
)

var (
	ErrNotFound            = errors.New("store: not found")
	ErrDuplicate           = errors.New("store: already exists")
	ErrInsufficientStock   = errors.New("store: insufficient stock")
	ErrInsufficientBalance = errors.New("store: insufficient balance")
	ErrInvalidTransition   = errors.New("store: invalid order status transition")
	ErrInvalidItem         = errors.New("store: invalid order item")
)

// ProductFilter selects a page of products. Zero fields match everything.
type ProductFilter struct {
	Category string
	Keyword  string // case-insensitive substring of name or description
	SellerID int32
	Offset   int
	Limit    int // 0 means no limit
}

// OrderFilter selects a page of one user's orders.
type OrderFilter struct {
	UserID int32
	Status model.OrderStatus // 0 means any
	Offset int
	Limit  int
}

type Store interface {
	CreateUser(ctx context.Context, u model.User) (int32, error)
	User(ctx context.Context, id int32) (model.User, error)
	UserByName(ctx context.Context, username string) (model.User, error)
	UpdateUser(ctx context.Context, u model.User) error

	Products(ctx context.Context, f ProductFilter) ([]model.Product, int, error)
	Product(ctx context.Context, id int32) (model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (int32, error)
	UpdateProduct(ctx context.Context, p model.Product) error
	DeleteProduct(ctx context.Context, id int32) error

	// Cart returns the user's cart, empty when the user never added anything.
	Cart(ctx context.Context, userID int32) (model.Cart, error)
	SaveCart(ctx context.Context, c model.Cart) error

	// PlaceOrder checks every item's stock and the user's balance against o.TotalAmount,
	// then decrements stock, charges the balance, stores o and clears the cart, all or
	// nothing.
	PlaceOrder(ctx context.Context, o model.Order) (int32, error)
	Orders(ctx context.Context, f OrderFilter) ([]model.Order, int, error)
	Order(ctx context.Context, id int32) (model.Order, error)
	// SetOrderStatus moves an order forward. Cancelling restores stock and refunds the
	// charged amount.
	SetOrderStatus(ctx context.Context, id int32, next model.OrderStatus) error
	// SetOrderTotal rewrites the amount of an order still waiting to pay, refunding the
	// difference when it drops.
	SetOrderTotal(ctx context.Context, id int32, total float64) error

	Close() error
}

// CheckItems rejects non-positive quantities and repeated product classes.
func CheckItems(items []model.OrderItem) error {
	type key struct{ product, class int32 }
	seen := make(map[key]struct{}, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity %d for product %d", ErrInvalidItem, it.Quantity, it.ProductID)
		}
		k := key{it.ProductID, it.ClassID}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: product %d class %d listed twice", ErrInvalidItem, it.ProductID, it.ClassID)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// Page cuts the [offset, offset+limit) window out of n items.
func Page(n, offset, limit int) (lo, hi int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	hi = n
	if limit > 0 && offset+limit < n {
		hi = offset + limit
	}
	return offset, hi
}
