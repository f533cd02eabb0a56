package shop

import (
	"context"
	"math"
	"slices"

	"shopwire/message"
	"shopwire/model"
	"shopwire/protocol"
)

func (s *Service) GetCart(ctx context.Context, req *message.GetCartRequest) *message.GetCartResponse {
	c, err := s.store.Cart(ctx, req.UserID)
	if err != nil {
		return fail[message.CartResult](s, err)
	}
	return message.OK(message.CartResult{Cart: c})
}

func findItem(c *model.Cart, productID, classID int32) int {
	return slices.IndexFunc(c.Items, func(it model.OrderItem) bool {
		return it.ProductID == productID && it.ClassID == classID
	})
}

// AddToCart adds the item, merging quantities with an existing line for the same
// product class.
func (s *Service) AddToCart(ctx context.Context, req *message.AddToCartRequest) *message.AddToCartResponse {
	it := req.Item
	if it.Quantity <= 0 {
		return message.Fail[message.AddToCartResult](protocol.InvalidRequest, "quantity must be positive")
	}
	p, err := s.store.Product(ctx, it.ProductID)
	if err != nil {
		return fail[message.AddToCartResult](s, err)
	}
	if _, ok := p.Class(it.ClassID); !ok {
		return message.Fail[message.AddToCartResult](protocol.ResourceNotFound, "product %d has no class %d", it.ProductID, it.ClassID)
	}

	c, err := s.store.Cart(ctx, req.UserID)
	if err != nil {
		return fail[message.AddToCartResult](s, err)
	}
	if i := findItem(&c, it.ProductID, it.ClassID); i >= 0 {
		if c.Items[i].Quantity > math.MaxInt32-it.Quantity {
			return message.Fail[message.AddToCartResult](protocol.InvalidRequest, "quantity too large")
		}
		c.Items[i].Quantity += it.Quantity
	} else {
		c.Items = append(c.Items, it)
	}
	if err := s.store.SaveCart(ctx, c); err != nil {
		return fail[message.AddToCartResult](s, err)
	}
	return message.OK(message.AddToCartResult{})
}

// UpdateCartItem sets a line's quantity; zero or less removes the line.
func (s *Service) UpdateCartItem(ctx context.Context, req *message.UpdateCartItemRequest) *message.UpdateCartItemResponse {
	c, err := s.store.Cart(ctx, req.UserID)
	if err != nil {
		return fail[message.UpdateCartItemResult](s, err)
	}
	i := findItem(&c, req.ProductID, req.ClassID)
	if i < 0 {
		return message.Fail[message.UpdateCartItemResult](protocol.ResourceNotFound, "item not in cart")
	}
	if req.Quantity <= 0 {
		c.Items = slices.Delete(c.Items, i, i+1)
	} else {
		c.Items[i].Quantity = req.Quantity
	}
	if err := s.store.SaveCart(ctx, c); err != nil {
		return fail[message.UpdateCartItemResult](s, err)
	}
	return message.OK(message.UpdateCartItemResult{})
}

func (s *Service) RemoveCartItem(ctx context.Context, req *message.RemoveCartItemRequest) *message.RemoveCartItemResponse {
	c, err := s.store.Cart(ctx, req.UserID)
	if err != nil {
		return fail[message.RemoveCartItemResult](s, err)
	}
	i := findItem(&c, req.ProductID, req.ClassID)
	if i < 0 {
		return message.Fail[message.RemoveCartItemResult](protocol.ResourceNotFound, "item not in cart")
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	if err := s.store.SaveCart(ctx, c); err != nil {
		return fail[message.RemoveCartItemResult](s, err)
	}
	return message.OK(message.RemoveCartItemResult{})
}

func (s *Service) ClearCart(ctx context.Context, req *message.ClearCartRequest) *message.ClearCartResponse {
	if err := s.store.SaveCart(ctx, model.Cart{UserID: req.UserID}); err != nil {
		return fail[message.ClearCartResult](s, err)
	}
	return message.OK(message.ClearCartResult{})
}
