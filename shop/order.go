package shop

import (
	"context"
	"math"

	"shopwire/message"
	"shopwire/model"
	"shopwire/protocol"
	"shopwire/store"
)

// CreateOrder turns the user's cart into an order. Prices come from the current
// catalog; the discount rate applies first, then the coupon.
func (s *Service) CreateOrder(ctx context.Context, req *message.CreateOrderRequest) *message.CreateOrderResponse {
	if req.Discount < 0 || req.Discount > 1 || math.IsNaN(req.Discount) {
		return message.Fail[message.CreateOrderResult](protocol.InvalidRequest, "discount %v outside [0,1]", req.Discount)
	}
	var coupon Coupon
	if req.CouponCode != "" {
		var ok bool
		if coupon, ok = s.opts.Coupons[req.CouponCode]; !ok {
			return message.Fail[message.CreateOrderResult](protocol.InvalidRequest, "unknown coupon %q", req.CouponCode)
		}
	}

	u, err := s.store.User(ctx, req.UserID)
	if err != nil {
		return fail[message.CreateOrderResult](s, err)
	}
	cart, err := s.store.Cart(ctx, req.UserID)
	if err != nil {
		return fail[message.CreateOrderResult](s, err)
	}
	if len(cart.Items) == 0 {
		return message.Fail[message.CreateOrderResult](protocol.InvalidRequest, "cart is empty")
	}

	var subtotal float64
	var seller int32
	if err := store.CheckItems(cart.Items); err != nil {
		return fail[message.CreateOrderResult](s, err)
	}
	for _, it := range cart.Items {
		p, err := s.store.Product(ctx, it.ProductID)
		if err != nil {
			return fail[message.CreateOrderResult](s, err)
		}
		c, ok := p.Class(it.ClassID)
		if !ok {
			return message.Fail[message.CreateOrderResult](protocol.ResourceNotFound, "product %d has no class %d", it.ProductID, it.ClassID)
		}
		if c.Stock < it.Quantity {
			return message.Fail[message.CreateOrderResult](protocol.InsufficientStock, "%s (%s): %d left", p.Name, c.Name, c.Stock)
		}
		if seller == 0 {
			seller = p.SellerID
		}
		subtotal += c.Price * float64(it.Quantity)
	}

	total := subtotal
	if req.Discount > 0 {
		total *= req.Discount
	}
	total = max(total-coupon.Amount, 0)
	total = math.Round(total*100) / 100

	addr := req.Address
	if addr == "" {
		addr = u.DefaultAddress
	}
	// stock and balance are checked again atomically by the store
	id, err := s.store.PlaceOrder(ctx, model.Order{
		UserID:      u.ID,
		SellerID:    seller,
		TotalAmount: total,
		Status:      model.WaitToPay,
		Address:     addr,
		Items:       cart.Items,
	})
	if err != nil {
		return fail[message.CreateOrderResult](s, err)
	}
	s.log.Info().Int32("user", u.ID).Int32("order", id).Float64("amount", total).Msg("order placed")
	return message.OK(message.CreateOrderResult{OrderID: id, FinalAmount: total})
}

func (s *Service) GetOrderList(ctx context.Context, req *message.GetOrderListRequest) *message.GetOrderListResponse {
	status := model.OrderStatus(req.StatusFilter)
	if status != 0 && !status.Valid() {
		return message.Fail[message.OrderListResult](protocol.InvalidRequest, "unknown order status %d", req.StatusFilter)
	}
	offset, size := s.page(req.Page, req.PageSize)
	orders, total, err := s.store.Orders(ctx, store.OrderFilter{UserID: req.UserID, Status: status, Offset: offset, Limit: int(size)})
	if err != nil {
		return fail[message.OrderListResult](s, err)
	}
	return message.OK(message.OrderListResult{Orders: orders, TotalCount: int32(total)})
}

func (s *Service) GetOrderDetail(ctx context.Context, req *message.GetOrderDetailRequest) *message.GetOrderDetailResponse {
	o, err := s.store.Order(ctx, req.OrderID)
	if err != nil {
		return fail[message.OrderDetailResult](s, err)
	}
	return message.OK(message.OrderDetailResult{Order: o})
}

// UpdateOrderStatus moves an order one step forward, or cancels it.
func (s *Service) UpdateOrderStatus(ctx context.Context, req *message.UpdateOrderStatusRequest) *message.UpdateOrderStatusResponse {
	if !req.NewStatus.Valid() {
		return message.Fail[message.UpdateOrderStatusResult](protocol.InvalidRequest, "unknown order status %d", req.NewStatus)
	}
	if err := s.store.SetOrderStatus(ctx, req.OrderID, req.NewStatus); err != nil {
		return fail[message.UpdateOrderStatusResult](s, err)
	}
	return message.OK(message.UpdateOrderStatusResult{})
}

// CancelOrder cancels an order that has not shipped, giving back stock and money.
func (s *Service) CancelOrder(ctx context.Context, req *message.CancelOrderRequest) *message.CancelOrderResponse {
	if err := s.store.SetOrderStatus(ctx, req.OrderID, model.Canceled); err != nil {
		return fail[message.CancelOrderResult](s, err)
	}
	return message.OK(message.CancelOrderResult{})
}

// ApplyDiscount scales an unpaid order's total by the rate.
func (s *Service) ApplyDiscount(ctx context.Context, req *message.ApplyDiscountRequest) *message.ApplyDiscountResponse {
	if !(req.DiscountRate > 0 && req.DiscountRate <= 1) {
		return message.Fail[message.ApplyDiscountResult](protocol.InvalidRequest, "discount rate %v outside (0,1]", req.DiscountRate)
	}
	o, err := s.store.Order(ctx, req.OrderID)
	if err != nil {
		return fail[message.ApplyDiscountResult](s, err)
	}
	total := math.Round(o.TotalAmount*req.DiscountRate*100) / 100
	if err := s.store.SetOrderTotal(ctx, o.ID, total); err != nil {
		return fail[message.ApplyDiscountResult](s, err)
	}
	return message.OK(message.ApplyDiscountResult{NewTotal: total})
}

// ApplyCoupon looks a coupon up; it is redeemed when an order is created with it.
func (s *Service) ApplyCoupon(ctx context.Context, req *message.ApplyCouponRequest) *message.ApplyCouponResponse {
	c, ok := s.opts.Coupons[req.CouponCode]
	if !ok {
		return message.Fail[message.ApplyCouponResult](protocol.ResourceNotFound, "unknown coupon %q", req.CouponCode)
	}
	return message.OK(message.ApplyCouponResult{DiscountAmount: c.Amount, Description: c.Description})
}
