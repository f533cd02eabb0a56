package message

import (
	"fmt"

	"shopwire/codec"
	"shopwire/model"
	"shopwire/protocol"
)

type CreateOrderRequest struct {
	UserID     int32
	Address    string
	Discount   float64 // rate in [0,1]; 0 means none
	CouponCode string
}

func (*CreateOrderRequest) Type() protocol.MessageType { return protocol.CreateOrderRequest }

func (m *CreateOrderRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	w.String(m.Address)
	w.Float64(m.Discount)
	w.String(m.CouponCode)
}

func (m *CreateOrderRequest) UnmarshalWire(r *codec.Reader) (err error) {
	if err = readInt32s(r, &m.UserID); err != nil {
		return err
	}
	if m.Address, err = r.String(); err != nil {
		return err
	}
	if m.Discount, err = r.Float64(); err != nil {
		return err
	}
	m.CouponCode, err = r.String()
	return err
}

type CreateOrderResult struct {
	OrderID     int32
	FinalAmount float64
}

func (*CreateOrderResult) ResponseType() protocol.MessageType { return protocol.CreateOrderResponse }

func (m *CreateOrderResult) MarshalWire(w *codec.Writer) {
	w.Int32(m.OrderID)
	w.Float64(m.FinalAmount)
}

func (m *CreateOrderResult) UnmarshalWire(r *codec.Reader) (err error) {
	if m.OrderID, err = r.Int32(); err != nil {
		return err
	}
	m.FinalAmount, err = r.Float64()
	return err
}

type CreateOrderResponse = Response[CreateOrderResult]

type GetOrderListRequest struct {
	UserID       int32
	Page         int32
	PageSize     int32
	StatusFilter int32 // 0 matches every status
}

func (*GetOrderListRequest) Type() protocol.MessageType { return protocol.GetOrderListRequest }

func (m *GetOrderListRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	w.Int32(m.Page)
	w.Int32(m.PageSize)
	w.Int32(m.StatusFilter)
}

func (m *GetOrderListRequest) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.UserID, &m.Page, &m.PageSize, &m.StatusFilter)
}

type OrderListResult struct {
	Orders     []model.Order
	TotalCount int32
}

func (*OrderListResult) ResponseType() protocol.MessageType { return protocol.GetOrderListResponse }

func (m *OrderListResult) MarshalWire(w *codec.Writer) {
	putOrders(w, m.Orders)
	w.Int32(m.TotalCount)
}

func (m *OrderListResult) UnmarshalWire(r *codec.Reader) (err error) {
	if m.Orders, err = getOrders(r); err != nil {
		return err
	}
	return readInt32s(r, &m.TotalCount)
}

type GetOrderListResponse = Response[OrderListResult]

type GetOrderDetailRequest struct {
	OrderID int32
}

func (*GetOrderDetailRequest) Type() protocol.MessageType { return protocol.GetOrderDetailRequest }

func (m *GetOrderDetailRequest) MarshalWire(w *codec.Writer) { w.Int32(m.OrderID) }

func (m *GetOrderDetailRequest) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.OrderID)
}

type OrderDetailResult struct {
	Order model.Order
}

func (*OrderDetailResult) ResponseType() protocol.MessageType {
	return protocol.GetOrderDetailResponse
}

func (m *OrderDetailResult) MarshalWire(w *codec.Writer) { putOrder(w, &m.Order) }

func (m *OrderDetailResult) UnmarshalWire(r *codec.Reader) error { return getOrder(r, &m.Order) }

type GetOrderDetailResponse = Response[OrderDetailResult]

type UpdateOrderStatusRequest struct {
	OrderID   int32
	NewStatus model.OrderStatus
}

func (*UpdateOrderStatusRequest) Type() protocol.MessageType {
	return protocol.UpdateOrderStatusRequest
}

func (m *UpdateOrderStatusRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.OrderID)
	w.Int32(int32(m.NewStatus))
}

func (m *UpdateOrderStatusRequest) UnmarshalWire(r *codec.Reader) error {
	var status int32
	if err := readInt32s(r, &m.OrderID, &status); err != nil {
		return err
	}
	m.NewStatus = model.OrderStatus(status)
	if !m.NewStatus.Valid() {
		return fmt.Errorf("%w: order status %d", codec.ErrMalformed, status)
	}
	return nil
}

type UpdateOrderStatusResult struct{ empty }

func (*UpdateOrderStatusResult) ResponseType() protocol.MessageType {
	return protocol.UpdateOrderStatusResponse
}

type UpdateOrderStatusResponse = Response[UpdateOrderStatusResult]

type CancelOrderRequest struct {
	OrderID int32
}

func (*CancelOrderRequest) Type() protocol.MessageType { return protocol.CancelOrderRequest }

func (m *CancelOrderRequest) MarshalWire(w *codec.Writer) { w.Int32(m.OrderID) }

func (m *CancelOrderRequest) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.OrderID)
}

type CancelOrderResult struct{ empty }

func (*CancelOrderResult) ResponseType() protocol.MessageType { return protocol.CancelOrderResponse }

type CancelOrderResponse = Response[CancelOrderResult]

type ApplyDiscountRequest struct {
	OrderID      int32
	DiscountRate float64 // in (0,1]
}

func (*ApplyDiscountRequest) Type() protocol.MessageType { return protocol.ApplyDiscountRequest }

func (m *ApplyDiscountRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.OrderID)
	w.Float64(m.DiscountRate)
}

func (m *ApplyDiscountRequest) UnmarshalWire(r *codec.Reader) (err error) {
	if m.OrderID, err = r.Int32(); err != nil {
		return err
	}
	m.DiscountRate, err = r.Float64()
	return err
}

type ApplyDiscountResult struct {
	NewTotal float64
}

func (*ApplyDiscountResult) ResponseType() protocol.MessageType {
	return protocol.ApplyDiscountResponse
}

func (m *ApplyDiscountResult) MarshalWire(w *codec.Writer) { w.Float64(m.NewTotal) }

func (m *ApplyDiscountResult) UnmarshalWire(r *codec.Reader) (err error) {
	m.NewTotal, err = r.Float64()
	return err
}

type ApplyDiscountResponse = Response[ApplyDiscountResult]

type ApplyCouponRequest struct {
	UserID     int32
	CouponCode string
}

func (*ApplyCouponRequest) Type() protocol.MessageType { return protocol.ApplyCouponRequest }

func (m *ApplyCouponRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	w.String(m.CouponCode)
}

func (m *ApplyCouponRequest) UnmarshalWire(r *codec.Reader) error {
	if err := readInt32s(r, &m.UserID); err != nil {
		return err
	}
	return readStrings(r, &m.CouponCode)
}

type ApplyCouponResult struct {
	DiscountAmount float64
	Description    string
}

func (*ApplyCouponResult) ResponseType() protocol.MessageType { return protocol.ApplyCouponResponse }

func (m *ApplyCouponResult) MarshalWire(w *codec.Writer) {
	w.Float64(m.DiscountAmount)
	w.String(m.Description)
}

func (m *ApplyCouponResult) UnmarshalWire(r *codec.Reader) (err error) {
	if m.DiscountAmount, err = r.Float64(); err != nil {
		return err
	}
	m.Description, err = r.String()
	return err
}

type ApplyCouponResponse = Response[ApplyCouponResult]
