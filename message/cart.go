package message

import (
	"shopwire/codec"
	"shopwire/model"
	"shopwire/protocol"
)

type GetCartRequest struct {
	UserID int32
}

func (*GetCartRequest) Type() protocol.MessageType { return protocol.GetCartRequest }

func (m *GetCartRequest) MarshalWire(w *codec.Writer) { w.Int32(m.UserID) }

func (m *GetCartRequest) UnmarshalWire(r *codec.Reader) error { return readInt32s(r, &m.UserID) }

type CartResult struct {
	Cart model.Cart
}

func (*CartResult) ResponseType() protocol.MessageType { return protocol.GetCartResponse }

func (m *CartResult) MarshalWire(w *codec.Writer) { putCart(w, &m.Cart) }

func (m *CartResult) UnmarshalWire(r *codec.Reader) error { return getCart(r, &m.Cart) }

type GetCartResponse = Response[CartResult]

type AddToCartRequest struct {
	UserID int32
	Item   model.OrderItem
}

func (*AddToCartRequest) Type() protocol.MessageType { return protocol.AddToCartRequest }

func (m *AddToCartRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	putItem(w, m.Item)
}

func (m *AddToCartRequest) UnmarshalWire(r *codec.Reader) error {
	if err := readInt32s(r, &m.UserID); err != nil {
		return err
	}
	return getItem(r, &m.Item)
}

type AddToCartResult struct{ empty }

func (*AddToCartResult) ResponseType() protocol.MessageType { return protocol.AddToCartResponse }

type AddToCartResponse = Response[AddToCartResult]

type UpdateCartItemRequest struct {
	UserID    int32
	ProductID int32
	ClassID   int32
	Quantity  int32
}

func (*UpdateCartItemRequest) Type() protocol.MessageType { return protocol.UpdateCartItemRequest }

func (m *UpdateCartItemRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	w.Int32(m.ProductID)
	w.Int32(m.ClassID)
	w.Int32(m.Quantity)
}

func (m *UpdateCartItemRequest) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.UserID, &m.ProductID, &m.ClassID, &m.Quantity)
}

type UpdateCartItemResult struct{ empty }

func (*UpdateCartItemResult) ResponseType() protocol.MessageType {
	return protocol.UpdateCartItemResponse
}

type UpdateCartItemResponse = Response[UpdateCartItemResult]

type RemoveCartItemRequest struct {
	UserID    int32
	ProductID int32
	ClassID   int32
}

func (*RemoveCartItemRequest) Type() protocol.MessageType { return protocol.RemoveCartItemRequest }

func (m *RemoveCartItemRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	w.Int32(m.ProductID)
	w.Int32(m.ClassID)
}

func (m *RemoveCartItemRequest) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.UserID, &m.ProductID, &m.ClassID)
}

type RemoveCartItemResult struct{ empty }

func (*RemoveCartItemResult) ResponseType() protocol.MessageType {
	return protocol.RemoveCartItemResponse
}

type RemoveCartItemResponse = Response[RemoveCartItemResult]

type ClearCartRequest struct {
	UserID int32
}

func (*ClearCartRequest) Type() protocol.MessageType { return protocol.ClearCartRequest }

func (m *ClearCartRequest) MarshalWire(w *codec.Writer) { w.Int32(m.UserID) }

func (m *ClearCartRequest) UnmarshalWire(r *codec.Reader) error { return readInt32s(r, &m.UserID) }

type ClearCartResult struct{ empty }

func (*ClearCartResult) ResponseType() protocol.MessageType { return protocol.ClearCartResponse }

type ClearCartResponse = Response[ClearCartResult]
