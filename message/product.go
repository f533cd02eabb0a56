package message

import (
	"shopwire/codec"
	"shopwire/model"
	"shopwire/protocol"
)

type GetProductListRequest struct {
	Page     int32
	PageSize int32
	Category string
	Keyword  string
}

func (*GetProductListRequest) Type() protocol.MessageType { return protocol.GetProductListRequest }

func (m *GetProductListRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.Page)
	w.Int32(m.PageSize)
	w.String(m.Category)
	w.String(m.Keyword)
}

func (m *GetProductListRequest) UnmarshalWire(r *codec.Reader) error {
	if err := readInt32s(r, &m.Page, &m.PageSize); err != nil {
		return err
	}
	return readStrings(r, &m.Category, &m.Keyword)
}

type ProductListResult struct {
	Products   []model.Product
	TotalCount int32
	TotalPages int32
}

func (*ProductListResult) ResponseType() protocol.MessageType {
	return protocol.GetProductListResponse
}

func (m *ProductListResult) MarshalWire(w *codec.Writer) {
	putProducts(w, m.Products)
	w.Int32(m.TotalCount)
	w.Int32(m.TotalPages)
}

func (m *ProductListResult) UnmarshalWire(r *codec.Reader) (err error) {
	if m.Products, err = getProducts(r); err != nil {
		return err
	}
	return readInt32s(r, &m.TotalCount, &m.TotalPages)
}

type GetProductListResponse = Response[ProductListResult]

type GetProductDetailRequest struct {
	ProductID int32
}

func (*GetProductDetailRequest) Type() protocol.MessageType {
	return protocol.GetProductDetailRequest
}

func (m *GetProductDetailRequest) MarshalWire(w *codec.Writer) { w.Int32(m.ProductID) }

func (m *GetProductDetailRequest) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.ProductID)
}

type ProductDetailResult struct {
	Product model.Product
}

func (*ProductDetailResult) ResponseType() protocol.MessageType {
	return protocol.GetProductDetailResponse
}

func (m *ProductDetailResult) MarshalWire(w *codec.Writer) { putProduct(w, &m.Product) }

func (m *ProductDetailResult) UnmarshalWire(r *codec.Reader) error {
	return getProduct(r, &m.Product)
}

type GetProductDetailResponse = Response[ProductDetailResult]

type CreateProductRequest struct {
	Product model.Product
}

func (*CreateProductRequest) Type() protocol.MessageType { return protocol.CreateProductRequest }

func (m *CreateProductRequest) MarshalWire(w *codec.Writer) { putProduct(w, &m.Product) }

func (m *CreateProductRequest) UnmarshalWire(r *codec.Reader) error {
	return getProduct(r, &m.Product)
}

type CreateProductResult struct {
	ProductID int32
}

func (*CreateProductResult) ResponseType() protocol.MessageType {
	return protocol.CreateProductResponse
}

func (m *CreateProductResult) MarshalWire(w *codec.Writer) { w.Int32(m.ProductID) }

func (m *CreateProductResult) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.ProductID)
}

type CreateProductResponse = Response[CreateProductResult]

type UpdateProductRequest struct {
	Product model.Product
}

func (*UpdateProductRequest) Type() protocol.MessageType { return protocol.UpdateProductRequest }

func (m *UpdateProductRequest) MarshalWire(w *codec.Writer) { putProduct(w, &m.Product) }

func (m *UpdateProductRequest) UnmarshalWire(r *codec.Reader) error {
	return getProduct(r, &m.Product)
}

type UpdateProductResult struct{ empty }

func (*UpdateProductResult) ResponseType() protocol.MessageType {
	return protocol.UpdateProductResponse
}

type UpdateProductResponse = Response[UpdateProductResult]

type DeleteProductRequest struct {
	ProductID int32
}

func (*DeleteProductRequest) Type() protocol.MessageType { return protocol.DeleteProductRequest }

func (m *DeleteProductRequest) MarshalWire(w *codec.Writer) { w.Int32(m.ProductID) }

func (m *DeleteProductRequest) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.ProductID)
}

type DeleteProductResult struct{ empty }

func (*DeleteProductResult) ResponseType() protocol.MessageType {
	return protocol.DeleteProductResponse
}

type DeleteProductResponse = Response[DeleteProductResult]

type GetMyProductsRequest struct {
	UserID   int32
	Page     int32
	PageSize int32
}

func (*GetMyProductsRequest) Type() protocol.MessageType { return protocol.GetMyProductsRequest }

func (m *GetMyProductsRequest) MarshalWire(w *codec.Writer) {
	w.Int32(m.UserID)
	w.Int32(m.Page)
	w.Int32(m.PageSize)
}

func (m *GetMyProductsRequest) UnmarshalWire(r *codec.Reader) error {
	return readInt32s(r, &m.UserID, &m.Page, &m.PageSize)
}

type MyProductsResult struct {
	Products   []model.Product
	TotalCount int32
}

func (*MyProductsResult) ResponseType() protocol.MessageType {
	return protocol.GetMyProductsResponse
}

func (m *MyProductsResult) MarshalWire(w *codec.Writer) {
	putProducts(w, m.Products)
	w.Int32(m.TotalCount)
}

func (m *MyProductsResult) UnmarshalWire(r *codec.Reader) (err error) {
	if m.Products, err = getProducts(r); err != nil {
		return err
	}
	return readInt32s(r, &m.TotalCount)
}

type GetMyProductsResponse = Response[MyProductsResult]
