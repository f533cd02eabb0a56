package shop

import (
	"context"
	"fmt"
	"strings"

	"shopwire/message"
	"shopwire/model"
	"shopwire/protocol"
	"shopwire/store"
)

func (s *Service) GetProductList(ctx context.Context, req *message.GetProductListRequest) *message.GetProductListResponse {
	offset, size := s.page(req.Page, req.PageSize)
	products, total, err := s.store.Products(ctx, store.ProductFilter{
		Category: req.Category,
		Keyword:  req.Keyword,
		Offset:   offset,
		Limit:    int(size),
	})
	if err != nil {
		return fail[message.ProductListResult](s, err)
	}
	return message.OK(message.ProductListResult{
		Products:   products,
		TotalCount: int32(total),
		TotalPages: int32((total + int(size) - 1) / int(size)),
	})
}

func (s *Service) GetProductDetail(ctx context.Context, req *message.GetProductDetailRequest) *message.GetProductDetailResponse {
	p, err := s.store.Product(ctx, req.ProductID)
	if err != nil {
		return fail[message.ProductDetailResult](s, err)
	}
	return message.OK(message.ProductDetailResult{Product: p})
}

// validProduct checks what a seller may store.
func validProduct(p *model.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is required")
	}
	if len(p.Classes) == 0 {
		return fmt.Errorf("product needs at least one class")
	}
	seen := make(map[int32]bool, len(p.Classes))
	for _, c := range p.Classes {
		if seen[c.ID] {
			return fmt.Errorf("duplicate class id %d", c.ID)
		}
		seen[c.ID] = true
		if c.Price < 0 || c.Stock < 0 {
			return fmt.Errorf("class %d has a negative price or stock", c.ID)
		}
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, req *message.CreateProductRequest) *message.CreateProductResponse {
	p := req.Product
	if err := validProduct(&p); err != nil {
		return message.Fail[message.CreateProductResult](protocol.InvalidRequest, "%v", err)
	}
	if _, err := s.store.User(ctx, p.SellerID); err != nil {
		return fail[message.CreateProductResult](s, err)
	}
	p.SalesCount = 0
	id, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return fail[message.CreateProductResult](s, err)
	}
	return message.OK(message.CreateProductResult{ProductID: id})
}

// UpdateProduct replaces a product's listing. Ownership and sales history stay as stored.
func (s *Service) UpdateProduct(ctx context.Context, req *message.UpdateProductRequest) *message.UpdateProductResponse {
	p := req.Product
	if err := validProduct(&p); err != nil {
		return message.Fail[message.UpdateProductResult](protocol.InvalidRequest, "%v", err)
	}
	old, err := s.store.Product(ctx, p.ID)
	if err != nil {
		return fail[message.UpdateProductResult](s, err)
	}
	if p.SellerID != 0 && p.SellerID != old.SellerID {
		return message.Fail[message.UpdateProductResult](protocol.PermissionDenied, "product %d belongs to another seller", p.ID)
	}
	p.SellerID = old.SellerID
	p.SalesCount = old.SalesCount
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return fail[message.UpdateProductResult](s, err)
	}
	return message.OK(message.UpdateProductResult{})
}

func (s *Service) DeleteProduct(ctx context.Context, req *message.DeleteProductRequest) *message.DeleteProductResponse {
	if err := s.store.DeleteProduct(ctx, req.ProductID); err != nil {
		return fail[message.DeleteProductResult](s, err)
	}
	return message.OK(message.DeleteProductResult{})
}

func (s *Service) GetMyProducts(ctx context.Context, req *message.GetMyProductsRequest) *message.GetMyProductsResponse {
	if req.UserID == 0 {
		return message.Fail[message.MyProductsResult](protocol.InvalidRequest, "user id is required")
	}
	offset, size := s.page(req.Page, req.PageSize)
	products, total, err := s.store.Products(ctx, store.ProductFilter{SellerID: req.UserID, Offset: offset, Limit: int(size)})
	if err != nil {
		return fail[message.MyProductsResult](s, err)
	}
	return message.OK(message.MyProductsResult{Products: products, TotalCount: int32(total)})
}
