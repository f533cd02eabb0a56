package client

import (
	"context"

	"shopwire/message"
	"shopwire/model"
)

func (c *Client) Login(ctx context.Context, username, password string) (model.User, error) {
	r, err := do[message.LoginResult](ctx, c, &message.LoginRequest{Username: username, Password: password})
	return r.User, err
}

func (c *Client) Register(ctx context.Context, req message.RegisterRequest) (int32, error) {
	r, err := do[message.RegisterResult](ctx, c, &req)
	return r.UserID, err
}

func (c *Client) Logout(ctx context.Context, userID int32) error {
	_, err := do[message.LogoutResult](ctx, c, &message.LogoutRequest{UserID: userID})
	return err
}

func (c *Client) UserInfo(ctx context.Context, userID int32) (model.User, error) {
	r, err := do[message.UserInfoResult](ctx, c, &message.GetUserInfoRequest{UserID: userID})
	return r.User, err
}

func (c *Client) UpdateUserInfo(ctx context.Context, req message.UpdateUserInfoRequest) error {
	_, err := do[message.UpdateUserInfoResult](ctx, c, &req)
	return err
}

// ChangeTheme returns the theme now in effect.
func (c *Client) ChangeTheme(ctx context.Context, userID int32, theme string) (string, error) {
	r, err := do[message.ChangeThemeResult](ctx, c, &message.ChangeThemeRequest{UserID: userID, ThemeName: theme})
	return r.CurrentTheme, err
}

func (c *Client) Products(ctx context.Context, req message.GetProductListRequest) (message.ProductListResult, error) {
	return do[message.ProductListResult](ctx, c, &req)
}

func (c *Client) Product(ctx context.Context, id int32) (model.Product, error) {
	r, err := do[message.ProductDetailResult](ctx, c, &message.GetProductDetailRequest{ProductID: id})
	return r.Product, err
}

func (c *Client) CreateProduct(ctx context.Context, p model.Product) (int32, error) {
	r, err := do[message.CreateProductResult](ctx, c, &message.CreateProductRequest{Product: p})
	return r.ProductID, err
}

func (c *Client) UpdateProduct(ctx context.Context, p model.Product) error {
	_, err := do[message.UpdateProductResult](ctx, c, &message.UpdateProductRequest{Product: p})
	return err
}

func (c *Client) DeleteProduct(ctx context.Context, id int32) error {
	_, err := do[message.DeleteProductResult](ctx, c, &message.DeleteProductRequest{ProductID: id})
	return err
}

func (c *Client) MyProducts(ctx context.Context, req message.GetMyProductsRequest) (message.MyProductsResult, error) {
	return do[message.MyProductsResult](ctx, c, &req)
}

func (c *Client) Cart(ctx context.Context, userID int32) (model.Cart, error) {
	r, err := do[message.CartResult](ctx, c, &message.GetCartRequest{UserID: userID})
	return r.Cart, err
}

func (c *Client) AddToCart(ctx context.Context, userID int32, item model.OrderItem) error {
	_, err := do[message.AddToCartResult](ctx, c, &message.AddToCartRequest{UserID: userID, Item: item})
	return err
}

func (c *Client) UpdateCartItem(ctx context.Context, req message.UpdateCartItemRequest) error {
	_, err := do[message.UpdateCartItemResult](ctx, c, &req)
	return err
}

func (c *Client) RemoveCartItem(ctx context.Context, userID, productID, classID int32) error {
	_, err := do[message.RemoveCartItemResult](ctx, c, &message.RemoveCartItemRequest{
		UserID:    userID,
		ProductID: productID,
		ClassID:   classID,
	})
	return err
}

func (c *Client) ClearCart(ctx context.Context, userID int32) error {
	_, err := do[message.ClearCartResult](ctx, c, &message.ClearCartRequest{UserID: userID})
	return err
}

func (c *Client) CreateOrder(ctx context.Context, req message.CreateOrderRequest) (message.CreateOrderResult, error) {
	return do[message.CreateOrderResult](ctx, c, &req)
}

func (c *Client) Orders(ctx context.Context, req message.GetOrderListRequest) (message.OrderListResult, error) {
	return do[message.OrderListResult](ctx, c, &req)
}

func (c *Client) Order(ctx context.Context, id int32) (model.Order, error) {
	r, err := do[message.OrderDetailResult](ctx, c, &message.GetOrderDetailRequest{OrderID: id})
	return r.Order, err
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int32, status model.OrderStatus) error {
	_, err := do[message.UpdateOrderStatusResult](ctx, c, &message.UpdateOrderStatusRequest{OrderID: id, NewStatus: status})
	return err
}

func (c *Client) CancelOrder(ctx context.Context, id int32) error {
	_, err := do[message.CancelOrderResult](ctx, c, &message.CancelOrderRequest{OrderID: id})
	return err
}

// ApplyDiscount returns the order's new total.
func (c *Client) ApplyDiscount(ctx context.Context, orderID int32, rate float64) (float64, error) {
	r, err := do[message.ApplyDiscountResult](ctx, c, &message.ApplyDiscountRequest{OrderID: orderID, DiscountRate: rate})
	return r.NewTotal, err
}

func (c *Client) ApplyCoupon(ctx context.Context, userID int32, code string) (message.ApplyCouponResult, error) {
	return do[message.ApplyCouponResult](ctx, c, &message.ApplyCouponRequest{UserID: userID, CouponCode: code})
}

func (c *Client) DeleteImage(ctx context.Context, id string) error {
	_, err := do[message.DeleteImageResult](ctx, c, &message.DeleteImageRequest{ImageID: id})
	return err
}
