package message

import (
	"fmt"

	"shopwire/protocol"
)

type entry struct {
	newBody  func() Body
	response protocol.MessageType // set for request types only
}

var catalog = make(map[protocol.MessageType]entry)

func pair(req, resp func() Body) {
	reqType, respType := req().Type(), resp().Type()
	if _, dup := catalog[reqType]; dup {
		panic(fmt.Sprintf("message: %s registered twice", reqType))
	}
	catalog[reqType] = entry{newBody: req, response: respType}
	catalog[respType] = entry{newBody: resp}
}

func single(b func() Body) {
	catalog[b().Type()] = entry{newBody: b}
}

func init() {
	pair(func() Body { return new(LoginRequest) }, func() Body { return new(LoginResponse) })
	pair(func() Body { return new(RegisterRequest) }, func() Body { return new(RegisterResponse) })
	pair(func() Body { return new(LogoutRequest) }, func() Body { return new(LogoutResponse) })
	pair(func() Body { return new(GetUserInfoRequest) }, func() Body { return new(GetUserInfoResponse) })
	pair(func() Body { return new(UpdateUserInfoRequest) }, func() Body { return new(UpdateUserInfoResponse) })

	pair(func() Body { return new(GetProductListRequest) }, func() Body { return new(GetProductListResponse) })
	pair(func() Body { return new(GetProductDetailRequest) }, func() Body { return new(GetProductDetailResponse) })
	pair(func() Body { return new(CreateProductRequest) }, func() Body { return new(CreateProductResponse) })
	pair(func() Body { return new(UpdateProductRequest) }, func() Body { return new(UpdateProductResponse) })
	pair(func() Body { return new(DeleteProductRequest) }, func() Body { return new(DeleteProductResponse) })
	pair(func() Body { return new(GetMyProductsRequest) }, func() Body { return new(GetMyProductsResponse) })

	pair(func() Body { return new(GetCartRequest) }, func() Body { return new(GetCartResponse) })
	pair(func() Body { return new(AddToCartRequest) }, func() Body { return new(AddToCartResponse) })
	pair(func() Body { return new(UpdateCartItemRequest) }, func() Body { return new(UpdateCartItemResponse) })
	pair(func() Body { return new(RemoveCartItemRequest) }, func() Body { return new(RemoveCartItemResponse) })
	pair(func() Body { return new(ClearCartRequest) }, func() Body { return new(ClearCartResponse) })

	pair(func() Body { return new(CreateOrderRequest) }, func() Body { return new(CreateOrderResponse) })
	pair(func() Body { return new(GetOrderListRequest) }, func() Body { return new(GetOrderListResponse) })
	pair(func() Body { return new(GetOrderDetailRequest) }, func() Body { return new(GetOrderDetailResponse) })
	pair(func() Body { return new(UpdateOrderStatusRequest) }, func() Body { return new(UpdateOrderStatusResponse) })
	pair(func() Body { return new(CancelOrderRequest) }, func() Body { return new(CancelOrderResponse) })

	pair(func() Body { return new(UploadImageRequest) }, func() Body { return new(UploadImageResponse) })
	pair(func() Body { return new(DownloadImageRequest) }, func() Body { return new(DownloadImageResponse) })
	pair(func() Body { return new(DeleteImageRequest) }, func() Body { return new(DeleteImageResponse) })

	pair(func() Body { return new(ApplyDiscountRequest) }, func() Body { return new(ApplyDiscountResponse) })
	pair(func() Body { return new(ApplyCouponRequest) }, func() Body { return new(ApplyCouponResponse) })
	pair(func() Body { return new(ChangeThemeRequest) }, func() Body { return new(ChangeThemeResponse) })

	single(func() Body { return new(Heartbeat) })
	single(func() Body { return new(ErrorResponse) })
	single(func() Body { return new(ImageChunk) })
}

// New allocates an empty body for t.
func New(t protocol.MessageType) (Body, error) {
	e, ok := catalog[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return e.newBody(), nil
}

// IsRequest reports whether t opens a request/response exchange.
func IsRequest(t protocol.MessageType) bool {
	e, ok := catalog[t]
	return ok && e.response != protocol.Unknown
}

// ResponseTypeOf returns the single response type answering request type req.
func ResponseTypeOf(req protocol.MessageType) (protocol.MessageType, bool) {
	e, ok := catalog[req]
	if !ok || e.response == protocol.Unknown {
		return protocol.Unknown, false
	}
	return e.response, true
}

// CheckResponse verifies that got is an acceptable answer to a request of type req:
// its paired response type, or the shared ERROR_RESPONSE fallback.
func CheckResponse(req, got protocol.MessageType) error {
	if got == protocol.ErrorResponse {
		return nil
	}
	want, ok := ResponseTypeOf(req)
	if !ok {
		return fmt.Errorf("%w: %s is not a request", ErrTypeMismatch, req)
	}
	if got != want {
		return fmt.Errorf("%w: %s answered with %s, want %s", ErrTypeMismatch, req, got, want)
	}
	return nil
}
