package protocol

import "fmt"

// MessageType identifies the body layout of a frame.
//
// The enumeration is append-only: values are positional on the wire, so new operations
// go at the end and existing entries are never reordered or removed.
type MessageType uint16

const (
	Unknown MessageType = iota

	// Authentication
	LoginRequest
	LoginResponse
	RegisterRequest
	RegisterResponse
	LogoutRequest
	LogoutResponse

	// Users
	GetUserInfoRequest
	GetUserInfoResponse
	UpdateUserInfoRequest
	UpdateUserInfoResponse

	// Products
	GetProductListRequest
	GetProductListResponse
	GetProductDetailRequest
	GetProductDetailResponse
	CreateProductRequest
	CreateProductResponse
	UpdateProductRequest
	UpdateProductResponse
	DeleteProductRequest
	DeleteProductResponse
	GetMyProductsRequest
	GetMyProductsResponse

	// Cart
	GetCartRequest
	GetCartResponse
	AddToCartRequest
	AddToCartResponse
	UpdateCartItemRequest
	UpdateCartItemResponse
	RemoveCartItemRequest
	RemoveCartItemResponse
	ClearCartRequest
	ClearCartResponse

	// Orders
	CreateOrderRequest
	CreateOrderResponse
	GetOrderListRequest
	GetOrderListResponse
	GetOrderDetailRequest
	GetOrderDetailResponse
	UpdateOrderStatusRequest
	UpdateOrderStatusResponse
	CancelOrderRequest
	CancelOrderResponse

	// Images
	UploadImageRequest
	UploadImageResponse
	DownloadImageRequest
	DownloadImageResponse
	DeleteImageRequest
	DeleteImageResponse

	// Promotions
	ApplyDiscountRequest
	ApplyDiscountResponse
	ApplyCouponRequest
	ApplyCouponResponse

	// System
	Heartbeat
	ErrorResponse

	// Theme
	ChangeThemeRequest
	ChangeThemeResponse

	// ImageChunk carries one slice of an image upload or download.
	ImageChunk

	messageTypeEnd
)

var messageTypeNames = [...]string{
	Unknown:                   "UNKNOWN",
	LoginRequest:              "LOGIN_REQUEST",
	LoginResponse:             "LOGIN_RESPONSE",
	RegisterRequest:           "REGISTER_REQUEST",
	RegisterResponse:          "REGISTER_RESPONSE",
	LogoutRequest:             "LOGOUT_REQUEST",
	LogoutResponse:            "LOGOUT_RESPONSE",
	GetUserInfoRequest:        "GET_USER_INFO_REQUEST",
	GetUserInfoResponse:       "GET_USER_INFO_RESPONSE",
	UpdateUserInfoRequest:     "UPDATE_USER_INFO_REQUEST",
	UpdateUserInfoResponse:    "UPDATE_USER_INFO_RESPONSE",
	GetProductListRequest:     "GET_PRODUCT_LIST_REQUEST",
	GetProductListResponse:    "GET_PRODUCT_LIST_RESPONSE",
	GetProductDetailRequest:   "GET_PRODUCT_DETAIL_REQUEST",
	GetProductDetailResponse:  "GET_PRODUCT_DETAIL_RESPONSE",
	CreateProductRequest:      "CREATE_PRODUCT_REQUEST",
	CreateProductResponse:     "CREATE_PRODUCT_RESPONSE",
	UpdateProductRequest:      "UPDATE_PRODUCT_REQUEST",
	UpdateProductResponse:     "UPDATE_PRODUCT_RESPONSE",
	DeleteProductRequest:      "DELETE_PRODUCT_REQUEST",
	DeleteProductResponse:     "DELETE_PRODUCT_RESPONSE",
	GetMyProductsRequest:      "GET_MY_PRODUCTS_REQUEST",
	GetMyProductsResponse:     "GET_MY_PRODUCTS_RESPONSE",
	GetCartRequest:            "GET_CART_REQUEST",
	GetCartResponse:           "GET_CART_RESPONSE",
	AddToCartRequest:          "ADD_TO_CART_REQUEST",
	AddToCartResponse:         "ADD_TO_CART_RESPONSE",
	UpdateCartItemRequest:     "UPDATE_CART_ITEM_REQUEST",
	UpdateCartItemResponse:    "UPDATE_CART_ITEM_RESPONSE",
	RemoveCartItemRequest:     "REMOVE_CART_ITEM_REQUEST",
	RemoveCartItemResponse:    "REMOVE_CART_ITEM_RESPONSE",
	ClearCartRequest:          "CLEAR_CART_REQUEST",
	ClearCartResponse:         "CLEAR_CART_RESPONSE",
	CreateOrderRequest:        "CREATE_ORDER_REQUEST",
	CreateOrderResponse:       "CREATE_ORDER_RESPONSE",
	GetOrderListRequest:       "GET_ORDER_LIST_REQUEST",
	GetOrderListResponse:      "GET_ORDER_LIST_RESPONSE",
	GetOrderDetailRequest:     "GET_ORDER_DETAIL_REQUEST",
	GetOrderDetailResponse:    "GET_ORDER_DETAIL_RESPONSE",
	UpdateOrderStatusRequest:  "UPDATE_ORDER_STATUS_REQUEST",
	UpdateOrderStatusResponse: "UPDATE_ORDER_STATUS_RESPONSE",
	CancelOrderRequest:        "CANCEL_ORDER_REQUEST",
	CancelOrderResponse:       "CANCEL_ORDER_RESPONSE",
	UploadImageRequest:        "UPLOAD_IMAGE_REQUEST",
	UploadImageResponse:       "UPLOAD_IMAGE_RESPONSE",
	DownloadImageRequest:      "DOWNLOAD_IMAGE_REQUEST",
	DownloadImageResponse:     "DOWNLOAD_IMAGE_RESPONSE",
	DeleteImageRequest:        "DELETE_IMAGE_REQUEST",
	DeleteImageResponse:       "DELETE_IMAGE_RESPONSE",
	ApplyDiscountRequest:      "APPLY_DISCOUNT_REQUEST",
	ApplyDiscountResponse:     "APPLY_DISCOUNT_RESPONSE",
	ApplyCouponRequest:        "APPLY_COUPON_REQUEST",
	ApplyCouponResponse:       "APPLY_COUPON_RESPONSE",
	Heartbeat:                 "HEARTBEAT",
	ErrorResponse:             "ERROR_RESPONSE",
	ChangeThemeRequest:        "CHANGE_THEME_REQUEST",
	ChangeThemeResponse:       "CHANGE_THEME_RESPONSE",
	ImageChunk:                "IMAGE_CHUNK",
}

// Valid reports whether t is a known, non-zero message type.
func (t MessageType) Valid() bool {
	return t > Unknown && t < messageTypeEnd
}

func (t MessageType) String() string {
	if t < messageTypeEnd {
		return messageTypeNames[t]
	}
	return fmt.Sprintf("MessageType(%d)", uint16(t))
}

// ErrorCode is the status carried by every response.
type ErrorCode uint16

const (
	Success ErrorCode = iota
	UnknownError
	DatabaseError
	NetworkError
	AuthenticationFailed
	PermissionDenied
	InvalidRequest
	ResourceNotFound
	InsufficientBalance
	InsufficientStock
	InvalidImageFormat
	ImageTooLarge
	OperationTimeout

	errorCodeEnd
)

var errorCodeNames = [...]string{
	Success:              "SUCCESS",
	UnknownError:         "UNKNOWN_ERROR",
	DatabaseError:        "DATABASE_ERROR",
	NetworkError:         "NETWORK_ERROR",
	AuthenticationFailed: "AUTHENTICATION_FAILED",
	PermissionDenied:     "PERMISSION_DENIED",
	InvalidRequest:       "INVALID_REQUEST",
	ResourceNotFound:     "RESOURCE_NOT_FOUND",
	InsufficientBalance:  "INSUFFICIENT_BALANCE",
	InsufficientStock:    "INSUFFICIENT_STOCK",
	InvalidImageFormat:   "INVALID_IMAGE_FORMAT",
	ImageTooLarge:        "IMAGE_TOO_LARGE",
	OperationTimeout:     "OPERATION_TIMEOUT",
}

func (c ErrorCode) Valid() bool {
	return c < errorCodeEnd
}

func (c ErrorCode) String() string {
	if c.Valid() {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", uint16(c))
}

// ImageType says what an image is attached to.
type ImageType uint8

const (
	UserAvatar ImageType = iota + 1
	ProductMain
	ProductDetail
	ProductThumbnail
)

func (t ImageType) Valid() bool {
	return t >= UserAvatar && t <= ProductThumbnail
}

func (t ImageType) String() string {
	switch t {
	case UserAvatar:
		return "USER_AVATAR"
	case ProductMain:
		return "PRODUCT_MAIN"
	case ProductDetail:
		return "PRODUCT_DETAIL"
	case ProductThumbnail:
		return "PRODUCT_THUMBNAIL"
	}
	return fmt.Sprintf("ImageType(%d)", uint8(t))
}
