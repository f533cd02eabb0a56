// Package shop is the business side of the server: one handler per operation, over a
// store.Store for records and an imagestore.Store for image bytes.
//
// Every failure is reported in the typed response's status; handlers never return Go
// errors to the transport.
package shop

import (
	"context"
	"errors"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"shopwire/imagestore"
	"shopwire/message"
	"shopwire/protocol"
	"shopwire/server"
	"shopwire/store"
)

// Coupon is a fixed amount off an order.
type Coupon struct {
	Amount      float64
	Description string
}

// DefaultCoupons is the coupon table used when Options.Coupons is nil.
var DefaultCoupons = map[string]Coupon{
	"WELCOME10": {Amount: 10, Description: "10 off your first order"},
	"SAVE5":     {Amount: 5, Description: "5 off any order"},
	"FREESHIP":  {Amount: 8, Description: "shipping on us"},
}

type Options struct {
	MaxImageSize    int
	DefaultPageSize int32
	MaxPageSize     int32

	// SessionTTL is how long a login stays online without activity.
	SessionTTL   time.Duration
	DefaultTheme string

	// InitialBalance is credited to every newly registered account.
	InitialBalance float64
	Coupons        map[string]Coupon
	Logger         zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxImageSize:    10 << 20,
		DefaultPageSize: 20,
		MaxPageSize:     100,
		SessionTTL:      30 * time.Minute,
		DefaultTheme:    "light",
		Coupons:         DefaultCoupons,
		Logger:          zerolog.Nop(),
	}
}

type Service struct {
	store  store.Store
	images *imagestore.Store
	opts   Options
	log    zerolog.Logger

	sessions *cache.Cache // user id → login time
	themes   *cache.Cache // user id → theme name
}

func New(st store.Store, images *imagestore.Store, opts Options) *Service {
	if opts.Coupons == nil {
		opts.Coupons = DefaultCoupons
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	return &Service{
		store:    st,
		images:   images,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "shop").Logger(),
		sessions: cache.New(opts.SessionTTL, time.Minute),
		themes:   cache.New(cache.NoExpiration, 0),
	}
}

// Register installs a handler for every operation on mux.
func (s *Service) Register(mux *server.Mux) {
	server.Handle(mux, s.Login)
	server.Handle(mux, s.RegisterUser)
	server.Handle(mux, s.Logout)
	server.Handle(mux, s.GetUserInfo)
	server.Handle(mux, s.UpdateUserInfo)
	server.Handle(mux, s.ChangeTheme)

	server.Handle(mux, s.GetProductList)
	server.Handle(mux, s.GetProductDetail)
	server.Handle(mux, s.CreateProduct)
	server.Handle(mux, s.UpdateProduct)
	server.Handle(mux, s.DeleteProduct)
	server.Handle(mux, s.GetMyProducts)

	server.Handle(mux, s.GetCart)
	server.Handle(mux, s.AddToCart)
	server.Handle(mux, s.UpdateCartItem)
	server.Handle(mux, s.RemoveCartItem)
	server.Handle(mux, s.ClearCart)

	server.Handle(mux, s.CreateOrder)
	server.Handle(mux, s.GetOrderList)
	server.Handle(mux, s.GetOrderDetail)
	server.Handle(mux, s.UpdateOrderStatus)
	server.Handle(mux, s.CancelOrder)
	server.Handle(mux, s.ApplyDiscount)
	server.Handle(mux, s.ApplyCoupon)

	server.Handle(mux, s.UploadImage)
	server.Handle(mux, s.DownloadImage)
	server.Handle(mux, s.DeleteImage)
}

// fail maps err onto the response status.
func fail[T any](s *Service, err error) *message.Response[T] {
	code := codeOf(err)
	if code == protocol.DatabaseError {
		s.log.Error().Err(err).Msg("store failure")
	}
	return message.Fail[T](code, "%v", err)
}

func codeOf(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, imagestore.ErrNotFound):
		return protocol.ResourceNotFound
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrInvalidItem):
		return protocol.InvalidRequest
	case errors.Is(err, store.ErrInsufficientStock):
		return protocol.InsufficientStock
	case errors.Is(err, store.ErrInsufficientBalance):
		return protocol.InsufficientBalance
	case errors.Is(err, imagestore.ErrInvalidFormat):
		return protocol.InvalidImageFormat
	case errors.Is(err, imagestore.ErrTooLarge):
		return protocol.ImageTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.OperationTimeout
	}
	return protocol.DatabaseError
}

// page turns a 1-based page request into an offset and a clamped page size.
func (s *Service) page(page, size int32) (offset int, limit int32) {
	if size <= 0 {
		size = s.opts.DefaultPageSize
	}
	if s.opts.MaxPageSize > 0 && size > s.opts.MaxPageSize {
		size = s.opts.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	return int(page-1) * int(size), size
}
