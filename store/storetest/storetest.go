// Package storetest checks any store.Store against the behaviour the shop relies on.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopwire/model"
	"shopwire/store"
)

// Run runs the suite; newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("products", func(t *testing.T) { testProducts(t, newStore(t)) })
	t.Run("carts", func(t *testing.T) { testCarts(t, newStore(t)) })
	t.Run("place order", func(t *testing.T) { testPlaceOrder(t, newStore(t)) })
	t.Run("order status", func(t *testing.T) { testOrderStatus(t, newStore(t)) })
}

func seed(t *testing.T, s store.Store) (user, product int32) {
	t.Helper()
	ctx := context.Background()
	user, err := s.CreateUser(ctx, model.User{Username: "alice", Password: "pw", Balance: 100})
	require.NoError(t, err)
	product, err = s.CreateProduct(ctx, model.Product{
		Name:     "Teapot",
		Category: "kitchen",
		SellerID: 9,
		Classes: []model.ProductClass{
			{ID: 1, Name: "small", Price: 10, Stock: 5},
			{ID: 2, Name: "large", Price: 30, Stock: 0},
		},
	})
	require.NoError(t, err)
	return user, product
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	id, err := s.CreateUser(ctx, model.User{Username: "alice", Password: "pw", Balance: 12.5})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = s.CreateUser(ctx, model.User{Username: "alice"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	u, err := s.UserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, 12.5, u.Balance)

	u.Nickname = "Al"
	require.NoError(t, s.UpdateUser(ctx, u))
	u, err = s.User(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Al", u.Nickname)

	_, err = s.User(ctx, id+100)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UserByName(ctx, "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testProducts(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, name := range []string{"Red Mug", "Blue Mug", "Green Plate", "Mug Rack"} {
		cat := "kitchen"
		if i == 3 {
			cat = "storage"
		}
		_, err := s.CreateProduct(ctx, model.Product{Name: name, Category: cat, SellerID: int32(i % 2),
			Classes: []model.ProductClass{{ID: 1, Stock: 1, Price: 2}}})
		require.NoError(t, err)
	}

	testCases := []struct {
		name  string
		f     store.ProductFilter
		names []string
		total int
	}{
		{name: "all", f: store.ProductFilter{}, names: []string{"Red Mug", "Blue Mug", "Green Plate", "Mug Rack"}, total: 4},
		{name: "category", f: store.ProductFilter{Category: "kitchen"}, names: []string{"Red Mug", "Blue Mug", "Green Plate"}, total: 3},
		{name: "keyword", f: store.ProductFilter{Keyword: "mug"}, names: []string{"Red Mug", "Blue Mug", "Mug Rack"}, total: 3},
		{name: "page", f: store.ProductFilter{Keyword: "mug", Offset: 2, Limit: 2}, names: []string{"Mug Rack"}, total: 3},
		{name: "seller", f: store.ProductFilter{SellerID: 1}, names: []string{"Blue Mug", "Mug Rack"}, total: 2},
		{name: "past the end", f: store.ProductFilter{Offset: 10, Limit: 2}, total: 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ps, total, err := s.Products(ctx, tc.f)
			require.NoError(t, err)
			assert.Equal(t, tc.total, total)
			var names []string
			for _, p := range ps {
				names = append(names, p.Name)
			}
			assert.Equal(t, tc.names, names)
		})
	}

	ps, _, err := s.Products(ctx, store.ProductFilter{Keyword: "plate"})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	p := ps[0]
	p.Brand = "Acme"
	p.Classes[0].Stock = 7
	require.NoError(t, s.UpdateProduct(ctx, p))
	got, err := s.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Brand)
	assert.Equal(t, int32(7), got.Classes[0].Stock)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	_, err = s.Product(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, p.ID), store.ErrNotFound)
}

func testCarts(t *testing.T, s store.Store) {
	ctx := context.Background()
	c, err := s.Cart(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), c.UserID)
	assert.Empty(t, c.Items)

	c.Items = []model.OrderItem{{ProductID: 1, ClassID: 2, Quantity: 3}}
	require.NoError(t, s.SaveCart(ctx, c))
	c, err = s.Cart(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []model.OrderItem{{ProductID: 1, ClassID: 2, Quantity: 3}}, c.Items)
}

func testPlaceOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, product := seed(t, s)
	require.NoError(t, s.SaveCart(ctx, model.Cart{UserID: user, Items: []model.OrderItem{{ProductID: product, ClassID: 1, Quantity: 2}}}))

	// out of stock: nothing changes
	_, err := s.PlaceOrder(ctx, model.Order{UserID: user, Status: model.WaitToPay, TotalAmount: 30,
		Items: []model.OrderItem{{ProductID: product, ClassID: 2, Quantity: 1}}})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	// too expensive: nothing changes
	_, err = s.PlaceOrder(ctx, model.Order{UserID: user, Status: model.WaitToPay, TotalAmount: 1000,
		Items: []model.OrderItem{{ProductID: product, ClassID: 1, Quantity: 2}}})
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	// malformed item lists: nothing changes
	for _, items := range [][]model.OrderItem{
		{{ProductID: product, ClassID: 1, Quantity: 0}},
		{{ProductID: product, ClassID: 1, Quantity: -2}},
		{{ProductID: product, ClassID: 1, Quantity: 3}, {ProductID: product, ClassID: 1, Quantity: 3}},
	} {
		_, err = s.PlaceOrder(ctx, model.Order{UserID: user, Status: model.WaitToPay, TotalAmount: 0, Items: items})
		assert.ErrorIs(t, err, store.ErrInvalidItem)
	}

	p, err := s.Product(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, int32(5), p.Classes[0].Stock)
	u, err := s.User(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 100.0, u.Balance)
	c, err := s.Cart(ctx, user)
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)

	id, err := s.PlaceOrder(ctx, model.Order{UserID: user, SellerID: 9, Status: model.WaitToPay, TotalAmount: 20, Address: "1 Main St",
		Items: []model.OrderItem{{ProductID: product, ClassID: 1, Quantity: 2}}})
	require.NoError(t, err)

	o, err := s.Order(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.WaitToPay, o.Status)
	assert.Equal(t, "1 Main St", o.Address)
	assert.Equal(t, 20.0, o.TotalAmount)

	p, err = s.Product(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, int32(3), p.Classes[0].Stock)
	assert.Equal(t, int32(2), p.SalesCount)
	u, err = s.User(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 80.0, u.Balance)
	c, err = s.Cart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	orders, total, err := s.Orders(ctx, store.OrderFilter{UserID: user})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].ID)

	_, total, err = s.Orders(ctx, store.OrderFilter{UserID: user, Status: model.Shipping})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func testOrderStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, product := seed(t, s)
	place := func() int32 {
		id, err := s.PlaceOrder(ctx, model.Order{UserID: user, Status: model.WaitToPay, TotalAmount: 10,
			Items: []model.OrderItem{{ProductID: product, ClassID: 1, Quantity: 1}}})
		require.NoError(t, err)
		return id
	}

	first := place()
	assert.ErrorIs(t, s.SetOrderStatus(ctx, first, model.Shipping), store.ErrInvalidTransition)
	require.NoError(t, s.SetOrderStatus(ctx, first, model.Collecting))
	require.NoError(t, s.SetOrderStatus(ctx, first, model.Shipping))
	assert.ErrorIs(t, s.SetOrderStatus(ctx, first, model.Canceled), store.ErrInvalidTransition)
	assert.ErrorIs(t, s.SetOrderTotal(ctx, first, 5), store.ErrInvalidTransition)

	second := place()
	require.NoError(t, s.SetOrderTotal(ctx, second, 8))
	u, err := s.User(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 82.0, u.Balance)

	require.NoError(t, s.SetOrderStatus(ctx, second, model.Canceled))
	o, err := s.Order(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, model.Canceled, o.Status)
	assert.ErrorIs(t, s.SetOrderStatus(ctx, second, model.Collecting), store.ErrInvalidTransition)

	// cancelling gave back the stock and the money
	p, err := s.Product(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, int32(4), p.Classes[0].Stock)
	u, err = s.User(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 90.0, u.Balance)

	assert.ErrorIs(t, s.SetOrderStatus(ctx, 999, model.Collecting), store.ErrNotFound)
}
