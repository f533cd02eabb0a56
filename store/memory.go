package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"shopwire/model"
)

// Memory is a Store held in process memory.
type Memory struct {
	mu       sync.RWMutex
	users    map[int32]model.User
	byName   map[string]int32
	products map[int32]model.Product
	carts    map[int32]model.Cart
	orders   map[int32]model.Order

	nextUser, nextProduct, nextOrder int32
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[int32]model.User),
		byName:   make(map[string]int32),
		products: make(map[int32]model.Product),
		carts:    make(map[int32]model.Cart),
		orders:   make(map[int32]model.Order),
	}
}

func (m *Memory) CreateUser(_ context.Context, u model.User) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[u.Username]; ok {
		return 0, fmt.Errorf("%w: user %q", ErrDuplicate, u.Username)
	}
	m.nextUser++
	u.ID = m.nextUser
	m.users[u.ID] = u
	m.byName[u.Username] = u.ID
	return u.ID, nil
}

func (m *Memory) User(_ context.Context, id int32) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return u, nil
}

func (m *Memory) UserByName(ctx context.Context, username string) (model.User, error) {
	m.mu.RLock()
	id, ok := m.byName[username]
	m.mu.RUnlock()
	if !ok {
		return model.User{}, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return m.User(ctx, id)
}

func (m *Memory) UpdateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.ID]
	if !ok {
		return fmt.Errorf("%w: user %d", ErrNotFound, u.ID)
	}
	if old.Username != u.Username {
		if _, taken := m.byName[u.Username]; taken {
			return fmt.Errorf("%w: user %q", ErrDuplicate, u.Username)
		}
		delete(m.byName, old.Username)
		m.byName[u.Username] = u.ID
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) Products(_ context.Context, f ProductFilter) ([]model.Product, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []model.Product
	for _, p := range m.products {
		if MatchProduct(p, f) {
			matched = append(matched, cloneProduct(p))
		}
	}
	slices.SortFunc(matched, func(a, b model.Product) int { return int(a.ID - b.ID) })
	lo, hi := Page(len(matched), f.Offset, f.Limit)
	if lo == hi {
		return nil, len(matched), nil
	}
	return matched[lo:hi], len(matched), nil
}

// MatchProduct reports whether p passes f's field filters.
func MatchProduct(p model.Product, f ProductFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.SellerID != 0 && p.SellerID != f.SellerID {
		return false
	}
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		if !strings.Contains(strings.ToLower(p.Name), kw) && !strings.Contains(strings.ToLower(p.Description), kw) {
			return false
		}
	}
	return true
}

func (m *Memory) Product(_ context.Context, id int32) (model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return cloneProduct(p), nil
}

func (m *Memory) CreateProduct(_ context.Context, p model.Product) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProduct++
	p.ID = m.nextProduct
	m.products[p.ID] = cloneProduct(p)
	return p.ID, nil
}

func (m *Memory) UpdateProduct(_ context.Context, p model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return fmt.Errorf("%w: product %d", ErrNotFound, p.ID)
	}
	m.products[p.ID] = cloneProduct(p)
	return nil
}

func (m *Memory) DeleteProduct(_ context.Context, id int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) Cart(_ context.Context, userID int32) (model.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return model.Cart{UserID: userID}, nil
	}
	c.Items = slices.Clone(c.Items)
	return c, nil
}

func (m *Memory) SaveCart(_ context.Context, c model.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Items = slices.Clone(c.Items)
	m.carts[c.UserID] = c
	return nil
}

func (m *Memory) PlaceOrder(_ context.Context, o model.Order) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := CheckItems(o.Items); err != nil {
		return 0, err
	}
	u, ok := m.users[o.UserID]
	if !ok {
		return 0, fmt.Errorf("%w: user %d", ErrNotFound, o.UserID)
	}
	for _, it := range o.Items {
		p, ok := m.products[it.ProductID]
		if !ok {
			return 0, fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
		}
		c, ok := p.Class(it.ClassID)
		if !ok {
			return 0, fmt.Errorf("%w: class %d of product %d", ErrNotFound, it.ClassID, it.ProductID)
		}
		if c.Stock < it.Quantity {
			return 0, fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, c.Name, c.Stock)
		}
	}
	if u.Balance < o.TotalAmount {
		return 0, fmt.Errorf("%w: %.2f < %.2f", ErrInsufficientBalance, u.Balance, o.TotalAmount)
	}

	// checks passed, nothing below can fail
	m.moveStock(o.Items, -1)
	u.Balance -= o.TotalAmount
	m.users[u.ID] = u
	m.nextOrder++
	o.ID = m.nextOrder
	o.Items = slices.Clone(o.Items)
	m.orders[o.ID] = o
	delete(m.carts, o.UserID)
	return o.ID, nil
}

// moveStock adds sign*quantity to every item's class stock and sales count.
func (m *Memory) moveStock(items []model.OrderItem, sign int32) {
	for _, it := range items {
		p, ok := m.products[it.ProductID]
		if !ok {
			continue
		}
		p = cloneProduct(p)
		if c, ok := p.Class(it.ClassID); ok {
			c.Stock += sign * it.Quantity
			p.SalesCount -= sign * it.Quantity
		}
		m.products[p.ID] = p
	}
}

func (m *Memory) Orders(_ context.Context, f OrderFilter) ([]model.Order, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []model.Order
	for _, o := range m.orders {
		if o.UserID == f.UserID && (f.Status == 0 || o.Status == f.Status) {
			o.Items = slices.Clone(o.Items)
			matched = append(matched, o)
		}
	}
	slices.SortFunc(matched, func(a, b model.Order) int { return int(b.ID - a.ID) })
	lo, hi := Page(len(matched), f.Offset, f.Limit)
	if lo == hi {
		return nil, len(matched), nil
	}
	return matched[lo:hi], len(matched), nil
}

func (m *Memory) Order(_ context.Context, id int32) (model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	o.Items = slices.Clone(o.Items)
	return o, nil
}

func (m *Memory) SetOrderStatus(_ context.Context, id int32, next model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if !o.Status.CanMoveTo(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, next)
	}
	if next == model.Canceled {
		m.moveStock(o.Items, 1)
		if u, ok := m.users[o.UserID]; ok {
			u.Balance += o.TotalAmount
			m.users[u.ID] = u
		}
	}
	o.Status = next
	m.orders[id] = o
	return nil
}

func (m *Memory) SetOrderTotal(_ context.Context, id int32, total float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if o.Status != model.WaitToPay {
		return fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, id, o.Status)
	}
	if u, ok := m.users[o.UserID]; ok {
		u.Balance += o.TotalAmount - total
		m.users[u.ID] = u
	}
	o.TotalAmount = total
	m.orders[id] = o
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func cloneProduct(p model.Product) model.Product {
	p.Classes = slices.Clone(p.Classes)
	p.DescriptionImageURLs = slices.Clone(p.DescriptionImageURLs)
	return p
}
