// Package sqlstore is a store.Store on database/sql, shipped with the pure Go SQLite
// driver. Nested values (product variants, order items) are kept as JSON columns.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"shopwire/model"
	"shopwire/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	nickname TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	default_address TEXT NOT NULL DEFAULT '',
	balance REAL NOT NULL DEFAULT 0,
	register_time TEXT NOT NULL DEFAULT '',
	level INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	seller_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	brand TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	brief_description TEXT NOT NULL DEFAULT '',
	specification TEXT NOT NULL DEFAULT '',
	sales_count INTEGER NOT NULL DEFAULT 0,
	image_urls TEXT NOT NULL DEFAULT '[]',
	classes TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS carts (
	user_id INTEGER PRIMARY KEY,
	items TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	seller_id INTEGER NOT NULL DEFAULT 0,
	total REAL NOT NULL,
	status INTEGER NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	items TEXT NOT NULL DEFAULT '[]'
);`

const (
	userColumns    = `id, username, password, nickname, avatar_url, phone, default_address, balance, register_time, level`
	productColumns = `id, seller_id, name, category, brand, description, brief_description, specification, sales_count, image_urls, classes`
	orderColumns   = `id, user_id, seller_id, total, status, address, items`
)

// Store implements store.Store over a *sql.DB.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening database: %w", err)
	}
	// one writer at a time; SQLite locks the whole file anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: setting busy timeout: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the tables.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlstore: creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Nickname, &u.AvatarURL, &u.Phone,
		&u.DefaultAddress, &u.Balance, &u.RegisterTime, &u.Level)
	return u, err
}

func scanProduct(row scanner) (model.Product, error) {
	var (
		p              model.Product
		urls, variants string
	)
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Category, &p.Brand, &p.Description,
		&p.BriefDescription, &p.Specification, &p.SalesCount, &urls, &variants)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(urls), &p.DescriptionImageURLs); err != nil {
		return p, fmt.Errorf("sqlstore: product %d image urls: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(variants), &p.Classes); err != nil {
		return p, fmt.Errorf("sqlstore: product %d classes: %w", p.ID, err)
	}
	return p, nil
}

func scanOrder(row scanner) (model.Order, error) {
	var (
		o     model.Order
		items string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.SellerID, &o.TotalAmount, &o.Status, &o.Address, &items)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return o, fmt.Errorf("sqlstore: order %d items: %w", o.ID, err)
	}
	return o, nil
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// the values stored here are plain structs and slices
		panic(err)
	}
	return string(b)
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", store.ErrNotFound, what, id)
	}
	return fmt.Errorf("sqlstore: %s %v: %w", what, id, err)
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (int32, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users
		(username, password, nickname, avatar_url, phone, default_address, balance, register_time, level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(username) DO NOTHING`,
		u.Username, u.Password, u.Nickname, u.AvatarURL, u.Phone, u.DefaultAddress, u.Balance, u.RegisterTime, u.Level)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: creating user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("%w: user %q", store.ErrDuplicate, u.Username)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: creating user: %w", err)
	}
	return int32(id), nil
}

func (s *Store) User(ctx context.Context, id int32) (model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return model.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (s *Store) UserByName(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return model.User{}, notFound(err, "user", username)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u model.User) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET username = ?, password = ?, nickname = ?, avatar_url = ?,
		phone = ?, default_address = ?, balance = ?, register_time = ?, level = ? WHERE id = ?`,
		u.Username, u.Password, u.Nickname, u.AvatarURL, u.Phone, u.DefaultAddress, u.Balance, u.RegisterTime, u.Level, u.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: updating user %d: %w", u.ID, err)
	}
	return mustAffect(res, "user", u.ID)
}

func mustAffect(res sql.Result, what string, id int32) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: %s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", store.ErrNotFound, what, id)
	}
	return nil
}

// Products filters by category and seller in SQL; the keyword match runs in Go so that
// it folds case the same way as the in-memory store.
func (s *Store) Products(ctx context.Context, f store.ProductFilter) ([]model.Product, int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products
		WHERE (? = '' OR category = ?) AND (? = 0 OR seller_id = ?) ORDER BY id`,
		f.Category, f.Category, f.SellerID, f.SellerID)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlstore: listing products: %w", err)
	}
	defer rows.Close()

	var matched []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		if store.MatchProduct(p, f) {
			matched = append(matched, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlstore: listing products: %w", err)
	}
	lo, hi := store.Page(len(matched), f.Offset, f.Limit)
	if lo == hi {
		return nil, len(matched), nil
	}
	return matched[lo:hi], len(matched), nil
}

func (s *Store) Product(ctx context.Context, id int32) (model.Product, error) {
	return s.product(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) product(ctx context.Context, q querier, id int32) (model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		return model.Product{}, notFound(err, "product", id)
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p model.Product) (int32, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO products
		(seller_id, name, category, brand, description, brief_description, specification, sales_count, image_urls, classes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SellerID, p.Name, p.Category, p.Brand, p.Description, p.BriefDescription, p.Specification, p.SalesCount,
		encodeJSON(p.DescriptionImageURLs), encodeJSON(p.Classes))
	if err != nil {
		return 0, fmt.Errorf("sqlstore: creating product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: creating product: %w", err)
	}
	return int32(id), nil
}

func (s *Store) UpdateProduct(ctx context.Context, p model.Product) error {
	return s.updateProduct(ctx, s.db, p)
}

func (s *Store) updateProduct(ctx context.Context, q querier, p model.Product) error {
	res, err := q.ExecContext(ctx, `UPDATE products SET seller_id = ?, name = ?, category = ?, brand = ?, description = ?,
		brief_description = ?, specification = ?, sales_count = ?, image_urls = ?, classes = ? WHERE id = ?`,
		p.SellerID, p.Name, p.Category, p.Brand, p.Description, p.BriefDescription, p.Specification, p.SalesCount,
		encodeJSON(p.DescriptionImageURLs), encodeJSON(p.Classes), p.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: updating product %d: %w", p.ID, err)
	}
	return mustAffect(res, "product", p.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id int32) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting product %d: %w", id, err)
	}
	return mustAffect(res, "product", id)
}

func (s *Store) Cart(ctx context.Context, userID int32) (model.Cart, error) {
	c := model.Cart{UserID: userID}
	var items string
	err := s.db.QueryRowContext(ctx, `SELECT items FROM carts WHERE user_id = ?`, userID).Scan(&items)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("sqlstore: cart of user %d: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(items), &c.Items); err != nil {
		return c, fmt.Errorf("sqlstore: cart of user %d: %w", userID, err)
	}
	return c, nil
}

func (s *Store) SaveCart(ctx context.Context, c model.Cart) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO carts (user_id, items) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET items = excluded.items`, c.UserID, encodeJSON(c.Items))
	if err != nil {
		return fmt.Errorf("sqlstore: saving cart of user %d: %w", c.UserID, err)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// moveStock adds sign*quantity to the stock of every item's variant.
func (s *Store) moveStock(ctx context.Context, tx *sql.Tx, items []model.OrderItem, sign int32, check bool) error {
	for _, it := range items {
		p, err := s.product(ctx, tx, it.ProductID)
		if err != nil {
			if !check && errors.Is(err, store.ErrNotFound) {
				continue
			}
			return err
		}
		c, ok := p.Class(it.ClassID)
		if !ok {
			if !check {
				continue
			}
			return fmt.Errorf("%w: class %d of product %d", store.ErrNotFound, it.ClassID, it.ProductID)
		}
		if check && c.Stock < it.Quantity {
			return fmt.Errorf("%w: %s has %d left", store.ErrInsufficientStock, c.Name, c.Stock)
		}
		c.Stock += sign * it.Quantity
		p.SalesCount -= sign * it.Quantity
		if err := s.updateProduct(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) adjustBalance(ctx context.Context, tx *sql.Tx, userID int32, delta float64) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + ? WHERE id = ?`, delta, userID)
	if err != nil {
		return fmt.Errorf("sqlstore: balance of user %d: %w", userID, err)
	}
	return mustAffect(res, "user", userID)
}

func (s *Store) PlaceOrder(ctx context.Context, o model.Order) (int32, error) {
	if err := store.CheckItems(o.Items); err != nil {
		return 0, err
	}
	var id int32
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var balance float64
		err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, o.UserID).Scan(&balance)
		if err != nil {
			return notFound(err, "user", o.UserID)
		}
		if err := s.moveStock(ctx, tx, o.Items, -1, true); err != nil {
			return err
		}
		if balance < o.TotalAmount {
			return fmt.Errorf("%w: %.2f < %.2f", store.ErrInsufficientBalance, balance, o.TotalAmount)
		}
		if err := s.adjustBalance(ctx, tx, o.UserID, -o.TotalAmount); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO orders (user_id, seller_id, total, status, address, items)
			VALUES (?, ?, ?, ?, ?, ?)`, o.UserID, o.SellerID, o.TotalAmount, o.Status, o.Address, encodeJSON(o.Items))
		if err != nil {
			return fmt.Errorf("sqlstore: inserting order: %w", err)
		}
		last, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlstore: inserting order: %w", err)
		}
		id = int32(last)
		if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE user_id = ?`, o.UserID); err != nil {
			return fmt.Errorf("sqlstore: clearing cart: %w", err)
		}
		return nil
	})
	return id, err
}

func (s *Store) Orders(ctx context.Context, f store.OrderFilter) ([]model.Order, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = ? AND (? = 0 OR status = ?)`,
		f.UserID, f.Status, f.Status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlstore: counting orders: %w", err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? AND (? = 0 OR status = ?)
		ORDER BY id DESC LIMIT ? OFFSET ?`, f.UserID, f.Status, f.Status, limit, max(f.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("sqlstore: listing orders: %w", err)
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlstore: listing orders: %w", err)
	}
	return orders, total, nil
}

func (s *Store) Order(ctx context.Context, id int32) (model.Order, error) {
	return s.order(ctx, s.db, id)
}

func (s *Store) order(ctx context.Context, q querier, id int32) (model.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return model.Order{}, notFound(err, "order", id)
	}
	return o, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, id int32, next model.OrderStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		o, err := s.order(ctx, tx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanMoveTo(next) {
			return fmt.Errorf("%w: %s to %s", store.ErrInvalidTransition, o.Status, next)
		}
		if next == model.Canceled {
			if err := s.moveStock(ctx, tx, o.Items, 1, false); err != nil {
				return err
			}
			if err := s.adjustBalance(ctx, tx, o.UserID, o.TotalAmount); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, next, id); err != nil {
			return fmt.Errorf("sqlstore: updating order %d: %w", id, err)
		}
		return nil
	})
}

func (s *Store) SetOrderTotal(ctx context.Context, id int32, total float64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		o, err := s.order(ctx, tx, id)
		if err != nil {
			return err
		}
		if o.Status != model.WaitToPay {
			return fmt.Errorf("%w: order %d is %s", store.ErrInvalidTransition, id, o.Status)
		}
		if err := s.adjustBalance(ctx, tx, o.UserID, o.TotalAmount-total); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE orders SET total = ? WHERE id = ?`, total, id); err != nil {
			return fmt.Errorf("sqlstore: updating order %d: %w", id, err)
		}
		return nil
	})
}
