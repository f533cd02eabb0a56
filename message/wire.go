package message

import (
	"fmt"

	"shopwire/codec"
	"shopwire/model"
)

// Lists carry only a count, so an empty list always decodes as nil.

// Smallest encoded size of each list element, used to bound list counts.
const (
	minClassSize   = 4 + 4 + 2 + 2 + 8
	minProductSize = 4 + 2 + 2 + 4 + 2 + 2 + 4 + 2 + 2 + 4 + 4
	minItemSize    = 4 + 4 + 4
	minOrderSize   = 4 + 4 + 4 + 8 + 4 + 2 + 4
)

func putUser(w *codec.Writer, u *model.User) {
	w.Int32(u.ID)
	w.String(u.Username)
	w.String(u.Password)
	w.String(u.Nickname)
	w.String(u.AvatarURL)
	w.String(u.Phone)
	w.String(u.DefaultAddress)
	w.Float64(u.Balance)
	w.String(u.RegisterTime)
	w.Int32(u.Level)
}

func getUser(r *codec.Reader, u *model.User) (err error) {
	if u.ID, err = r.Int32(); err != nil {
		return err
	}
	for _, s := range []*string{&u.Username, &u.Password, &u.Nickname, &u.AvatarURL, &u.Phone, &u.DefaultAddress} {
		if *s, err = r.String(); err != nil {
			return err
		}
	}
	if u.Balance, err = r.Float64(); err != nil {
		return err
	}
	if u.RegisterTime, err = r.String(); err != nil {
		return err
	}
	u.Level, err = r.Int32()
	return err
}

func putClass(w *codec.Writer, c *model.ProductClass) {
	w.Int32(c.ID)
	w.Int32(c.Stock)
	w.String(c.SmallImageURL)
	w.String(c.Name)
	w.Float64(c.Price)
}

func getClass(r *codec.Reader, c *model.ProductClass) (err error) {
	if c.ID, err = r.Int32(); err != nil {
		return err
	}
	if c.Stock, err = r.Int32(); err != nil {
		return err
	}
	if c.SmallImageURL, err = r.String(); err != nil {
		return err
	}
	if c.Name, err = r.String(); err != nil {
		return err
	}
	c.Price, err = r.Float64()
	return err
}

func putProduct(w *codec.Writer, p *model.Product) {
	w.Int32(p.ID)
	w.String(p.Description)
	w.String(p.BriefDescription)
	w.Strings(p.DescriptionImageURLs)
	w.String(p.Specification)
	w.String(p.Brand)
	w.Count(len(p.Classes))
	for i := range p.Classes {
		putClass(w, &p.Classes[i])
	}
	w.String(p.Name)
	w.String(p.Category)
	w.Int32(p.SellerID)
	w.Int32(p.SalesCount)
}

func getProduct(r *codec.Reader, p *model.Product) (err error) {
	if p.ID, err = r.Int32(); err != nil {
		return err
	}
	if p.Description, err = r.String(); err != nil {
		return err
	}
	if p.BriefDescription, err = r.String(); err != nil {
		return err
	}
	if p.DescriptionImageURLs, err = r.Strings(); err != nil {
		return err
	}
	if p.Specification, err = r.String(); err != nil {
		return err
	}
	if p.Brand, err = r.String(); err != nil {
		return err
	}
	n, err := r.Count(minClassSize)
	if err != nil {
		return err
	}
	p.Classes = nil
	if n > 0 {
		p.Classes = make([]model.ProductClass, n)
		for i := range p.Classes {
			if err := getClass(r, &p.Classes[i]); err != nil {
				return err
			}
		}
	}
	if p.Name, err = r.String(); err != nil {
		return err
	}
	if p.Category, err = r.String(); err != nil {
		return err
	}
	if p.SellerID, err = r.Int32(); err != nil {
		return err
	}
	p.SalesCount, err = r.Int32()
	return err
}

func putProducts(w *codec.Writer, ps []model.Product) {
	w.Count(len(ps))
	for i := range ps {
		putProduct(w, &ps[i])
	}
}

func getProducts(r *codec.Reader) ([]model.Product, error) {
	n, err := r.Count(minProductSize)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]model.Product, n)
	for i := range out {
		if err := getProduct(r, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func putItem(w *codec.Writer, it model.OrderItem) {
	w.Int32(it.ProductID)
	w.Int32(it.ClassID)
	w.Int32(it.Quantity)
}

func getItem(r *codec.Reader, it *model.OrderItem) (err error) {
	if it.ProductID, err = r.Int32(); err != nil {
		return err
	}
	if it.ClassID, err = r.Int32(); err != nil {
		return err
	}
	it.Quantity, err = r.Int32()
	return err
}

func putItems(w *codec.Writer, items []model.OrderItem) {
	w.Count(len(items))
	for _, it := range items {
		putItem(w, it)
	}
}

func getItems(r *codec.Reader) ([]model.OrderItem, error) {
	n, err := r.Count(minItemSize)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]model.OrderItem, n)
	for i := range out {
		if err := getItem(r, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func putCart(w *codec.Writer, c *model.Cart) {
	w.Int32(c.UserID)
	putItems(w, c.Items)
}

func getCart(r *codec.Reader, c *model.Cart) (err error) {
	if c.UserID, err = r.Int32(); err != nil {
		return err
	}
	c.Items, err = getItems(r)
	return err
}

func putOrder(w *codec.Writer, o *model.Order) {
	w.Int32(o.ID)
	w.Int32(o.UserID)
	w.Int32(o.SellerID)
	w.Float64(o.TotalAmount)
	w.Int32(int32(o.Status))
	w.String(o.Address)
	putItems(w, o.Items)
}

func getOrder(r *codec.Reader, o *model.Order) (err error) {
	if o.ID, err = r.Int32(); err != nil {
		return err
	}
	if o.UserID, err = r.Int32(); err != nil {
		return err
	}
	if o.SellerID, err = r.Int32(); err != nil {
		return err
	}
	if o.TotalAmount, err = r.Float64(); err != nil {
		return err
	}
	status, err := r.Int32()
	if err != nil {
		return err
	}
	o.Status = model.OrderStatus(status)
	if !o.Status.Valid() {
		return fmt.Errorf("%w: order status %d", codec.ErrMalformed, status)
	}
	if o.Address, err = r.String(); err != nil {
		return err
	}
	o.Items, err = getItems(r)
	return err
}

func putOrders(w *codec.Writer, os []model.Order) {
	w.Count(len(os))
	for i := range os {
		putOrder(w, &os[i])
	}
}

func getOrders(r *codec.Reader) ([]model.Order, error) {
	n, err := r.Count(minOrderSize)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]model.Order, n)
	for i := range out {
		if err := getOrder(r, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readInt32s fills each destination in order, stopping at the first error.
func readInt32s(r *codec.Reader, dst ...*int32) (err error) {
	for _, d := range dst {
		if *d, err = r.Int32(); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r *codec.Reader, dst ...*string) (err error) {
	for _, d := range dst {
		if *d, err = r.String(); err != nil {
			return err
		}
	}
	return nil
}
