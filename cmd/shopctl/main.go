// Command shopctl runs one shop operation against a server and prints the result.
//
//	shopctl [-config shop.toml] [-addr host:port] <command> [args]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"shopwire/client"
	"shopwire/config"
	"shopwire/loadbalance"
	"shopwire/logging"
	"shopwire/message"
	"shopwire/model"
	"shopwire/protocol"
	"shopwire/registry"
)

var errUsage = errors.New("usage")

type command struct {
	args string
	run  func(ctx context.Context, c *client.Client, args []string) (any, error)
}

var commands = map[string]command{
	"login": {"<username> <password>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		return c.Login(ctx, a[0], a[1])
	}},
	"register": {"<username> <password> [phone]", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		req := message.RegisterRequest{Username: a[0], Password: a[1]}
		if len(a) > 2 {
			req.Phone = a[2]
		}
		return c.Register(ctx, req)
	}},
	"user": {"<user-id>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		return c.UserInfo(ctx, id(a[0]))
	}},
	"products": {"[category] [keyword] [page]", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		req := message.GetProductListRequest{}
		if len(a) > 0 {
			req.Category = a[0]
		}
		if len(a) > 1 {
			req.Keyword = a[1]
		}
		if len(a) > 2 {
			req.Page = id(a[2])
		}
		return c.Products(ctx, req)
	}},
	"product": {"<product-id>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		return c.Product(ctx, id(a[0]))
	}},
	"cart": {"<user-id>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		return c.Cart(ctx, id(a[0]))
	}},
	"add": {"<user-id> <product-id> <class-id> <quantity>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		item := model.OrderItem{ProductID: id(a[1]), ClassID: id(a[2]), Quantity: id(a[3])}
		return nil, c.AddToCart(ctx, id(a[0]), item)
	}},
	"order": {"<user-id> [coupon]", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		req := message.CreateOrderRequest{UserID: id(a[0])}
		if len(a) > 1 {
			req.CouponCode = a[1]
		}
		return c.CreateOrder(ctx, req)
	}},
	"orders": {"<user-id>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		return c.Orders(ctx, message.GetOrderListRequest{UserID: id(a[0])})
	}},
	"cancel": {"<order-id>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		return nil, c.CancelOrder(ctx, id(a[0]))
	}},
	"coupon": {"<user-id> <code>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		return c.ApplyCoupon(ctx, id(a[0]), a[1])
	}},
	"upload": {"<avatar|main|detail> <related-id> <file>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		typ, ok := imageTypes[a[0]]
		if !ok {
			return nil, fmt.Errorf("%w: image type %q", errUsage, a[0])
		}
		data, err := os.ReadFile(a[2])
		if err != nil {
			return nil, err
		}
		meta := message.ImageMeta{
			Type:      typ,
			Filename:  filepath.Base(a[2]),
			Format:    strings.TrimPrefix(filepath.Ext(a[2]), "."),
			RelatedID: id(a[1]),
		}
		return c.Upload(ctx, meta, data)
	}},
	"download": {"<image-id> <file>", func(ctx context.Context, c *client.Client, a []string) (any, error) {
		img, err := c.Download(ctx, message.DownloadImageRequest{ImageID: a[0]})
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(a[1], img.Data, 0o644); err != nil {
			return nil, err
		}
		return img.Meta, nil
	}},
}

var imageTypes = map[string]protocol.ImageType{
	"avatar": protocol.UserAvatar,
	"main":   protocol.ProductMain,
	"detail": protocol.ProductDetail,
}

// minArgs is the count of required <args> in a usage string.
func minArgs(usage string) int {
	return strings.Count(usage, "<")
}

func id(s string) int32 {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return -1
	}
	return int32(n)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: shopctl [-config file] [-addr host:port] <command> [args]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", name, commands[name].args)
	}
}

func main() {
	path := flag.String("config", "", "path to a TOML config file")
	addr := flag.String("addr", "", "server address; overrides discovery")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shopctl: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(config.Log{Level: "warn", Format: cfg.Log.Format}, "shopctl", os.Stderr)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok || len(args)-1 < minArgs(cmd.args) {
		usage()
		os.Exit(2)
	}

	c, err := newClient(cfg, *addr, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shopctl: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.CallTimeout)
	defer cancel()
	out, err := cmd.run(ctx, c, args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "shopctl %s: %v\n", args[0], err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	if out == nil {
		fmt.Println("ok")
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func newClient(cfg config.Config, addr string, log zerolog.Logger) (*client.Client, error) {
	opts := client.DefaultOptions()
	opts.ServiceName = cfg.Server.ServiceName
	opts.PoolSize = cfg.Client.PoolSize
	opts.DialTimeout = cfg.Client.DialTimeout
	opts.ChunkSize = cfg.Transfer.ChunkSize
	opts.TransferTimeout = cfg.Transfer.Timeout
	opts.MaxImageSize = cfg.Limits.MaxImageSize
	opts.Conn.HeartbeatInterval = cfg.Heartbeat.Interval
	opts.Conn.DeadAfter = cfg.Heartbeat.DeadAfter
	opts.Conn.CallTimeout = cfg.Client.CallTimeout
	opts.Conn.MaxCorruptFrames = cfg.Limits.MaxCorruptFrames
	opts.Logger = log

	if addr == "" && !cfg.Registry.Enabled {
		addr = cfg.Client.ServerAddr
	}
	if addr != "" {
		return client.Dial(addr, opts), nil
	}

	bal, err := loadbalance.New(cfg.Client.Balancer)
	if err != nil {
		return nil, err
	}
	reg, err := registry.NewEtcdRegistry(cfg.Registry.Endpoints, cfg.Registry.DialTimeout)
	if err != nil {
		return nil, err
	}
	return client.New(reg, bal, opts), nil
}
