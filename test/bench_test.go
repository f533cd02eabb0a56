package test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"shopwire/client"
	"shopwire/message"
	"shopwire/model"
	"shopwire/protocol"
	"shopwire/registry"
	"shopwire/store"
)

func setupBench(b *testing.B) *client.Client {
	reg := registry.NewStatic()
	startNode(b, store.NewMemory(), reg)
	return newClient(b, reg, nil)
}

// one goroutine, one call at a time
func BenchmarkSerialCall(b *testing.B) {
	c := setupBench(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.ApplyCoupon(ctx, 0, "SAVE5"); err != nil {
			b.Fatal(err)
		}
	}
}

// many goroutines multiplexed over the pool
func BenchmarkConcurrentCall(b *testing.B) {
	c := setupBench(b)
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.ApplyCoupon(ctx, 0, "SAVE5"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkDownload(b *testing.B) {
	c := setupBench(b)
	ctx := context.Background()
	up, err := c.Upload(ctx, message.ImageMeta{Type: protocol.ProductMain, Format: "jpg"}, bytes.Repeat([]byte{1}, 256<<10))
	require.NoError(b, err)
	b.SetBytes(256 << 10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Download(ctx, message.DownloadImageRequest{ImageID: up.ImageID}); err != nil {
			b.Fatal(err)
		}
	}
}

// encoding only, no network
func BenchmarkEncodeProductList(b *testing.B) {
	products := make([]model.Product, 20)
	for i := range products {
		products[i] = model.Product{
			ID:       int32(i),
			Name:     "product",
			Category: "kitchen",
			Classes:  []model.ProductClass{{ID: 1, Name: "std", Price: 9.5, Stock: 3}},
		}
	}
	resp := message.OK(message.ProductListResult{Products: products, TotalCount: 20, TotalPages: 1})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		payload, err := message.Encode(resp)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := protocol.EncodeFrame(resp.Type(), 1, payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeFrame(b *testing.B) {
	payload, err := message.Encode(&message.LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(b, err)
	frame, err := protocol.EncodeFrame(protocol.LoginRequest, 7, payload)
	require.NoError(b, err)
	b.SetBytes(int64(len(frame)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f, err := protocol.ReadFrame(bytes.NewReader(frame))
		if err != nil {
			b.Fatal(err)
		}
		if _, err := message.Decode(f.Type, f.Payload); err != nil {
			b.Fatal(err)
		}
	}
}
