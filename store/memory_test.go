package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shopwire/store"
	"shopwire/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return store.NewMemory() })
}

func TestPage(t *testing.T) {
	testCases := []struct {
		n, offset, limit int
		lo, hi           int
	}{
		{n: 10, offset: 0, limit: 0, lo: 0, hi: 10},
		{n: 10, offset: 2, limit: 3, lo: 2, hi: 5},
		{n: 10, offset: 8, limit: 5, lo: 8, hi: 10},
		{n: 10, offset: 12, limit: 5, lo: 10, hi: 10},
		{n: 10, offset: -1, limit: 2, lo: 0, hi: 2},
	}
	for _, tc := range testCases {
		lo, hi := store.Page(tc.n, tc.offset, tc.limit)
		assert.Equal(t, tc.lo, lo)
		assert.Equal(t, tc.hi, hi)
	}
}
