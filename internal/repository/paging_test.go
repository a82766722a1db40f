package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagingNormalize(t *testing.T) {
	cases := []struct {
		name                string
		page, limit         int
		wantPage, wantLimit int
	}{
		{"defaults", 0, 0, 1, 50},
		{"negative", -2, -5, 1, 50},
		{"within bounds", 3, 20, 3, 20},
		{"at max", 1, 200, 1, 200},
		{"over max", 1, 201, 1, 200},
		{"far over max", 4, 1 << 20, 4, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, limit := HistoryPaging.Normalize(tc.page, tc.limit)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantLimit, limit)
		})
	}
}
