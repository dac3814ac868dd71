package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20, Offset: 0}},
		{"page=3&limit=10", Params{Page: 3, Limit: 10, Offset: 20}},
		{"page=0&limit=-5", Params{Page: 1, Limit: 20, Offset: 0}},
		{"page=abc&limit=xyz", Params{Page: 1, Limit: 20, Offset: 0}},
		{"page=2&limit=500", Params{Page: 2, Limit: 100, Offset: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, parseQuery(tt.query))
		})
	}
}

func TestListing(t *testing.T) {
	p := New(2, 10)
	h := p.Listing("users", []string{"a"}, 21)

	assert.Equal(t, []string{"a"}, h["users"])
	assert.EqualValues(t, 21, h["total"])
	assert.EqualValues(t, 3, h["totalPages"])
	assert.EqualValues(t, 0, p.TotalPages(0))
}
