package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/verigrade/verigrade/pkg/common"
)

const (
	DefaultLimit  = 20
	MaxLimit      = 100
	DefaultOffset = 0
)

// Params is a limit/offset window over a listing.
type Params struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ParseParams reads ?limit= and ?offset=. Unparseable values fall back to the
// defaults, limit is clamped to (0, MaxLimit] and offset to >= 0.
func ParseParams(c *gin.Context) Params {
	limit := queryInt(c, "limit", DefaultLimit)
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	offset := queryInt(c, "offset", DefaultOffset)
	if offset < 0 {
		offset = DefaultOffset
	}

	return Params{Limit: limit, Offset: offset}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// BuildMeta describes the page [offset, offset+limit) of total items.
func BuildMeta(limit, offset int, total int64) *common.Meta {
	meta := &common.Meta{Limit: limit, Offset: offset, Total: total}
	if limit > 0 {
		meta.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	meta.HasMore = int64(offset+limit) < total
	return meta
}
