package content

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TemplateType classifies what a template renders.
type TemplateType string

const (
	TemplatePage      TemplateType = "PAGE"
	TemplateComponent TemplateType = "COMPONENT"
	TemplateData      TemplateType = "DATA"
)

// TemplateRegistry answers placement questions during create and copy.
type TemplateRegistry interface {
	IsTemplateKnown(ctx context.Context, key string) (bool, error)
	TemplateType(ctx context.Context, key string) (TemplateType, error)
	// AllowedChildren lists the template keys permitted beneath the given
	// template in the named area. An empty area means the default area.
	AllowedChildren(ctx context.Context, templateKey, areaName string) (map[string]bool, error)
}

// CachedRegistry wraps a TemplateRegistry with an expirable LRU so repeated
// placement checks during batch operations do not refetch template metadata.
type CachedRegistry struct {
	inner    TemplateRegistry
	known    *expirable.LRU[string, bool]
	types    *expirable.LRU[string, TemplateType]
	children *expirable.LRU[string, map[string]bool]
}

// NewCachedRegistry caches up to size entries per lookup kind for ttl.
func NewCachedRegistry(inner TemplateRegistry, size int, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		inner:    inner,
		known:    expirable.NewLRU[string, bool](size, nil, ttl),
		types:    expirable.NewLRU[string, TemplateType](size, nil, ttl),
		children: expirable.NewLRU[string, map[string]bool](size, nil, ttl),
	}
}

func (c *CachedRegistry) IsTemplateKnown(ctx context.Context, key string) (bool, error) {
	if v, ok := c.known.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.IsTemplateKnown(ctx, key)
	if err != nil {
		return false, err
	}
	c.known.Add(key, v)
	return v, nil
}

func (c *CachedRegistry) TemplateType(ctx context.Context, key string) (TemplateType, error) {
	if v, ok := c.types.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.TemplateType(ctx, key)
	if err != nil {
		return "", err
	}
	c.types.Add(key, v)
	return v, nil
}

func (c *CachedRegistry) AllowedChildren(ctx context.Context, templateKey, areaName string) (map[string]bool, error) {
	cacheKey := fmt.Sprintf("%s\x00%s", templateKey, areaName)
	if v, ok := c.children.Get(cacheKey); ok {
		return v, nil
	}
	v, err := c.inner.AllowedChildren(ctx, templateKey, areaName)
	if err != nil {
		return nil, err
	}
	c.children.Add(cacheKey, v)
	return v, nil
}
