package content

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingRegistry struct {
	calls   int
	known   map[string]bool
	types   map[string]TemplateType
	allowed map[string]map[string]bool
	err     error
}

func (c *countingRegistry) IsTemplateKnown(ctx context.Context, key string) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.known[key], nil
}

func (c *countingRegistry) TemplateType(ctx context.Context, key string) (TemplateType, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.types[key], nil
}

func (c *countingRegistry) AllowedChildren(ctx context.Context, templateKey, areaName string) (map[string]bool, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.allowed[templateKey+"/"+areaName], nil
}

func TestCachedRegistry_CachesLookups(t *testing.T) {
	inner := &countingRegistry{
		known: map[string]bool{"standardpage": true},
		types: map[string]TemplateType{"standardpage": TemplatePage},
		allowed: map[string]map[string]bool{
			"standardpage/main": {"teaser": true},
		},
	}
	reg := NewCachedRegistry(inner, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		known, err := reg.IsTemplateKnown(ctx, "standardpage")
		if err != nil {
			t.Fatalf("IsTemplateKnown failed: %v", err)
		}
		if !known {
			t.Fatal("Expected template to be known")
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 backing call for repeated IsTemplateKnown, got %d", inner.calls)
	}

	inner.calls = 0
	for i := 0; i < 3; i++ {
		tt, err := reg.TemplateType(ctx, "standardpage")
		if err != nil {
			t.Fatalf("TemplateType failed: %v", err)
		}
		if tt != TemplatePage {
			t.Errorf("Expected PAGE, got %s", tt)
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 backing call for repeated TemplateType, got %d", inner.calls)
	}

	inner.calls = 0
	for i := 0; i < 3; i++ {
		allowed, err := reg.AllowedChildren(ctx, "standardpage", "main")
		if err != nil {
			t.Fatalf("AllowedChildren failed: %v", err)
		}
		if !allowed["teaser"] {
			t.Error("Expected teaser to be allowed")
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 backing call for repeated AllowedChildren, got %d", inner.calls)
	}
}

func TestCachedRegistry_AreaIsPartOfTheKey(t *testing.T) {
	inner := &countingRegistry{
		allowed: map[string]map[string]bool{
			"page/main":    {"teaser": true},
			"page/sidebar": {"banner": true},
		},
	}
	reg := NewCachedRegistry(inner, 16, time.Minute)
	ctx := context.Background()

	main, err := reg.AllowedChildren(ctx, "page", "main")
	if err != nil {
		t.Fatalf("AllowedChildren failed: %v", err)
	}
	sidebar, err := reg.AllowedChildren(ctx, "page", "sidebar")
	if err != nil {
		t.Fatalf("AllowedChildren failed: %v", err)
	}
	if !main["teaser"] || main["banner"] {
		t.Errorf("Wrong result for main area: %v", main)
	}
	if !sidebar["banner"] || sidebar["teaser"] {
		t.Errorf("Wrong result for sidebar area: %v", sidebar)
	}
	if inner.calls != 2 {
		t.Errorf("Expected 2 backing calls for distinct areas, got %d", inner.calls)
	}
}

func TestCachedRegistry_ErrorsAreNotCached(t *testing.T) {
	inner := &countingRegistry{err: errors.New("registry down")}
	reg := NewCachedRegistry(inner, 16, time.Minute)
	ctx := context.Background()

	if _, err := reg.IsTemplateKnown(ctx, "page"); err == nil {
		t.Fatal("Expected error from backing registry")
	}

	inner.err = nil
	inner.known = map[string]bool{"page": true}
	known, err := reg.IsTemplateKnown(ctx, "page")
	if err != nil {
		t.Fatalf("IsTemplateKnown failed after recovery: %v", err)
	}
	if !known {
		t.Error("Expected fresh lookup after an error, not a cached failure")
	}
}
