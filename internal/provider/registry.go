package provider

import (
	"fmt"
	"strings"
)

// Registry 是 catalog 的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Catalog
}

func NewRegistry(catalogs ...Catalog) (Registry, error) {
	byName := make(map[string]Catalog, len(catalogs))
	for _, c := range catalogs {
		if c == nil {
			return Registry{}, fmt.Errorf("catalog 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(c.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("catalog.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 provider：%q", name)
		}
		byName[name] = c
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Catalog, bool) {
	if r.byName == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	c, ok := r.byName[name]
	return c, ok
}
