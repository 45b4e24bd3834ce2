// Package hooks 提供带优先级的过滤器与事件扩展点。
//
// 同一扩展点上的回调按 priority 升序执行，优先级相同时按注册顺序执行。
// 以相同名称重复注册会替换原回调。
package hooks

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// DefaultPriority 默认优先级
const DefaultPriority = 10

// None 无附加参数的过滤器使用的参数类型
type None struct{}

// FilterFunc 过滤函数：接收当前值与上下文参数，返回新值
type FilterFunc[T, A any] func(value T, arg A) T

// ActionFunc 事件回调
type ActionFunc[E any] func(ctx context.Context, event E)

type entry[F any] struct {
	name     string
	priority int
	seq      int
	fn       F
}

// chain 回调链的公共实现
type chain[F any] struct {
	mu      sync.RWMutex
	entries []entry[F]
	seq     int
}

func (c *chain[F]) add(name string, priority int, fn F) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	e := entry[F]{name: name, priority: priority, seq: c.seq, fn: fn}
	for i := range c.entries {
		if c.entries[i].name == name {
			e.seq = c.entries[i].seq
			c.entries[i] = e
			c.sortLocked()
			return
		}
	}
	c.entries = append(c.entries, e)
	c.sortLocked()
}

func (c *chain[F]) sortLocked() {
	sort.SliceStable(c.entries, func(i, j int) bool {
		if c.entries[i].priority != c.entries[j].priority {
			return c.entries[i].priority < c.entries[j].priority
		}
		return c.entries[i].seq < c.entries[j].seq
	})
}

func (c *chain[F]) remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].name == name {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (c *chain[F]) removePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.entries[:0]
	removed := 0
	for _, e := range c.entries {
		if strings.HasPrefix(e.name, prefix) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
	return removed
}

func (c *chain[F]) list() []F {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fns := make([]F, len(c.entries))
	for i, e := range c.entries {
		fns[i] = e.fn
	}
	return fns
}

func (c *chain[F]) names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

func (c *chain[F]) snapshot() func() {
	c.mu.RLock()
	saved := make([]entry[F], len(c.entries))
	copy(saved, c.entries)
	seq := c.seq
	c.mu.RUnlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.entries = append([]entry[F](nil), saved...)
		c.seq = seq
	}
}

// Filter 值过滤扩展点
type Filter[T, A any] struct {
	Name string
	chain[FilterFunc[T, A]]
}

// NewFilter 创建过滤扩展点
func NewFilter[T, A any](name string) *Filter[T, A] {
	return &Filter[T, A]{Name: name}
}

// Add 注册过滤函数
func (f *Filter[T, A]) Add(name string, priority int, fn FilterFunc[T, A]) {
	f.add(name, priority, fn)
}

// Remove 注销过滤函数
func (f *Filter[T, A]) Remove(name string) bool {
	return f.remove(name)
}

// Apply 依次执行所有过滤函数
func (f *Filter[T, A]) Apply(value T, arg A) T {
	for _, fn := range f.list() {
		value = fn(value, arg)
	}
	return value
}

// Names 已注册的回调名
func (f *Filter[T, A]) Names() []string {
	return f.names()
}

// Action 事件扩展点
type Action[E any] struct {
	Name string
	chain[ActionFunc[E]]
}

// NewAction 创建事件扩展点
func NewAction[E any](name string) *Action[E] {
	return &Action[E]{Name: name}
}

// Add 注册事件回调
func (a *Action[E]) Add(name string, priority int, fn ActionFunc[E]) {
	a.add(name, priority, fn)
}

// Remove 注销事件回调
func (a *Action[E]) Remove(name string) bool {
	return a.remove(name)
}

// Do 触发事件
func (a *Action[E]) Do(ctx context.Context, event E) {
	for _, fn := range a.list() {
		fn(ctx, event)
	}
}

// Names 已注册的回调名
func (a *Action[E]) Names() []string {
	return a.names()
}
