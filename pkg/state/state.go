package state

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/value"
)

// Token identifies a subscription.
type Token uint64

type subscription struct {
	token Token
	fn    func(any)
}

type cell struct {
	key        string
	typ        reflect.Type
	value      any
	computed   bool
	explicit   bool
	compute    func() any
	deps       []*cell
	dependents map[*cell]struct{}
	height     int
	subs       []subscription
	validate   func(any) error
	history    *history
}

type trackFrame struct {
	seen  map[*cell]bool
	order []*cell
}

func (f *trackFrame) add(c *cell) {
	if !f.seen[c] {
		f.seen[c] = true
		f.order = append(f.order, c)
	}
}

type errorHook struct {
	id uint64
	fn func(key string, err error)
}

// Manager is a registry of state cells.
type Manager struct {
	cells    map[string]*cell
	subs     map[Token]*cell
	nextTok  Token
	tracking []*trackFrame

	queue    []*cell
	queued   map[*cell]bool
	running  bool
	notified map[*cell]bool
	batching int

	errHooks  []errorHook
	nextHook  uint64
	restoring bool
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		cells:  make(map[string]*cell),
		subs:   make(map[Token]*cell),
		queued: make(map[*cell]bool),
	}
}

var (
	defaultMu      sync.Mutex
	defaultManager = NewManager()
)

// Default returns the process-wide manager.
func Default() *Manager {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultManager
}

// SetDefault replaces the process-wide manager and returns the previous one.
func SetDefault(m *Manager) *Manager {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultManager
	if m == nil {
		m = NewManager()
	}
	defaultManager = m
	return prev
}

func (m *Manager) create(op, key string, typ reflect.Type, initial any) (*cell, error) {
	if key == "" {
		return nil, errors.Newf(errors.KindStateManagement, op, "empty state key")
	}
	if _, ok := m.cells[key]; ok {
		return nil, errors.Newf(errors.KindStateManagement, op, "%w: %q", errors.ErrDuplicateKey, key)
	}
	c := &cell{
		key:        key,
		typ:        typ,
		value:      initial,
		dependents: make(map[*cell]struct{}),
	}
	m.cells[key] = c
	return c, nil
}

func (m *Manager) lookup(op, key string) (*cell, error) {
	c, ok := m.cells[key]
	if !ok {
		return nil, errors.Newf(errors.KindStateManagement, op, "%w: %q", errors.ErrMissingKey, key)
	}
	return c, nil
}

// live reports whether c is still registered.
func (m *Manager) live(c *cell) bool {
	return m.cells[c.key] == c
}

func (m *Manager) track(c *cell) {
	if n := len(m.tracking); n > 0 {
		m.tracking[n-1].add(c)
	}
}

// Track runs fn and returns the keys of every cell read during the call,
// in first-read order.
func (m *Manager) Track(fn func()) []string {
	frame := &trackFrame{seen: make(map[*cell]bool)}
	m.tracking = append(m.tracking, frame)
	defer func() { m.tracking = m.tracking[:len(m.tracking)-1] }()
	fn()
	keys := make([]string, len(frame.order))
	for i, c := range frame.order {
		keys[i] = c.key
	}
	return keys
}

// evaluate runs a computed cell's function, recording the cells it reads.
func (m *Manager) evaluate(c *cell) (v any, reads []*cell, err error) {
	frame := &trackFrame{seen: make(map[*cell]bool)}
	m.tracking = append(m.tracking, frame)
	defer func() { m.tracking = m.tracking[:len(m.tracking)-1] }()
	err = errors.Try("state.compute", func() error {
		v = c.compute()
		return nil
	})
	return v, frame.order, err
}

// dependsOn reports whether from reaches target through dependency edges.
func dependsOn(from, target *cell) bool {
	if from == target {
		return true
	}
	for _, d := range from.deps {
		if dependsOn(d, target) {
			return true
		}
	}
	return false
}

func (m *Manager) setDeps(c *cell, deps []*cell) {
	for _, d := range c.deps {
		delete(d.dependents, c)
	}
	c.deps = c.deps[:0]
	for _, d := range deps {
		if dependsOn(d, c) {
			errors.Report(errors.Newf(errors.KindStateManagement, "state.dependencies",
				"dependency %q -> %q would form a cycle", c.key, d.key))
			continue
		}
		c.deps = append(c.deps, d)
		d.dependents[c] = struct{}{}
	}
	m.updateHeight(c)
}

func (m *Manager) updateHeight(c *cell) {
	h := 0
	for _, d := range c.deps {
		if d.height+1 > h {
			h = d.height + 1
		}
	}
	if h == c.height {
		return
	}
	c.height = h
	for d := range c.dependents {
		m.updateHeight(d)
	}
}

func (m *Manager) set(op string, c *cell, v any) error {
	if !m.live(c) {
		return errors.Newf(errors.KindStateManagement, op, "%w: %q", errors.ErrMissingKey, c.key)
	}
	if c.computed {
		return errors.Newf(errors.KindStateManagement, op, "cannot set computed state %q", c.key)
	}
	if equal(c.value, v) {
		return nil
	}
	if c.validate != nil {
		if err := errors.Try(op, func() error { return c.validate(v) }); err != nil {
			return errors.Newf(errors.KindStateManagement, op, "state %q rejected value: %w", c.key, err)
		}
	}
	if c.history != nil && !m.restoring {
		c.history.record(c.value)
	}
	c.value = v
	m.changed(c)
	return nil
}

func (m *Manager) changed(c *cell) {
	if !m.queued[c] {
		m.queued[c] = true
		m.queue = append(m.queue, c)
	}
	if m.running || m.batching > 0 {
		return
	}
	m.flush()
}

func (m *Manager) flush() {
	m.running = true
	m.notified = make(map[*cell]bool)
	defer func() {
		m.running = false
		m.notified = nil
	}()
	for len(m.queue) > 0 {
		c := m.queue[0]
		m.queue = m.queue[1:]
		delete(m.queued, c)
		if m.live(c) {
			m.propagate(c)
		}
	}
}

// propagate runs one notification round for c: its subscribers first, then
// every affected computed cell in topological order.
func (m *Manager) propagate(c *cell) {
	m.notify(c)
	changed := map[*cell]bool{c: true}
	for _, d := range affected(c) {
		if !readsAny(d, changed) {
			continue
		}
		v, reads, err := m.evaluate(d)
		if err != nil {
			m.computeFailed(d, err)
			continue
		}
		if !d.explicit {
			m.setDeps(d, reads)
		}
		if equal(d.value, v) {
			continue
		}
		d.value = v
		changed[d] = true
		m.notify(d)
	}
}

// affected returns the transitive dependents of c ordered by height, then key.
func affected(c *cell) []*cell {
	seen := make(map[*cell]bool)
	var out []*cell
	var walk func(*cell)
	walk = func(x *cell) {
		for d := range x.dependents {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
				walk(d)
			}
		}
	}
	walk(c)
	sort.Slice(out, func(i, j int) bool {
		if out[i].height != out[j].height {
			return out[i].height < out[j].height
		}
		return out[i].key < out[j].key
	})
	return out
}

func readsAny(c *cell, changed map[*cell]bool) bool {
	for _, d := range c.deps {
		if changed[d] {
			return true
		}
	}
	return false
}

func (m *Manager) notify(c *cell) {
	if m.notified != nil {
		if m.notified[c] {
			return
		}
		m.notified[c] = true
	}
	subs := append([]subscription(nil), c.subs...)
	for _, s := range subs {
		if m.subs[s.token] != c {
			continue
		}
		func() {
			defer errors.Recover("state.notify " + c.key)
			s.fn(c.value)
		}()
	}
}

func (m *Manager) computeFailed(c *cell, err error) {
	wrapped := errors.Newf(errors.KindStateManagement, "state.compute", "computed state %q: %w", c.key, err)
	errors.Report(wrapped)
	hooks := append([]errorHook(nil), m.errHooks...)
	for _, h := range hooks {
		func() {
			defer errors.Recover("state.OnError")
			h.fn(c.key, wrapped)
		}()
	}
}

// OnError registers fn to run when a computed cell's function fails. The
// cell keeps its previous value. The returned func unregisters fn.
func (m *Manager) OnError(fn func(key string, err error)) (remove func()) {
	m.nextHook++
	id := m.nextHook
	m.errHooks = append(m.errHooks, errorHook{id: id, fn: fn})
	return func() {
		for i, h := range m.errHooks {
			if h.id == id {
				m.errHooks = append(m.errHooks[:i:i], m.errHooks[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) subscribe(c *cell, fn func(any)) Token {
	m.nextTok++
	tok := m.nextTok
	c.subs = append(c.subs, subscription{token: tok, fn: fn})
	m.subs[tok] = c
	return tok
}

// Unsubscribe revokes a subscription. It reports whether tok was active.
func (m *Manager) Unsubscribe(tok Token) bool {
	c, ok := m.subs[tok]
	if !ok {
		return false
	}
	delete(m.subs, tok)
	for i, s := range c.subs {
		if s.token == tok {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			break
		}
	}
	return true
}

// Batch runs fn and defers notification of every change it makes until fn
// returns. Rounds then run in first-change order.
func (m *Manager) Batch(fn func()) {
	m.batching++
	func() {
		defer func() { m.batching-- }()
		fn()
	}()
	if m.batching == 0 && !m.running && len(m.queue) > 0 {
		m.flush()
	}
}

// Value returns the current value of key. Inside a computed function or a
// Track call the read is recorded as a dependency.
func (m *Manager) Value(key string) (any, error) {
	c, err := m.lookup("state.Value", key)
	if err != nil {
		return nil, err
	}
	m.track(c)
	return c.value, nil
}

// PropertyValue returns the current value of key converted with value.Of.
func (m *Manager) PropertyValue(key string) (value.Value, error) {
	v, err := m.Value(key)
	if err != nil {
		return value.Value{}, err
	}
	return value.Of(v), nil
}

// SetValue sets a leaf cell from an untyped value. Numeric values convert
// to the cell's numeric type; other mismatches fail with ErrTypeMismatch.
func (m *Manager) SetValue(key string, v any) error {
	const op = "state.SetValue"
	c, err := m.lookup(op, key)
	if err != nil {
		return err
	}
	conv, err := convert(c, v)
	if err != nil {
		return errors.New(errors.KindStateManagement, op, err)
	}
	return m.set(op, c, conv)
}

// SubscribeKey subscribes to a cell by key.
func (m *Manager) SubscribeKey(key string, fn func(any)) (Token, error) {
	c, err := m.lookup("state.SubscribeKey", key)
	if err != nil {
		return 0, err
	}
	return m.subscribe(c, fn), nil
}

// Has reports whether key exists.
func (m *Manager) Has(key string) bool {
	_, ok := m.cells[key]
	return ok
}

// IsComputed reports whether key is a computed cell.
func (m *Manager) IsComputed(key string) bool {
	c, ok := m.cells[key]
	return ok && c.computed
}

// Keys returns every key, sorted.
func (m *Manager) Keys() []string {
	keys := make([]string, 0, len(m.cells))
	for k := range m.cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dependencies returns the keys a computed cell currently depends on.
func (m *Manager) Dependencies(key string) []string {
	c, ok := m.cells[key]
	if !ok {
		return nil
	}
	out := make([]string, len(c.deps))
	for i, d := range c.deps {
		out[i] = d.key
	}
	return out
}

// Remove deletes a cell and its subscriptions. Cells that others depend on
// cannot be removed.
func (m *Manager) Remove(key string) error {
	const op = "state.Remove"
	c, err := m.lookup(op, key)
	if err != nil {
		return err
	}
	if len(c.dependents) > 0 {
		names := make([]string, 0, len(c.dependents))
		for d := range c.dependents {
			names = append(names, d.key)
		}
		sort.Strings(names)
		return errors.Newf(errors.KindStateManagement, op, "state %q is used by %v", key, names)
	}
	for _, d := range c.deps {
		delete(d.dependents, c)
	}
	for _, s := range c.subs {
		delete(m.subs, s.token)
	}
	delete(m.cells, key)
	return nil
}

// Clear removes every cell and subscription. Error hooks are kept.
func (m *Manager) Clear() {
	m.cells = make(map[string]*cell)
	m.subs = make(map[Token]*cell)
	m.queue = nil
	m.queued = make(map[*cell]bool)
}

func equal(a, b any) bool {
	if va, ok := a.(value.Value); ok {
		vb, ok := b.(value.Value)
		return ok && va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func nillable(k reflect.Kind) bool {
	switch k {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// convert coerces v to the cell's type.
func convert(c *cell, v any) (any, error) {
	if v == nil {
		if nillable(c.typ.Kind()) {
			return reflect.Zero(c.typ).Interface(), nil
		}
		return nil, fmt.Errorf("%w: state %q holds %v, got nil", errors.ErrTypeMismatch, c.key, c.typ)
	}
	vt := reflect.TypeOf(v)
	if c.typ.Kind() == reflect.Interface {
		if vt.AssignableTo(c.typ) {
			return v, nil
		}
	} else if vt == c.typ {
		return v, nil
	} else if vt.AssignableTo(c.typ) || (isNumeric(vt.Kind()) && isNumeric(c.typ.Kind())) {
		return reflect.ValueOf(v).Convert(c.typ).Interface(), nil
	}
	if pv, ok := v.(value.Value); ok && c.typ.Kind() != reflect.Interface {
		if native := pv.Interface(); native != nil {
			return convert(c, native)
		}
	}
	return nil, fmt.Errorf("%w: state %q holds %v, got %T", errors.ErrTypeMismatch, c.key, c.typ, v)
}
