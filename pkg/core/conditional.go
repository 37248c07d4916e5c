package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-drift/declui/pkg/animation"
	"github.com/go-drift/declui/pkg/clock"
	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/state"
	"github.com/go-drift/declui/pkg/toolkit"
	"github.com/go-drift/declui/pkg/value"
)

// Conditional renderer defaults.
const (
	DefaultDebounceDelay     = 50 * time.Millisecond
	DefaultAnimationDuration = 200 * time.Millisecond
)

// ContainerType is the primitive type that hosts conditional items and
// boundary children.
const ContainerType = "Widget"

// VisibleProperty toggles primitive visibility.
const VisibleProperty = "visible"

// Guard decides whether its item is shown. A panicking guard counts as
// false.
type Guard func() bool

// AsyncGuard decides asynchronously. It must call resume exactly once, on
// the UI thread.
type AsyncGuard func(resume func(bool))

// NodeFactory produces the node shown for a conditional item.
type NodeFactory func() Node

// ConditionalConfig controls a Conditional.
type ConditionalConfig struct {
	// Reactive re-evaluates the guards when a bound state key changes.
	Reactive bool
	// DebounceDelay coalesces changes arriving within the window. Zero
	// evaluates on every change.
	DebounceDelay time.Duration
	// Animate fades the outgoing item out while the incoming item fades in.
	Animate           bool
	AnimationDuration time.Duration
	// Lazy runs each factory on first selection only. Otherwise every
	// factory runs on Build.
	Lazy bool
	// Cache keeps hidden items materialized for reuse.
	Cache bool
	Clock clock.Clock
	// State is the manager BindState keys live in. Nil uses state.Default().
	State *state.Manager
}

// DefaultConditionalConfig returns a reactive, lazy, caching configuration
// with fades.
func DefaultConditionalConfig() ConditionalConfig {
	return ConditionalConfig{
		Reactive:          true,
		DebounceDelay:     DefaultDebounceDelay,
		Animate:           true,
		AnimationDuration: DefaultAnimationDuration,
		Lazy:              true,
		Cache:             true,
	}
}

// ConditionalStats counts renderer activity.
type ConditionalStats struct {
	Evaluations  int
	GuardCalls   int
	Switches     int
	FactoryCalls int
}

type conditionalItem struct {
	guard   Guard
	async   AsyncGuard
	factory NodeFactory
	node    Node
	prim    toolkit.Handle
	visible bool
	fade    *animation.Fade
}

// Conditional shows the first item whose guard holds. It is confined to
// the UI thread.
type Conditional struct {
	adaptor toolkit.Adaptor
	config  ConditionalConfig
	clock   clock.Clock
	state   *state.Manager
	capture ErrorCapture

	items   []*conditionalItem
	current int
	keys    []string
	tokens  []state.Token

	container toolkit.Handle
	layout    toolkit.Handle
	built     bool
	buildErr  error

	evaluating bool
	pending    bool
	round      uint64
	debounce   clock.Timer

	onSwitch []func(index int)
	stats    ConditionalStats
}

// NewConditional returns an empty renderer.
func NewConditional(a toolkit.Adaptor, cfg ConditionalConfig) *Conditional {
	c := &Conditional{
		adaptor: a,
		config:  cfg,
		clock:   clock.Or(cfg.Clock),
		state:   cfg.State,
		current: -1,
	}
	if c.state == nil {
		c.state = state.Default()
	}
	return c
}

// When appends an item shown while guard holds.
func (c *Conditional) When(guard Guard, factory NodeFactory) *Conditional {
	c.items = append(c.items, &conditionalItem{guard: guard, factory: factory})
	return c
}

// WhenAsync appends an item with an asynchronous guard.
func (c *Conditional) WhenAsync(guard AsyncGuard, factory NodeFactory) *Conditional {
	c.items = append(c.items, &conditionalItem{async: guard, factory: factory})
	return c
}

// Otherwise appends an item whose guard always holds.
func (c *Conditional) Otherwise(factory NodeFactory) *Conditional {
	return c.When(func() bool { return true }, factory)
}

// WhenState appends an item shown while pred holds for the value of key,
// and binds key.
func (c *Conditional) WhenState(key string, pred func(any) bool, factory NodeFactory) *Conditional {
	c.BindState(key)
	return c.When(func() bool {
		v, err := c.state.Value(key)
		return err == nil && pred(v)
	}, factory)
}

// WhenStateTrue appends an item shown while key is truthy.
func (c *Conditional) WhenStateTrue(key string, factory NodeFactory) *Conditional {
	return c.WhenState(key, func(v any) bool { return value.Of(v).Truthy() }, factory)
}

// WhenStateFalse appends an item shown while key is falsy.
func (c *Conditional) WhenStateFalse(key string, factory NodeFactory) *Conditional {
	return c.WhenState(key, func(v any) bool { return !value.Of(v).Truthy() }, factory)
}

// WhenAll appends an item shown while every guard holds.
func (c *Conditional) WhenAll(guards []Guard, factory NodeFactory) *Conditional {
	return c.When(And(guards...), factory)
}

// WhenAny appends an item shown while any guard holds.
func (c *Conditional) WhenAny(guards []Guard, factory NodeFactory) *Conditional {
	return c.When(Or(guards...), factory)
}

// BindState re-evaluates the guards when any of keys changes. It has no
// effect unless the renderer is reactive.
func (c *Conditional) BindState(keys ...string) *Conditional {
	for _, k := range keys {
		if !slices.Contains(c.keys, k) {
			c.keys = append(c.keys, k)
			if c.built && c.container != nil {
				c.subscribe(k)
			}
		}
	}
	return c
}

// OnSwitch registers fn to run after the selected item changes. fn gets
// the new index, or -1 when nothing is shown.
func (c *Conditional) OnSwitch(fn func(index int)) *Conditional {
	c.onSwitch = append(c.onSwitch, fn)
	return c
}

// Current returns the index of the shown item, or -1.
func (c *Conditional) Current() int { return c.current }

// CurrentNode returns the shown node, or nil.
func (c *Conditional) CurrentNode() Node {
	if c.current < 0 {
		return nil
	}
	return c.items[c.current].node
}

// Stats returns a copy of the counters.
func (c *Conditional) Stats() ConditionalStats { return c.stats }

// Evaluating reports whether an asynchronous round is in flight.
func (c *Conditional) Evaluating() bool { return c.evaluating }

// Primitive returns the container, or nil before Build.
func (c *Conditional) Primitive() toolkit.Handle { return c.container }

func (c *Conditional) setCapture(ec ErrorCapture) {
	if c.capture == nil {
		c.capture = ec
	}
}

// Build creates the container, materializes eager items, subscribes to the
// bound keys and runs the first evaluation.
func (c *Conditional) Build() (toolkit.Handle, error) {
	const op = "core.Conditional"
	if c.built {
		if c.buildErr != nil {
			return nil, c.buildErr
		}
		if c.container == nil {
			return nil, errors.Newf(errors.KindComponentCreation, op, "conditional was unmounted")
		}
		return c.container, nil
	}
	c.built = true
	container, err := c.adaptor.CreatePrimitive(ContainerType, nil)
	if err != nil {
		c.buildErr = errors.New(errors.KindComponentCreation, op, err)
		return nil, c.buildErr
	}
	layout, err := c.adaptor.CreateLayout(toolkit.LayoutSpec{Kind: toolkit.Stacked})
	if err != nil {
		c.adaptor.Destroy(container)
		c.buildErr = errors.New(errors.KindLayout, op, err)
		return nil, c.buildErr
	}
	c.container, c.layout = container, layout

	if !c.config.Lazy {
		for _, it := range c.items {
			if err := c.materialize(it); err != nil {
				c.fail(err)
			}
		}
	}
	if c.config.Reactive {
		for _, k := range c.keys {
			c.subscribe(k)
		}
	}
	c.adaptor.OnDestroyed(container, c.destroyed)
	c.Evaluate()
	return container, nil
}

func (c *Conditional) subscribe(key string) {
	if !c.config.Reactive {
		return
	}
	tok, err := c.state.SubscribeKey(key, func(any) { c.changed() })
	if err != nil {
		errors.Warn("core.Conditional", "cannot bind %q: %v", key, err)
		return
	}
	c.tokens = append(c.tokens, tok)
}

// changed schedules an evaluation, restarting the debounce window.
func (c *Conditional) changed() {
	if c.container == nil {
		return
	}
	if c.config.DebounceDelay <= 0 {
		c.Evaluate()
		return
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = c.clock.AfterFunc(c.config.DebounceDelay, func() {
		c.debounce = nil
		c.Evaluate()
	})
}

// Evaluate runs the guards in order and shows the first item whose guard
// holds. Evaluating with unchanged state keeps the current item. A call
// during an asynchronous round schedules exactly one follow-up round.
func (c *Conditional) Evaluate() {
	if c.container == nil {
		return
	}
	if c.evaluating {
		c.pending = true
		return
	}
	c.stats.Evaluations++
	if !c.hasAsync() {
		c.commit(c.selectSync())
		return
	}
	c.evaluating = true
	c.round++
	c.evalAsync(0, c.round)
}

func (c *Conditional) hasAsync() bool {
	for _, it := range c.items {
		if it.async != nil {
			return true
		}
	}
	return false
}

func (c *Conditional) selectSync() int {
	for i, it := range c.items {
		if c.check(i, it.guard) {
			return i
		}
	}
	return -1
}

func (c *Conditional) check(i int, g Guard) bool {
	c.stats.GuardCalls++
	if g == nil {
		return false
	}
	var ok bool
	err := errors.Try("core.Conditional", func() error {
		ok = g()
		return nil
	})
	if err != nil {
		errors.Warn("core.Conditional", "guard %d failed, treating as false: %v", i, err)
		return false
	}
	return ok
}

func (c *Conditional) evalAsync(i int, round uint64) {
	for ; i < len(c.items); i++ {
		it := c.items[i]
		if it.async == nil {
			if c.check(i, it.guard) {
				c.finishAsync(i, round)
				return
			}
			continue
		}

		idx := i
		resumed := false
		resume := func(ok bool) {
			if resumed {
				errors.Warn("core.Conditional", "async guard %d resumed more than once", idx)
				return
			}
			resumed = true
			if round != c.round {
				return
			}
			if ok {
				c.finishAsync(idx, round)
			} else {
				c.evalAsync(idx+1, round)
			}
		}
		c.stats.GuardCalls++
		err := errors.Try("core.Conditional", func() error {
			it.async(resume)
			return nil
		})
		if err != nil {
			errors.Warn("core.Conditional", "async guard %d failed, treating as false: %v", idx, err)
			if !resumed {
				resume(false)
			}
		}
		return
	}
	c.finishAsync(-1, round)
}

func (c *Conditional) finishAsync(idx int, round uint64) {
	if round != c.round {
		return
	}
	c.evaluating = false
	c.commit(idx)
	if c.pending {
		c.pending = false
		c.Evaluate()
	}
}

// commit switches to item idx. Committing the shown item is a no-op.
func (c *Conditional) commit(idx int) {
	if idx == c.current {
		return
	}
	var next *conditionalItem
	if idx >= 0 {
		next = c.items[idx]
		if err := c.materialize(next); err != nil {
			c.fail(err)
			next, idx = nil, -1
			if c.current == -1 {
				return
			}
		}
	}
	var prev *conditionalItem
	if c.current >= 0 {
		prev = c.items[c.current]
	}
	c.current = idx
	c.stats.Switches++
	c.swap(prev, next)
	for _, fn := range c.onSwitch {
		fn(idx)
	}
}

func (c *Conditional) materialize(it *conditionalItem) error {
	if it.prim != nil {
		return nil
	}
	if it.factory == nil {
		return fmt.Errorf("conditional item has no factory")
	}
	c.stats.FactoryCalls++
	var node Node
	err := errors.Try("core.Conditional", func() error {
		node = it.factory()
		return nil
	})
	if err != nil {
		return err
	}
	routeErrors(node, c.capture)
	prim, err := buildNode("core.Conditional", node)
	if err != nil {
		return err
	}
	if err := c.adaptor.Attach(c.container, prim, c.layout); err != nil {
		node.Unmount()
		return err
	}
	c.adaptor.SetProperty(prim, VisibleProperty, value.Bool(false))
	it.node, it.prim, it.visible = node, prim, false
	return nil
}

func (c *Conditional) swap(prev, next *conditionalItem) {
	animate := c.config.Animate && c.config.AnimationDuration > 0
	if prev != nil {
		if animate && prev.prim != nil {
			c.fade(prev, 1, 0, func() {
				if c.current < 0 || c.items[c.current] != prev {
					c.hide(prev)
				}
			})
		} else {
			c.hide(prev)
		}
	}
	if next != nil {
		c.show(next)
		if animate {
			c.fade(next, 0, 1, nil)
		}
	}
}

func (c *Conditional) fade(it *conditionalItem, from, to float64, done func()) {
	if it.fade != nil {
		it.fade.Stop()
	}
	f := animation.NewFade(c.adaptor, it.prim, from, to, c.config.AnimationDuration, c.clock)
	if done != nil {
		f.OnDone(done)
	}
	it.fade = f
	f.Start()
}

func (c *Conditional) show(it *conditionalItem) {
	if it.prim == nil {
		return
	}
	c.adaptor.SetProperty(it.prim, VisibleProperty, value.Bool(true))
	it.visible = true
}

func (c *Conditional) hide(it *conditionalItem) {
	if it.fade != nil {
		it.fade.Stop()
		it.fade = nil
	}
	if it.prim == nil {
		return
	}
	c.adaptor.SetProperty(it.prim, VisibleProperty, value.Bool(false))
	it.visible = false
	if !c.config.Cache {
		it.node.Unmount()
		it.node, it.prim = nil, nil
	}
}

// Visible reports whether item i is shown.
func (c *Conditional) Visible(i int) bool {
	if i < 0 || i >= len(c.items) {
		return false
	}
	return c.items[i].visible
}

// ItemPrimitive returns the materialized primitive of item i, or nil.
func (c *Conditional) ItemPrimitive(i int) toolkit.Handle {
	if i < 0 || i >= len(c.items) {
		return nil
	}
	return c.items[i].prim
}

func (c *Conditional) fail(err error) {
	wrapped := errors.New(errors.KindComponentCreation, "core.Conditional", err)
	report(c.capture, wrapped, "Conditional")
}

// Unmount cancels pending work, unmounts every materialized item and
// destroys the container.
func (c *Conditional) Unmount() {
	container := c.container
	if container == nil {
		return
	}
	c.teardown()
	c.container = nil
	c.adaptor.Destroy(container)
}

func (c *Conditional) destroyed() {
	if c.container == nil {
		return
	}
	c.container = nil
	c.teardown()
}

func (c *Conditional) teardown() {
	c.round++
	c.evaluating, c.pending = false, false
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	for _, tok := range c.tokens {
		c.state.Unsubscribe(tok)
	}
	c.tokens = nil
	for _, it := range c.items {
		if it.fade != nil {
			it.fade.Stop()
			it.fade = nil
		}
		if it.node != nil {
			it.node.Unmount()
		}
		it.node, it.prim, it.visible = nil, nil, false
	}
	c.current = -1
	c.layout = nil
}
