// Package dltest provides an in-memory dl.Opener for tests.
//
// Libraries are declared up front with Add; opening an undeclared path fails
// the same way a missing file would. The opener records how many handles are
// currently mapped per path so tests can assert on unmap behaviour.
package dltest

import (
	"fmt"
	"os"
	"sync"

	"github.com/insajin/autopus-mainboard/pkg/dl"
)

// Opener is a fake dynamic linker.
type Opener struct {
	mu      sync.Mutex
	libs    map[string]map[string]dl.Symbol
	fail    map[string]error
	mapped  map[string]int
	opens   map[string]int
	closes  map[string]int
	onClose func(path string)
}

// NewOpener returns an empty fake linker.
func NewOpener() *Opener {
	return &Opener{
		libs:   make(map[string]map[string]dl.Symbol),
		fail:   make(map[string]error),
		mapped: make(map[string]int),
		opens:  make(map[string]int),
		closes: make(map[string]int),
	}
}

// Add declares a library at path exporting symbols.
func (o *Opener) Add(path string, symbols map[string]dl.Symbol) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if symbols == nil {
		symbols = map[string]dl.Symbol{}
	}
	o.libs[path] = symbols
}

// FailOpen makes the next opens of path return err until cleared with nil.
func (o *Opener) FailOpen(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		delete(o.fail, path)
		return
	}
	o.fail[path] = err
}

// OnClose registers a hook run after every successful Close.
func (o *Opener) OnClose(fn func(path string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onClose = fn
}

// Open implements dl.Opener.
func (o *Opener) Open(path string) (dl.Library, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err, ok := o.fail[path]; ok {
		return nil, err
	}
	syms, ok := o.libs[path]
	if !ok {
		return nil, fmt.Errorf("dlopen %s failed: %w", path, os.ErrNotExist)
	}
	o.mapped[path]++
	o.opens[path]++
	return &library{opener: o, path: path, symbols: syms}, nil
}

// Mapped reports how many handles of path are currently open.
func (o *Opener) Mapped(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mapped[path]
}

// Opens reports how many times path was opened.
func (o *Opener) Opens(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[path]
}

// Closes reports how many times a handle of path was closed.
func (o *Opener) Closes(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closes[path]
}

type library struct {
	opener  *Opener
	path    string
	symbols map[string]dl.Symbol

	mu     sync.Mutex
	closed bool
}

func (l *library) Path() string { return l.path }

func (l *library) Lookup(name string) (dl.Symbol, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, fmt.Errorf("%w: %s", dl.ErrClosed, l.path)
	}
	sym, ok := l.symbols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", dl.ErrSymbolNotFound, name, l.path)
	}
	return sym, nil
}

func (l *library) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	o := l.opener
	o.mu.Lock()
	o.mapped[l.path]--
	o.closes[l.path]++
	hook := o.onClose
	o.mu.Unlock()

	if hook != nil {
		hook(l.path)
	}
	return nil
}
