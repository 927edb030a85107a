// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package typelib

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"code.hybscloud.com/callable"
)

var (
	ErrNotFound  = errors.New("typelib: not found")
	ErrDuplicate = errors.New("typelib: duplicate declaration")
	ErrInvalid   = errors.New("typelib: invalid declaration")
	ErrNoLibrary = errors.New("typelib: no library registered")
)

// Library is a native symbol table.
type Library interface {
	Lookup(symbol string) (callable.Address, error)
}

// Symbols is a Library backed by a map.
type Symbols map[string]callable.Address

func (s Symbols) Lookup(symbol string) (callable.Address, error) {
	if a, ok := s[symbol]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", callable.ErrSymbolNotFound, symbol)
}

type key struct {
	kind      callable.Kind
	container string
	name      string
}

type space struct {
	repo   *Repository
	decl   *Namespace
	ifaces map[string]*callable.InterfaceInfo
	infos  map[key]*callable.Info
}

// Repository holds compiled namespaces. Descriptions it returns are
// shared and must not be modified.
type Repository struct {
	mu     sync.RWMutex
	spaces map[string]*space
	libs   map[string]Library
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{spaces: make(map[string]*space), libs: make(map[string]Library)}
}

// Add compiles ns into the repository. Types of other namespaces may be
// referenced as Namespace.Name once those namespaces are added.
func (r *Repository) Add(ns *Namespace) error {
	if ns == nil || ns.Name == "" {
		return ErrNoNamespace
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spaces[ns.Name]; ok {
		return fmt.Errorf("%w: namespace %s", ErrDuplicate, ns.Name)
	}
	s := &space{
		repo:   r,
		decl:   ns,
		ifaces: make(map[string]*callable.InterfaceInfo),
		infos:  make(map[key]*callable.Info),
	}
	if err := s.compile(); err != nil {
		return fmt.Errorf("namespace %s: %w", ns.Name, err)
	}
	r.spaces[ns.Name] = s
	return nil
}

// Namespaces returns the names of the added namespaces, sorted.
func (r *Repository) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.spaces))
	for n := range r.spaces {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Register binds the symbol table of a namespace.
func (r *Repository) Register(namespace string, lib Library) {
	r.mu.Lock()
	r.libs[namespace] = lib
	r.mu.Unlock()
}

// ResolveSymbol implements callable.Resolver.
func (r *Repository) ResolveSymbol(namespace, symbol string) (callable.Address, error) {
	r.mu.RLock()
	lib, ok := r.libs[namespace]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLibrary, namespace)
	}
	return lib.Lookup(symbol)
}

// Interface returns a named type.
func (r *Repository) Interface(namespace, name string) (*callable.InterfaceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spaces[namespace]
	if !ok {
		return nil, fmt.Errorf("%w: namespace %s", ErrNotFound, namespace)
	}
	if ii, ok := s.ifaces[name]; ok {
		return ii, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, namespace, name)
}

// Function returns a namespace-level function.
func (r *Repository) Function(namespace, name string) (*callable.Info, error) {
	return r.lookup(namespace, key{callable.KindFunction, "", name})
}

// Method returns a method, constructor or static function of a class.
func (r *Repository) Method(namespace, container, name string) (*callable.Info, error) {
	return r.lookup(namespace, key{callable.KindFunction, container, name})
}

// Signal returns a signal of a class.
func (r *Repository) Signal(namespace, container, name string) (*callable.Info, error) {
	return r.lookup(namespace, key{callable.KindSignal, container, name})
}

// VFunc returns a virtual function of a class.
func (r *Repository) VFunc(namespace, container, name string) (*callable.Info, error) {
	return r.lookup(namespace, key{callable.KindVFunc, container, name})
}

// Callback returns a callback type.
func (r *Repository) Callback(namespace, name string) (*callable.Info, error) {
	return r.lookup(namespace, key{callable.KindCallback, "", name})
}

func (r *Repository) lookup(namespace string, k key) (*callable.Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spaces[namespace]
	if !ok {
		return nil, fmt.Errorf("%w: namespace %s", ErrNotFound, namespace)
	}
	if in, ok := s.infos[k]; ok {
		return in, nil
	}
	name := k.name
	if k.container != "" {
		name = k.container + "." + name
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, namespace, name)
}

func (s *space) declare(name string, ii *callable.InterfaceInfo) error {
	if _, ok := s.ifaces[name]; ok {
		return fmt.Errorf("%w: type %s", ErrDuplicate, name)
	}
	s.ifaces[name] = ii
	return nil
}

func (s *space) compile() error {
	ns := s.decl.Name
	for _, e := range s.decl.Enums {
		kind := callable.IfaceEnum
		if e.Flags {
			kind = callable.IfaceFlags
		}
		storage := callable.TagInt32
		if e.Storage != "" {
			tag, ok := builtins[e.Storage]
			if !ok || tag < callable.TagInt8 || tag > callable.TagUint64 {
				return fmt.Errorf("%w: enum %s storage %q", ErrInvalid, e.Name, e.Storage)
			}
			storage = tag
		}
		if err := s.declare(e.Name, &callable.InterfaceInfo{Kind: kind, Namespace: ns, Name: e.Name, Storage: storage}); err != nil {
			return err
		}
	}
	for _, c := range s.decl.Classes {
		kind, ok := classKinds[c.Kind]
		if !ok {
			return fmt.Errorf("%w: class %s kind %q", ErrInvalid, c.Name, c.Kind)
		}
		if err := s.declare(c.Name, &callable.InterfaceInfo{Kind: kind, Namespace: ns, Name: c.Name, Size: uintptr(c.Size)}); err != nil {
			return err
		}
	}
	for _, cb := range s.decl.Callbacks {
		if err := s.declare(cb.Name, &callable.InterfaceInfo{Kind: callable.IfaceCallback, Namespace: ns, Name: cb.Name}); err != nil {
			return err
		}
	}

	for _, cb := range s.decl.Callbacks {
		in, err := s.add(callable.KindCallback, nil, cb)
		if err != nil {
			return err
		}
		s.ifaces[cb.Name].Callback = in
	}
	for _, fn := range s.decl.Functions {
		if _, err := s.add(callable.KindFunction, nil, fn); err != nil {
			return err
		}
	}
	for _, c := range s.decl.Classes {
		ii := s.ifaces[c.Name]
		for _, fn := range c.Methods {
			if _, err := s.add(callable.KindFunction, ii, fn); err != nil {
				return err
			}
		}
		for _, fn := range c.Signals {
			if _, err := s.add(callable.KindSignal, ii, fn); err != nil {
				return err
			}
		}
		for _, fn := range c.VFuncs {
			if _, err := s.add(callable.KindVFunc, ii, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *space) add(kind callable.Kind, container *callable.InterfaceInfo, fn *Function) (*callable.Info, error) {
	in, err := s.info(kind, container, fn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name, err)
	}
	k := key{kind: kind, name: fn.Name}
	if container != nil {
		k.container = container.Name
	}
	if _, ok := s.infos[k]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, in.QualifiedName())
	}
	s.infos[k] = in
	return in, nil
}

func (s *space) info(kind callable.Kind, container *callable.InterfaceInfo, fn *Function) (*callable.Info, error) {
	in := &callable.Info{
		Kind:      kind,
		Namespace: s.decl.Name,
		Container: container,
		Name:      fn.Name,
		Symbol:    fn.Symbol,
		Args:      make([]callable.ArgInfo, len(fn.Args)),
	}
	if kind == callable.KindFunction && in.Symbol == "" {
		in.Symbol = fn.Name
		if container != nil {
			in.Symbol = strings.ToLower(container.Name) + "_" + fn.Name
		}
	}
	if container != nil && kind == callable.KindFunction {
		switch {
		case fn.Constructor:
			in.Flags |= callable.FlagConstructor
		case !fn.Static:
			in.Flags |= callable.FlagMethod
		}
	}
	if fn.Throws {
		in.Flags |= callable.FlagThrows
	}

	check := func(what string, i int) error {
		if i >= len(fn.Args) {
			return fmt.Errorf("%w: %s index %d out of range", ErrInvalid, what, i)
		}
		return nil
	}
	if fn.Return != nil {
		t, err := s.typeOf(fn.Return)
		if err != nil {
			return nil, fmt.Errorf("return: %w", err)
		}
		if err := check("length", t.Length); err != nil {
			return nil, fmt.Errorf("return: %w", err)
		}
		if in.CallerOwns, err = parseTransfer(fn.Return.Transfer); err != nil {
			return nil, fmt.Errorf("return: %w", err)
		}
		in.Return = t
	}
	for i, a := range fn.Args {
		t, err := s.typeOf(a.result())
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", a.Name, err)
		}
		dir, err := parseDirection(a.Direction)
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", a.Name, err)
		}
		tr, err := parseTransfer(a.Transfer)
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", a.Name, err)
		}
		ai := callable.ArgInfo{
			Name:            a.Name,
			Type:            t,
			Direction:       dir,
			Transfer:        tr,
			CallerAllocates: a.CallerAllocates,
			Closure:         index(a.Closure),
			Destroy:         index(a.Destroy),
		}
		for _, c := range []struct {
			what string
			i    int
		}{{"length", t.Length}, {"closure", ai.Closure}, {"destroy", ai.Destroy}} {
			if err := check(c.what, c.i); err != nil {
				return nil, fmt.Errorf("arg %s: %w", a.Name, err)
			}
		}
		in.Args[i] = ai
	}
	return in, nil
}
