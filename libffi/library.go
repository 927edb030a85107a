// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build libffi

package libffi

import (
	"fmt"

	"code.hybscloud.com/callable"
	"github.com/ebitengine/purego"
)

// Library is a dynamically loaded shared object. It serves as the symbol
// table of a namespace.
type Library struct {
	path   string
	handle uintptr
}

// Open loads the shared object at path.
func Open(path string) (*Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("libffi: open %s: %w", path, err)
	}
	return &Library{path: path, handle: h}, nil
}

// Lookup returns the address of symbol.
func (l *Library) Lookup(symbol string) (callable.Address, error) {
	addr, err := purego.Dlsym(l.handle, symbol)
	if err != nil || addr == 0 {
		return nil, fmt.Errorf("%w: %s in %s", callable.ErrSymbolNotFound, symbol, l.path)
	}
	return addr, nil
}

// Close unloads the shared object.
func (l *Library) Close() error {
	return purego.Dlclose(l.handle)
}
