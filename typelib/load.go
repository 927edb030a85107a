// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package typelib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ErrNoNamespace reports a source without a namespace block.
var ErrNoNamespace = errors.New("typelib: no namespace declared")

type file struct {
	Namespace *Namespace `hcl:"namespace,block"`
}

// LoadHCL parses the HCL source of one namespace. filename is used in
// diagnostics only.
func LoadHCL(filename string, src []byte) (*Namespace, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %s", filename, diags.Error())
	}
	var decl file
	diags = gohcl.DecodeBody(f.Body, nil, &decl)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %s", filename, diags.Error())
	}
	if decl.Namespace == nil {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoNamespace)
	}
	return decl.Namespace, nil
}

// LoadFile reads a namespace from path. Files ending in .cbor are
// compiled namespaces, anything else is HCL.
func LoadFile(path string) (*Namespace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".cbor" {
		ns, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return ns, nil
	}
	return LoadHCL(path, data)
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Encode compiles ns to deterministic CBOR.
func Encode(ns *Namespace) ([]byte, error) {
	if ns == nil {
		return nil, ErrNoNamespace
	}
	return encMode.Marshal(ns)
}

// Decode loads a namespace compiled by Encode.
func Decode(data []byte) (*Namespace, error) {
	var ns Namespace
	if err := cbor.Unmarshal(data, &ns); err != nil {
		return nil, err
	}
	if ns.Name == "" {
		return nil, ErrNoNamespace
	}
	return &ns, nil
}
