// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package typelib_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"code.hybscloud.com/callable"
	"code.hybscloud.com/callable/typelib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoHCL = `
namespace "Demo" {
  library = "libdemo.so"

  enum "Mode" {
    storage = "uint8"
  }

  enum "Caps" {
    flags = true
  }

  class "Widget" {
    method "new" {
      constructor = true
      return {
        type     = "Widget"
        transfer = "full"
      }
    }
    method "get_size" {
      return { type = "int32" }
    }
    method "fill" {
      arg "rect" {
        type             = "Rect"
        direction        = "out"
        caller_allocates = true
      }
    }
    method "count" {
      static = true
      return { type = "uint32" }
    }
    signal "clicked" {
      arg "button" { type = "int32" }
    }
    vfunc "draw" {
      arg "self" { type = "Widget" }
    }
  }

  class "Rect" {
    kind = "struct"
    size = 16
  }

  callback "Visit" {
    return { type = "bool" }
    arg "value" { type = "int32" }
    arg "data" {
      type    = "pointer"
      closure = 1
    }
  }

  function "sum" {
    symbol = "demo_sum"
    throws = true
    return { type = "int64" }
    arg "values" {
      type    = "array"
      element = "int32"
      length  = 1
    }
    arg "n" { type = "int32" }
  }

  function "foreach" {
    arg "visit" { type = "Visit" }
    arg "data" {
      type    = "pointer"
      closure = 0
    }
    arg "mode" { type = "Mode" }
  }
}
`

func demo(t *testing.T) *typelib.Repository {
	t.Helper()
	ns, err := typelib.LoadHCL("demo.hcl", []byte(demoHCL))
	require.NoError(t, err)
	repo := typelib.NewRepository()
	require.NoError(t, repo.Add(ns))
	return repo
}

func TestLoadHCLFunction(t *testing.T) {
	repo := demo(t)
	in, err := repo.Function("Demo", "sum")
	require.NoError(t, err)

	assert.Equal(t, "Demo.sum", in.QualifiedName())
	assert.Equal(t, "demo_sum", in.Symbol)
	assert.Equal(t, callable.KindFunction, in.Kind)
	assert.NotZero(t, in.Flags&callable.FlagThrows)
	require.Len(t, in.Args, 2)
	values := in.Args[0].Type
	assert.Equal(t, callable.TagArray, values.Tag)
	assert.Equal(t, callable.TagInt32, values.Elem.Tag)
	assert.Equal(t, 1, values.Length)
	assert.Equal(t, -1, values.Fixed)
	assert.Equal(t, callable.TagInt64, in.Return.Tag)
}

func TestLoadHCLMethods(t *testing.T) {
	repo := demo(t)

	ctor, err := repo.Method("Demo", "Widget", "new")
	require.NoError(t, err)
	assert.NotZero(t, ctor.Flags&callable.FlagConstructor)
	assert.Zero(t, ctor.Flags&callable.FlagMethod)
	assert.Equal(t, callable.TransferFull, ctor.CallerOwns)
	assert.Equal(t, "widget_new", ctor.Symbol)

	get, err := repo.Method("Demo", "Widget", "get_size")
	require.NoError(t, err)
	assert.NotZero(t, get.Flags&callable.FlagMethod)
	assert.Equal(t, "Demo.Widget.get_size", get.QualifiedName())

	count, err := repo.Method("Demo", "Widget", "count")
	require.NoError(t, err)
	assert.Zero(t, count.Flags&callable.FlagMethod)

	fill, err := repo.Method("Demo", "Widget", "fill")
	require.NoError(t, err)
	rect := fill.Args[0]
	assert.Equal(t, callable.Out, rect.Direction)
	assert.True(t, rect.CallerAllocates)
	assert.Equal(t, callable.IfaceStruct, rect.Type.Interface.Kind)
	assert.Equal(t, uintptr(16), rect.Type.Interface.Size)

	sig, err := repo.Signal("Demo", "Widget", "clicked")
	require.NoError(t, err)
	assert.Equal(t, callable.KindSignal, sig.Kind)
	assert.Empty(t, sig.Symbol)

	vf, err := repo.VFunc("Demo", "Widget", "draw")
	require.NoError(t, err)
	assert.Equal(t, callable.KindVFunc, vf.Kind)
}

func TestLoadHCLCallbackAndEnums(t *testing.T) {
	repo := demo(t)

	fe, err := repo.Function("Demo", "foreach")
	require.NoError(t, err)
	visit := fe.Args[0].Type.Interface
	require.NotNil(t, visit)
	assert.Equal(t, callable.IfaceCallback, visit.Kind)

	cb, err := repo.Callback("Demo", "Visit")
	require.NoError(t, err)
	assert.Same(t, cb, visit.Callback)
	assert.Equal(t, 1, cb.Args[1].Closure)

	mode := fe.Args[2].Type
	assert.Equal(t, callable.TypeUint8, callable.MapType(mode, callable.In))
	assert.Equal(t, callable.TypePointer, callable.MapType(mode, callable.Out))

	caps, err := repo.Interface("Demo", "Caps")
	require.NoError(t, err)
	assert.Equal(t, callable.IfaceFlags, caps.Kind)
	assert.Equal(t, callable.TagInt32, caps.Storage)
}

func TestCBORRoundTripLoadsEqualDescriptions(t *testing.T) {
	ns, err := typelib.LoadHCL("demo.hcl", []byte(demoHCL))
	require.NoError(t, err)
	data, err := typelib.Encode(ns)
	require.NoError(t, err)

	again, err := typelib.Encode(ns)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding is deterministic")

	path := filepath.Join(t.TempDir(), "demo.cbor")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	decoded, err := typelib.LoadFile(path)
	require.NoError(t, err)
	reencoded, err := typelib.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, reencoded)

	a, b := typelib.NewRepository(), typelib.NewRepository()
	require.NoError(t, a.Add(ns))
	require.NoError(t, b.Add(decoded))
	fa, err := a.Function("Demo", "sum")
	require.NoError(t, err)
	fb, err := b.Function("Demo", "sum")
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestCrossNamespaceReference(t *testing.T) {
	repo := demo(t)
	other, err := typelib.LoadHCL("other.hcl", []byte(`
namespace "Other" {
  function "show" {
    arg "w" { type = "Demo.Widget" }
  }
}`))
	require.NoError(t, err)
	require.NoError(t, repo.Add(other))
	in, err := repo.Function("Other", "show")
	require.NoError(t, err)
	widget, err := repo.Interface("Demo", "Widget")
	require.NoError(t, err)
	assert.Same(t, widget, in.Args[0].Type.Interface)
	assert.Equal(t, []string{"Demo", "Other"}, repo.Namespaces())
}

func TestInvalidDeclarations(t *testing.T) {
	cases := map[string]string{
		"unknown type": `
namespace "X" {
  function "f" {
    arg "a" { type = "Nope" }
  }
}`,
		"bad direction": `
namespace "X" {
  function "f" {
    arg "a" {
      type      = "int32"
      direction = "up"
    }
  }
}`,
		"length range": `
namespace "X" {
  function "f" {
    arg "a" {
      type    = "array"
      element = "int8"
      length  = 3
    }
  }
}`,
		"array element": `
namespace "X" {
  function "f" {
    arg "a" { type = "array" }
  }
}`,
		"enum storage": `
namespace "X" {
  enum "E" { storage = "double" }
}`,
		"class kind": `
namespace "X" {
  class "C" { kind = "trait" }
}`,
		"duplicate types": `
namespace "X" {
  enum "E" {}
  class "E" {}
}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			ns, err := typelib.LoadHCL("x.hcl", []byte(src))
			require.NoError(t, err)
			err = typelib.NewRepository().Add(ns)
			require.Error(t, err)
			assert.True(t, errors.Is(err, typelib.ErrInvalid) || errors.Is(err, typelib.ErrNotFound) || errors.Is(err, typelib.ErrDuplicate), err.Error())
		})
	}
}

func TestLoadHCLErrors(t *testing.T) {
	_, err := typelib.LoadHCL("bad.hcl", []byte(`namespace "X" {`))
	require.Error(t, err)

	_, err = typelib.LoadHCL("empty.hcl", nil)
	require.ErrorIs(t, err, typelib.ErrNoNamespace)

	repo := demo(t)
	ns, err := typelib.LoadHCL("demo.hcl", []byte(demoHCL))
	require.NoError(t, err)
	require.ErrorIs(t, repo.Add(ns), typelib.ErrDuplicate)

	_, err = repo.Function("Demo", "missing")
	require.ErrorIs(t, err, typelib.ErrNotFound)
}

func TestResolveSymbol(t *testing.T) {
	repo := demo(t)
	_, err := repo.ResolveSymbol("Demo", "demo_sum")
	require.ErrorIs(t, err, typelib.ErrNoLibrary)

	sum := func(p *int32, n int32) int64 { return 0 }
	repo.Register("Demo", typelib.Symbols{"demo_sum": sum})
	addr, err := repo.ResolveSymbol("Demo", "demo_sum")
	require.NoError(t, err)
	assert.NotNil(t, addr)

	_, err = repo.ResolveSymbol("Demo", "demo_missing")
	require.ErrorIs(t, err, callable.ErrSymbolNotFound)
}
