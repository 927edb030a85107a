// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build libffi && (linux || darwin)

package libffi_test

import (
	"runtime"
	"testing"
	"unsafe"

	"code.hybscloud.com/callable"
	"code.hybscloud.com/callable/host"
	"code.hybscloud.com/callable/libffi"
	"code.hybscloud.com/callable/typelib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libcHCL = `
namespace "C" {
  callback "Compare" {
    return { type = "int32" }
    arg "a" { type = "pointer" }
    arg "b" { type = "pointer" }
  }

  function "abs" {
    return { type = "int32" }
    arg "x" { type = "int32" }
  }

  function "labs" {
    return { type = "int64" }
    arg "x" { type = "int64" }
  }

  function "strlen" {
    return { type = "uint64" }
    arg "s" { type = "utf8" }
  }

  function "qsort" {
    arg "base" { type = "pointer" }
    arg "nmemb" { type = "uint64" }
    arg "size" { type = "uint64" }
    arg "compar" { type = "Compare" }
  }
}
`

func libc() string {
	if runtime.GOOS == "darwin" {
		return "/usr/lib/libSystem.B.dylib"
	}
	return "libc.so.6"
}

func setup(t *testing.T) (*callable.Bridge, *typelib.Repository) {
	t.Helper()
	ns, err := typelib.LoadHCL("libc.hcl", []byte(libcHCL))
	require.NoError(t, err)
	repo := typelib.NewRepository()
	require.NoError(t, repo.Add(ns))
	lib, err := libffi.Open(libc())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close() })
	repo.Register("C", lib)

	b := callable.New(
		callable.WithMechanism(libffi.New()),
		callable.WithResolver(repo),
		callable.WithMarshaller(host.NewMarshaller(nil)),
		callable.WithGuard(callable.NewGuard()),
	)
	t.Cleanup(b.Close)
	return b, repo
}

func TestAbs(t *testing.T) {
	b, repo := setup(t)
	for _, tc := range []struct {
		name string
		arg  int64
		want int64
	}{
		{"abs", -7, 7},
		{"labs", -1 << 40, 1 << 40},
	} {
		info, err := repo.Function("C", tc.name)
		require.NoError(t, err)
		p, err := b.Build(info, nil)
		require.NoError(t, err)
		res, err := b.Invoke(p, tc.arg)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, tc.want, res[0], tc.name)
	}
}

func TestStrlen(t *testing.T) {
	b, repo := setup(t)
	info, err := repo.Function("C", "strlen")
	require.NoError(t, err)
	p, err := b.Build(info, nil)
	require.NoError(t, err)
	res, err := b.Invoke(p, "callable")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), res[0])
}

func TestQsortClosure(t *testing.T) {
	b, repo := setup(t)
	cmp, err := repo.Callback("C", "Compare")
	require.NoError(t, err)
	target, err := callable.NewTarget(nil, func(_ *callable.Context, args []callable.Value) ([]callable.Value, error) {
		x := *(*int32)(args[0].(unsafe.Pointer))
		y := *(*int32)(args[1].(unsafe.Pointer))
		return []callable.Value{int64(x - y)}, nil
	})
	require.NoError(t, err)
	tr, err := b.MakeClosure(cmp, target, false)
	require.NoError(t, err)
	defer tr.Destroy()

	info, err := repo.Function("C", "qsort")
	require.NoError(t, err)
	p, err := b.Build(info, nil)
	require.NoError(t, err)

	// C memory is not needed: qsort only touches the array during the call.
	values := []int32{5, -2, 9, 0, 3}
	_, err = b.Invoke(p, unsafe.Pointer(&values[0]), uint64(len(values)), uint64(4), tr)
	require.NoError(t, err)
	assert.Equal(t, []int32{-2, 0, 3, 5, 9}, values)
}

func TestClosurePanicIsRecovered(t *testing.T) {
	var recovered any
	m := libffi.New(libffi.WithPanicHook(func(r any) { recovered = r }))
	sig, err := m.Compile(callable.TypeSint32, []callable.Type{callable.TypeSint32})
	require.NoError(t, err)
	addr, release, err := sig.Closure(func(ret unsafe.Pointer, args []unsafe.Pointer) {
		panic("boom")
	})
	require.NoError(t, err)
	defer release()

	arg := int32(1)
	var ret int32 = -1
	sig.Call(addr, unsafe.Pointer(&ret), []unsafe.Pointer{unsafe.Pointer(&arg)})
	assert.Equal(t, int32(0), ret)
	assert.Equal(t, "boom", recovered)
}

func TestCheckRejectsGoFunctions(t *testing.T) {
	sig, err := libffi.New().Compile(callable.TypeVoid, nil)
	require.NoError(t, err)
	require.ErrorIs(t, sig.Check(func() {}), libffi.ErrAddress)
	require.ErrorIs(t, sig.Check(uintptr(0)), libffi.ErrAddress)
}
