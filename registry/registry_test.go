package registry

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/meigma/arcimport/archive"
	"github.com/meigma/arcimport/internal/testutil"
	"github.com/meigma/arcimport/loader"
)

// counter is a Starlark builtin counting its calls.
type counter struct {
	n atomic.Int64
}

func (c *counter) builtin() *starlark.Builtin {
	return starlark.NewBuiltin("count", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		c.n.Add(1)
		return starlark.None, nil
	})
}

// barrierBuiltin returns a builtin that blocks until parties callers have
// reached it.
func barrierBuiltin(parties int) *starlark.Builtin {
	var wg sync.WaitGroup
	wg.Add(parties)
	return starlark.NewBuiltin("rendezvous", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		wg.Done()
		wg.Wait()
		return starlark.None, nil
	})
}

// gateBuiltin returns a builtin that signals started and then blocks until
// release is closed.
func gateBuiltin(started chan<- struct{}, release <-chan struct{}) *starlark.Builtin {
	return starlark.NewBuiltin("block", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		started <- struct{}{}
		<-release
		return starlark.None, nil
	})
}

func newLoader(t *testing.T, name string, files map[string]string, opts ...loader.Option) *loader.Loader {
	t.Helper()
	data := testutil.BuildZip(t, testutil.Files(files))
	a, err := archive.New(bytes.NewReader(data), int64(len(data)), name)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return loader.New(a, opts...)
}

func TestImport(t *testing.T) {
	t.Parallel()

	l := newLoader(t, "mods.zip", map[string]string{"answer.star": "X = 42\n"})
	r := New(WithFinders(l))

	rec, err := r.Import(context.Background(), "answer")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(42), rec.Globals["X"])
	assert.Equal(t, loader.StateReady, rec.State())
	assert.Same(t, l, rec.Loader)

	got, ok := r.Get("answer")
	require.True(t, ok)
	assert.Same(t, rec, got)
	assert.Equal(t, []string{"answer"}, r.Names())

	again, err := r.Import(context.Background(), "answer")
	require.NoError(t, err)
	assert.Same(t, rec, again)
}

func TestImport_NotFound(t *testing.T) {
	t.Parallel()

	r := New(WithFinders(newLoader(t, "mods.zip", map[string]string{"a.star": ""})))

	_, err := r.Import(context.Background(), "missing")
	require.ErrorIs(t, err, ErrModuleNotFound)
	assert.Empty(t, r.Names())

	_, err = New().Import(context.Background(), "a")
	require.ErrorIs(t, err, ErrModuleNotFound)
}

func TestImport_FailureRollsBack(t *testing.T) {
	t.Parallel()

	var c counter
	l := newLoader(t, "mods.zip", map[string]string{
		"bad.star": "count()\nPARTIAL = True\nfail('boom')\n",
	}, loader.WithPredeclared(starlark.StringDict{"count": c.builtin()}))
	r := New(WithFinders(l))

	for attempt := 1; attempt <= 2; attempt++ {
		rec, err := r.Import(context.Background(), "bad")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Nil(t, rec)

		_, ok := r.Get("bad")
		assert.False(t, ok)
		assert.Empty(t, r.Names())

		// The body runs again on every attempt.
		assert.Equal(t, int64(attempt), c.n.Load())
	}
}

func TestImport_ConcurrentExecutesOnce(t *testing.T) {
	t.Parallel()

	var c counter
	l := newLoader(t, "mods.zip", map[string]string{
		"slow.star": "count()\nV = [i * i for i in range(10000)][-1]\n",
	}, loader.WithPredeclared(starlark.StringDict{"count": c.builtin()}))
	r := New(WithFinders(l))

	const workers = 16
	start := make(chan struct{})
	recs := make([]*loader.Record, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			recs[i], errs[i] = r.Import(context.Background(), "slow")
		}()
	}
	close(start)
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Same(t, recs[0], recs[i])
	}
	assert.Equal(t, int64(1), c.n.Load())
}

func TestImport_NestedLoad(t *testing.T) {
	t.Parallel()

	l := newLoader(t, "mods.zip", map[string]string{
		"pkg/__init__.star": "load('pkg.util', 'helper')\nV = helper()\n",
		"pkg/util.star":     "def helper():\n    return 7\n",
	})
	r := New(WithFinders(l))

	rec, err := r.Import(context.Background(), "pkg")
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(7), rec.Globals["V"])

	util, ok := r.Get("pkg.util")
	require.True(t, ok)
	assert.Equal(t, "pkg", util.Package)
	assert.Equal(t, []string{"pkg", "pkg.util"}, r.Names())
}

func TestImport_NestedFailureKeepsDependency(t *testing.T) {
	t.Parallel()

	l := newLoader(t, "mods.zip", map[string]string{
		"app.star": "load('dep', 'v')\nfail('app broke')\n",
		"dep.star": "v = 1\n",
	})
	r := New(WithFinders(l))

	_, err := r.Import(context.Background(), "app")
	require.Error(t, err)

	_, ok := r.Get("app")
	assert.False(t, ok)
	_, ok = r.Get("dep")
	assert.True(t, ok)
}

func TestImport_Cycle(t *testing.T) {
	t.Parallel()

	l := newLoader(t, "mods.zip", map[string]string{
		"a.star": "load('b', 'y')\nx = 1\n",
		"b.star": "load('a', 'x')\ny = 2\n",
		"c.star": "load('c', 'z')\nz = 3\n",
	})
	r := New(WithFinders(l))

	_, err := r.Import(context.Background(), "a")
	require.ErrorIs(t, err, ErrImportCycle)
	assert.Contains(t, err.Error(), "a -> b -> a")

	_, err = r.Import(context.Background(), "c")
	require.ErrorIs(t, err, ErrImportCycle)

	assert.Empty(t, r.Names())
}

func TestImport_ConcurrentCycle(t *testing.T) {
	t.Parallel()

	l := newLoader(t, "mods.zip", map[string]string{
		"a.star": "rendezvous()\nload('b', 'y')\nx = 1\n",
		"b.star": "rendezvous()\nload('a', 'x')\ny = 2\n",
	}, loader.WithPredeclared(starlark.StringDict{"rendezvous": barrierBuiltin(2)}))
	r := New(WithFinders(l))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	for _, name := range []string{"a", "b"} {
		go func() {
			_, err := r.Import(ctx, name)
			errs <- err
		}()
	}

	for range 2 {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, ErrImportCycle)
			require.NotErrorIs(t, err, context.DeadlineExceeded)
		case <-time.After(15 * time.Second):
			t.Fatal("concurrent imports of a cycle never returned")
		}
	}
	assert.Empty(t, r.Names())
}

func TestImport_WaiterHonoursContext(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	l := newLoader(t, "mods.zip", map[string]string{"slow.star": "block()\nX = 1\n"},
		loader.WithPredeclared(starlark.StringDict{"block": gateBuiltin(started, release)}))
	r := New(WithFinders(l))

	first := make(chan error, 1)
	go func() {
		_, err := r.Import(context.Background(), "slow")
		first <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Import(ctx, "slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := r.Get("slow")
	assert.False(t, ok)

	close(release)
	require.NoError(t, <-first)
	rec, ok := r.Get("slow")
	require.True(t, ok)
	assert.Equal(t, starlark.MakeInt(1), rec.Globals["X"])
}

func TestImport_ChainedFinders(t *testing.T) {
	t.Parallel()

	first := newLoader(t, "first.zip", map[string]string{"shared.star": "SRC = 'first'\n"})
	second := newLoader(t, "second.zip", map[string]string{
		"shared.star": "SRC = 'second'\n",
		"only.star":   "SRC = 'second'\n",
	})
	r := New(WithFinders(first, second))

	rec, err := r.Import(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, starlark.String("first"), rec.Globals["SRC"])
	assert.Same(t, first, rec.Loader)

	rec, err = r.Import(context.Background(), "only")
	require.NoError(t, err)
	assert.Same(t, second, rec.Loader)
}

func TestImport_FinderErrorStopsChain(t *testing.T) {
	t.Parallel()

	data := testutil.BuildZip(t, testutil.Files(map[string]string{"m.star": "X = 1\n"}), testutil.WithPassword("pw"))
	a, err := archive.New(bytes.NewReader(data), int64(len(data)), "locked.zip")
	require.NoError(t, err)
	defer a.Close()

	fallback := newLoader(t, "open.zip", map[string]string{"m.star": "X = 2\n"})
	r := New(WithFinders(loader.New(a), fallback))

	_, err = r.Import(context.Background(), "m")
	require.ErrorIs(t, err, archive.ErrBadCredential)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	var c counter
	l := newLoader(t, "mods.zip", map[string]string{"m.star": "count()\n"},
		loader.WithPredeclared(starlark.StringDict{"count": c.builtin()}))
	r := New(WithFinders(l))

	_, err := r.Import(context.Background(), "m")
	require.NoError(t, err)
	r.Remove("m")
	_, ok := r.Get("m")
	assert.False(t, ok)

	_, err = r.Import(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.n.Load())
}

func TestPrint(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var lines []string
	l := newLoader(t, "mods.zip", map[string]string{"hello.star": "print('hello', __name__)\n"})
	r := New(WithFinders(l), WithPrint(func(msg string) {
		mu.Lock()
		lines = append(lines, msg)
		mu.Unlock()
	}))

	_, err := r.Import(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello hello"}, lines)
}

func TestThread(t *testing.T) {
	t.Parallel()

	l := newLoader(t, "mods.zip", map[string]string{"lib.star": "def double(n):\n    return n * 2\n"})
	r := New(WithFinders(l))

	thread := r.Thread(context.Background(), "script")
	globals, err := starlark.ExecFileOptions(loader.DefaultFileOptions(), thread, "script.star",
		"load('lib', 'double')\nOUT = double(21)\n", nil)
	require.NoError(t, err)
	assert.Equal(t, starlark.MakeInt(42), globals["OUT"])
}
