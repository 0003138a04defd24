package registry

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct{ name string }

func (f *fakeJob) FriendlyName() string { return f.name }

func TestAddRemove(t *testing.T) {
	t.Parallel()
	r := New[*fakeJob]()
	a := &fakeJob{name: "a"}
	b := &fakeJob{name: "a"} // same name, different identity

	require.True(t, r.Add(a))
	require.False(t, r.Add(a))
	require.True(t, r.Add(b))
	assert.Equal(t, 2, r.Len())

	got, ok := r.FindByName("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a))
	got, ok = r.FindByName("a")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = r.FindByName("missing")
	assert.False(t, ok)
}

func TestAllIsACopy(t *testing.T) {
	t.Parallel()
	r := New[*fakeJob]()
	r.Add(&fakeJob{name: "x"})
	all := r.All()
	all[0] = &fakeJob{name: "y"}
	assert.Equal(t, "x", r.All()[0].FriendlyName())
}

func TestFind(t *testing.T) {
	t.Parallel()
	r := New[*fakeJob]()
	for _, n := range []string{"health-a", "cleanup", "health-b"} {
		r.Add(&fakeJob{name: n})
	}
	got := r.Find(func(j *fakeJob) bool { return strings.HasPrefix(j.name, "health-") })
	require.Len(t, got, 2)
	assert.Equal(t, "health-a", got[0].name)
	assert.Equal(t, "health-b", got[1].name)
	assert.Nil(t, r.Find(nil))
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	r := New[*fakeJob]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				j := &fakeJob{name: fmt.Sprintf("j-%d-%d", i, k)}
				r.Add(j)
				_ = r.All()
				_, _ = r.FindByName(j.name)
				if k%2 == 0 {
					r.Remove(j)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16*50, r.Len())
}
