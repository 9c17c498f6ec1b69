package gallery

import (
	"fmt"
	"sync"
	"testing"

	"github.com/deliverable-studio/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReleaser struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingReleaser() *countingReleaser {
	return &countingReleaser{calls: make(map[string]int)}
}

func (c *countingReleaser) Release(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[ref]++
	return c.calls[ref] == 1
}

func localEntry(id string) models.MediaFile {
	ref := "blob:" + id
	return models.MediaFile{ID: id, Src: ref, LocalRef: ref}
}

func remoteEntry(id string) models.MediaFile {
	url := "https://cdn.example.com/" + id
	return models.MediaFile{ID: id, Src: url, RemoteURL: url}
}

func fill(t *testing.T, l *List, n int) {
	t.Helper()
	res, err := l.Reserve(n)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, res.Append(localEntry(fmt.Sprintf("m%d", l.Len()))))
	}
	res.Close()
}

func TestReserveRejectsWholeBatch(t *testing.T) {
	l := NewList(0, nil)
	fill(t, l, 8)

	_, err := l.Reserve(6)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 4, capErr.Remaining)
	assert.Equal(t, "Maximum 12 images allowed. You can upload 4 more.", capErr.Error())
	assert.Equal(t, 8, l.Len(), "no partial acceptance")

	res, err := l.Reserve(4)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Remaining())
	res.Close()
	assert.Equal(t, 4, l.Remaining(), "unused slots return on close")
}

func TestReservationsDoNotOverfill(t *testing.T) {
	l := NewList(12, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := l.Reserve(3)
			if err != nil {
				return
			}
			defer res.Close()
			for j := 0; j < 3; j++ {
				_ = res.Append(localEntry(fmt.Sprintf("g%d-%d", i, j)))
			}
			mu.Lock()
			accepted++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, accepted)
	assert.Equal(t, 12, l.Len())
	assert.Equal(t, 0, l.Remaining())
}

func TestReservationAppendLimits(t *testing.T) {
	l := NewList(5, nil)
	res, err := l.Reserve(1)
	require.NoError(t, err)
	require.NoError(t, res.Append(localEntry("a")))
	assert.ErrorIs(t, res.Append(localEntry("b")), ErrReservationClosed)
	res.Close()
	res.Close()
	assert.ErrorIs(t, res.Append(localEntry("c")), ErrReservationClosed)
	assert.Equal(t, 4, l.Remaining())
}

func TestRemoveReleasesLocalReferenceOnce(t *testing.T) {
	rel := newCountingReleaser()
	l := NewList(0, rel)
	res, _ := l.Reserve(2)
	require.NoError(t, res.Append(localEntry("local")))
	require.NoError(t, res.Append(remoteEntry("remote")))
	res.Close()

	removed, err := l.Remove("local")
	require.NoError(t, err)
	assert.Equal(t, "local", removed.ID)
	assert.Equal(t, 1, rel.calls["blob:local"])

	_, err = l.Remove("local")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, rel.calls["blob:local"], "never released twice")

	_, err = l.Remove("remote")
	require.NoError(t, err)
	assert.Len(t, rel.calls, 1, "remote entries hold no local reference")
	assert.Equal(t, 0, l.Len())
}

func TestMoveAndReorder(t *testing.T) {
	l := NewList(0, nil)
	fill(t, l, 4) // m0..m3

	items, err := l.Move(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m0", "m3"}, ids(items))
	assert.Equal(t, ids(items), ids(l.Items()))

	_, err = l.Move(0, 9)
	assert.Error(t, err)

	items, err = l.Reorder([]string{"m3", "m2", "m1", "m0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m2", "m1", "m0"}, ids(items))

	_, err = l.Reorder([]string{"m3", "m3", "m1", "m0"})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = l.Reorder([]string{"m3"})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, []string{"m3", "m2", "m1", "m0"}, ids(l.Items()))
}

func TestUpdateAndClear(t *testing.T) {
	rel := newCountingReleaser()
	l := NewList(0, rel)
	fill(t, l, 2)

	m, err := l.Update("m1", func(m *models.MediaFile) {
		m.Caption = "new caption"
		m.ID = "hijack"
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	got, ok := l.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "new caption", got.Caption)

	_, err = l.Update("nope", func(*models.MediaFile) {})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2, l.Clear())
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.Clear())
}

func ids(items []models.MediaFile) []string {
	out := make([]string, len(items))
	for i, m := range items {
		out[i] = m.ID
	}
	return out
}

func TestCloseRejectsLateAppends(t *testing.T) {
	rel := newCountingReleaser()
	l := NewList(0, rel)
	fill(t, l, 1)

	res, err := l.Reserve(2)
	require.NoError(t, err)

	assert.Equal(t, 1, l.Close())
	assert.ErrorIs(t, res.Append(localEntry("late")), ErrClosed)
	res.Close()

	_, err = l.Reserve(1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, l.Len())
}
