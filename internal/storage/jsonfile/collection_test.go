package jsonfile_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidtracker/aidtracker/internal/storage/jsonfile"
)

type item struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func openTestCollection(t *testing.T, path string, logger zerolog.Logger) *jsonfile.Collection[item] {
	t.Helper()
	c, err := jsonfile.Open[item](path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readAll(t *testing.T, c *jsonfile.Collection[item]) []item {
	t.Helper()
	var out []item
	err := c.Read(context.Background(), func(items []item) error {
		out = append(out, items...)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestOpen_CreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "items.json")
	openTestCollection(t, path, zerolog.Nop())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestMutate_PersistsIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	c := openTestCollection(t, path, zerolog.Nop())

	err := c.Mutate(context.Background(), func(items []item) ([]item, error) {
		return append(items, item{ID: 1, Label: "first"}), nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"id\": 1,")

	reopened := openTestCollection(t, path, zerolog.Nop())
	assert.Equal(t, []item{{ID: 1, Label: "first"}}, readAll(t, reopened))
}

func TestMutate_ErrorLeavesStateUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	c := openTestCollection(t, path, zerolog.Nop())

	require.NoError(t, c.Mutate(context.Background(), func(items []item) ([]item, error) {
		return append(items, item{ID: 1, Label: "keep"}), nil
	}))

	errBoom := errors.New("boom")
	err := c.Mutate(context.Background(), func(items []item) ([]item, error) {
		items[0].Label = "changed"
		return nil, errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []item{{ID: 1, Label: "keep"}}, readAll(t, c))
}

func TestOpen_CorruptFileIsReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var logs bytes.Buffer
	c := openTestCollection(t, path, zerolog.New(&logs))

	assert.Empty(t, readAll(t, c))
	assert.Contains(t, logs.String(), "resetting collection to empty")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestOpen_NonArrayIsReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))

	c := openTestCollection(t, path, zerolog.Nop())
	assert.Empty(t, readAll(t, c))
}

func TestMutate_ConcurrentAppendsAreSerialised(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	c := openTestCollection(t, path, zerolog.Nop())

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := c.Mutate(context.Background(), func(items []item) ([]item, error) {
				return append(items, item{ID: id}), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, readAll(t, c), writers)

	reopened := openTestCollection(t, path, zerolog.Nop())
	assert.Len(t, readAll(t, reopened), writers)
}

func TestClose_RejectsFurtherOperations(t *testing.T) {
	c, err := jsonfile.Open[item](filepath.Join(t.TempDir(), "items.json"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err = c.Read(context.Background(), func([]item) error { return nil })
	assert.ErrorIs(t, err, jsonfile.ErrClosed)
}
