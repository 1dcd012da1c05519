package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.png")
	require.NoError(t, os.WriteFile(path, make([]byte, 40), 0o644))

	assert.NoError(t, Local(40, path))

	err := Local(50, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	var mismatch *SizeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, int64(50), mismatch.Expected)
	assert.Equal(t, int64(40), mismatch.Actual)
	assert.Equal(t, "local size mismatch: expected 50 but got 40", err.Error())
}

func TestLocalMissingFile(t *testing.T) {
	err := Local(10, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	var mismatch *SizeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, int64(-1), mismatch.Actual)
}

func TestAlwaysPass(t *testing.T) {
	assert.NoError(t, AlwaysPass{}.VerifyRemote(context.Background(), "any/key", 123))
}

type sizes map[string]int64

func (s sizes) ObjectSize(_ context.Context, key string) (int64, error) {
	n, ok := s[key]
	if !ok {
		return 0, errors.New("not found")
	}
	return n, nil
}

func TestObjectSize(t *testing.T) {
	v := ObjectSize{Store: sizes{"TLH/TLH-1/a.png": 100}}

	assert.NoError(t, v.VerifyRemote(context.Background(), "TLH/TLH-1/a.png", 100))

	err := v.VerifyRemote(context.Background(), "TLH/TLH-1/a.png", 99)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	err = v.VerifyRemote(context.Background(), "TLH/TLH-1/missing.png", 1)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}
