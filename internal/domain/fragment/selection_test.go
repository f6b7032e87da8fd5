package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/pkg/errors"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("grow")
	require.NoError(t, err)
	assert.Equal(t, ModeGrow, m)

	m, err = ParseMode(" Link ")
	require.NoError(t, err)
	assert.Equal(t, ModeLink, m)

	_, err = ParseMode("dock")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidMode))
}

func TestResolveByNames_Grow(t *testing.T) {
	lib := testLibrary(t, "F1", "F2", "F3")

	key, frags, err := lib.ResolveByNames(ModeGrow, "F2")
	require.NoError(t, err)
	assert.Equal(t, ElaborationKey{Mode: ModeGrow, Names: []string{"F2"}}, key)
	assert.Equal(t, "F2.sdf", key.Filename())
	require.Len(t, frags, 1)
	assert.Equal(t, "F2", frags[0].Name)
}

func TestResolveByNames_LinkNormalizesOrder(t *testing.T) {
	lib := testLibrary(t, "F1", "F2", "F3")

	key, frags, err := lib.ResolveByNames(ModeLink, "F3", "F1")
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F3"}, key.Names)
	assert.Equal(t, "F1-F3.sdf", key.Filename())
	assert.Equal(t, "link:F1-F3", key.String())
	require.Len(t, frags, 2)
	assert.Equal(t, "F1", frags[0].Name)
	assert.Equal(t, "F3", frags[1].Name)

	swapped, _, err := lib.ResolveByNames(ModeLink, "F1", "F3")
	require.NoError(t, err)
	assert.Equal(t, key, swapped)
}

func TestResolveByNames_SelectionSize(t *testing.T) {
	lib := testLibrary(t, "F1", "F2")

	_, _, err := lib.ResolveByNames(ModeGrow, "F1", "F2")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSelection))
	assert.Contains(t, err.Error(), "exactly 1")

	_, _, err = lib.ResolveByNames(ModeLink, "F1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSelection))
	assert.Contains(t, err.Error(), "exactly 2")
}

func TestResolveByNames_UnknownFragment(t *testing.T) {
	lib := testLibrary(t, "F1", "F2")

	_, _, err := lib.ResolveByNames(ModeGrow, "F9")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownFragment))
}

func TestResolveByNames_LinkRejectsSameFragmentTwice(t *testing.T) {
	lib := testLibrary(t, "F1", "F2")

	_, _, err := lib.ResolveByNames(ModeLink, "F1", "F1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSelection))
}

func TestResolveByNames_UnknownMode(t *testing.T) {
	lib := testLibrary(t, "F1")

	_, _, err := lib.ResolveByNames(Mode("dock"), "F1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidMode))
}

func TestResolveByIndices(t *testing.T) {
	lib := testLibrary(t, "F1", "F2", "F3")

	key, frags, err := lib.ResolveByIndices(ModeLink, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "F3"}, key.Names)
	require.Len(t, frags, 2)
	assert.Equal(t, "F1", frags[0].Name)

	_, _, err = lib.ResolveByIndices(ModeGrow, 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownFragment))
}
