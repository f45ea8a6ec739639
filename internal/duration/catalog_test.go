package duration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	all := c.All()
	require.Len(t, all, 3)

	for _, o := range all {
		assert.Greater(t, o.Minutes, 0)
		assert.LessOrEqual(t, o.Minutes, maxMinutes)
		assert.Greater(t, o.MaxFileSizeBytes, int64(0))
	}
}

func TestOption_TierAndCap(t *testing.T) {
	o, err := Default().ByMinutes(5)
	require.NoError(t, err)

	assert.Equal(t, Standard, o.ID)
	assert.Equal(t, "5_minutes", o.Tier())
	assert.Equal(t, 300, o.MaxDurationSeconds())
}

func TestParseTier(t *testing.T) {
	c := Default()

	o, err := c.ParseTier("2_minutes")
	require.NoError(t, err)
	assert.Equal(t, Short, o.ID)

	for _, bad := range []string{"3_minutes", "five_minutes", "5", "", "_minutes"} {
		_, err := c.ParseTier(bad)
		assert.ErrorIs(t, err, ErrUnknownDuration, bad)
	}
}

func TestLookupRejectsAdHocValues(t *testing.T) {
	c := Default()

	_, err := c.Lookup("marathon")
	assert.ErrorIs(t, err, ErrUnknownDuration)

	_, err = c.ByMinutes(7)
	assert.ErrorIs(t, err, ErrUnknownDuration)
}

func TestResolve(t *testing.T) {
	c := Default()

	byID, err := c.Resolve("extended")
	require.NoError(t, err)
	byTier, err := c.Resolve("10_minutes")
	require.NoError(t, err)
	assert.Equal(t, byID, byTier)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Option{ID: "x", Minutes: 61, MaxFileSizeBytes: 1})
	assert.Error(t, err)

	_, err = New(
		Option{ID: "a", Minutes: 1, MaxFileSizeBytes: 1},
		Option{ID: "b", Minutes: 1, MaxFileSizeBytes: 1},
	)
	assert.Error(t, err)

	c, err := New(Option{ID: "a", Minutes: 1, MaxFileSizeBytes: 1})
	require.NoError(t, err)
	assert.Len(t, c.All(), 1)
}
