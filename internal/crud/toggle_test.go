package crud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"tracker-api/internal/apperr"
)

func commentPath(t *testing.T, f *fixture) Path {
	t.Helper()
	issue, err := NewService(f.eng, f.res.Issues).Create(f.ctx, f.a, nil, map[string]any{"name": "Crash"})
	require.NoError(t, err)
	c, err := NewService(f.eng, f.res.Comments).Create(f.ctx, f.a, Path{issue.ID}, map[string]any{"body": "same here"})
	require.NoError(t, err)
	return Path{issue.ID, c.ID}
}

func TestToggle_OnOff(t *testing.T) {
	f := newFixture(t)
	path := commentPath(t, f)
	reactions := NewToggleService(f.eng, f.res.Reactions.Config())

	res, err := reactions.Toggle(f.ctx, f.a, path, map[string]any{"emoji": "👍"})
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, []Tally{{Value: "👍", Count: 1, Mine: true}}, res.Aggregate)

	other := f.a
	other.PrincipalID = "second-user"
	res, err = reactions.Toggle(f.ctx, other, path, map[string]any{"emoji": "👍"})
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, 2, res.Aggregate[0].Count)

	res, err = reactions.Toggle(f.ctx, f.a, path, map[string]any{"emoji": "👍"})
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, []Tally{{Value: "👍", Count: 1, Mine: false}}, res.Aggregate)

	tallies, err := reactions.Get(f.ctx, other, path)
	require.NoError(t, err)
	assert.Equal(t, []Tally{{Value: "👍", Count: 1, Mine: true}}, tallies)
}

func TestToggle_Rejects(t *testing.T) {
	f := newFixture(t)
	path := commentPath(t, f)
	reactions := NewToggleService(f.eng, f.res.Reactions.Config())

	_, err := reactions.Toggle(f.ctx, f.a, path, map[string]any{})
	requireFields(t, err, map[string]string{"emoji": "required"})

	_, err = reactions.Toggle(f.ctx, f.b, path, map[string]any{"emoji": "👍"})
	requireKind(t, err, apperr.ErrNotFound)

	_, err = reactions.Toggle(f.ctx, f.a, Path{path[0], "missing"}, map[string]any{"emoji": "👍"})
	requireKind(t, err, apperr.ErrNotFound)
}

func TestToggle_ConcurrentParity(t *testing.T) {
	for _, n := range []int{8, 9} {
		f := newFixture(t)
		path := commentPath(t, f)
		reactions := NewToggleService(f.eng, f.res.Reactions.Config())

		var g errgroup.Group
		for range n {
			g.Go(func() error {
				_, err := reactions.Toggle(f.ctx, f.a, path, map[string]any{"emoji": "🎉"})
				return err
			})
		}
		require.NoError(t, g.Wait())

		tallies, err := reactions.Get(f.ctx, f.a, path)
		require.NoError(t, err)
		if n%2 == 0 {
			assert.Empty(t, tallies, "n=%d", n)
		} else {
			assert.Equal(t, []Tally{{Value: "🎉", Count: 1, Mine: true}}, tallies, "n=%d", n)
		}
	}
}
