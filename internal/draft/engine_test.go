package draft

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/random"
)

func testRoster() *champion.Roster {
	return champion.NewRoster([]champion.Champion{
		{ID: "1", Name: "Aatrox", Roles: []champion.Lane{champion.Top}},
		{ID: "2", Name: "Garen", Roles: []champion.Lane{champion.Top, champion.Mid}},
		{ID: "3", Name: "Lee Sin", Roles: []champion.Lane{champion.Jungle}},
		{ID: "4", Name: "Vi", Roles: []champion.Lane{champion.Jungle, champion.Top}},
		{ID: "5", Name: "Ahri", Roles: []champion.Lane{champion.Mid}},
		{ID: "6", Name: "Zed", Roles: []champion.Lane{champion.Mid}},
		{ID: "7", Name: "Jinx", Roles: []champion.Lane{champion.ADC}},
		{ID: "8", Name: "Ezreal", Roles: []champion.Lane{champion.ADC, champion.Mid}},
		{ID: "9", Name: "Thresh", Roles: []champion.Lane{champion.Support}},
	})
}

type failingSource struct{}

func (failingSource) Intn(int) (int, error) { return 0, errors.New("entropy exhausted") }

func assertNoDuplicates(t *testing.T, a Assignments) {
	t.Helper()
	seen := map[string]bool{}
	for _, c := range a {
		if c == nil {
			continue
		}
		require.False(t, seen[c.Name], "duplicate pick %s", c.Name)
		seen[c.Name] = true
	}
}

func TestRollAll_NoDuplicatesAndAllLanesFilled(t *testing.T) {
	roster := testRoster()
	src := random.NewSecure()
	for i := 0; i < 500; i++ {
		a, err := RollAll(roster, champion.Lanes, nil, src)
		require.NoError(t, err)
		assertNoDuplicates(t, a)
		for _, lane := range champion.Lanes {
			c := a.Get(lane)
			require.NotNil(t, c, "lane %s", lane)
			assert.True(t, c.Plays(lane))
		}
	}
}

func TestRollAll_DisabledLanesStayNullWithoutDraws(t *testing.T) {
	seq := random.NewSequence(0)
	active := []champion.Lane{champion.Mid, champion.Support}

	a, err := RollAll(testRoster(), active, nil, seq)
	require.NoError(t, err)

	assert.Nil(t, a.Get(champion.Top))
	assert.Nil(t, a.Get(champion.Jungle))
	assert.Nil(t, a.Get(champion.ADC))
	assert.NotNil(t, a.Get(champion.Mid))
	assert.NotNil(t, a.Get(champion.Support))
	assert.Equal(t, 2, seq.Draws())
}

func TestRollAll_CanonicalOrderIsReproducible(t *testing.T) {
	// top candidates sorted: Aatrox, Garen, Vi -> index 1 = Garen.
	// mid then excludes Garen: Ahri, Ezreal, Zed -> index 0 = Ahri.
	a, err := RollAll(testRoster(), champion.Lanes, nil, random.NewSequence(1, 0, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "Garen", a.Get(champion.Top).Name)
	assert.Equal(t, "Lee Sin", a.Get(champion.Jungle).Name)
	assert.Equal(t, "Ahri", a.Get(champion.Mid).Name)
	assert.Equal(t, "Ezreal", a.Get(champion.ADC).Name)
	assert.Equal(t, "Thresh", a.Get(champion.Support).Name)
}

func TestRollAll_RespectsBlacklist(t *testing.T) {
	bl := NewNameSet("Thresh", "Jinx", "Ezreal")
	for i := 0; i < 50; i++ {
		a, err := RollAll(testRoster(), champion.Lanes, bl, random.NewSecure())
		require.NoError(t, err)
		assert.Nil(t, a.Get(champion.Support), "support's only candidate is blacklisted")
		assert.Nil(t, a.Get(champion.ADC))
		for _, c := range a {
			if c != nil {
				assert.False(t, bl.Has(c.Name))
			}
		}
	}
}

func TestRollAll_SingleCandidateIsAlwaysChosen(t *testing.T) {
	roster := testRoster()
	first, err := RollAll(roster, []champion.Lane{champion.Support}, nil, random.NewSecure())
	require.NoError(t, err)
	second, err := RollAll(roster, []champion.Lane{champion.Support}, nil, random.NewSecure())
	require.NoError(t, err)
	assert.Equal(t, "Thresh", first.Get(champion.Support).Name)
	assert.Equal(t, "Thresh", second.Get(champion.Support).Name)
}

func TestRollAll_PropagatesSourceError(t *testing.T) {
	_, err := RollAll(testRoster(), champion.Lanes, nil, failingSource{})
	require.Error(t, err)
}

func TestRollLane_ExcludesOtherAssignments(t *testing.T) {
	roster := testRoster()
	current := Empty().
		With(champion.Top, &champion.Champion{Name: "Garen"}).
		With(champion.ADC, &champion.Champion{Name: "Ezreal"}).
		With(champion.Mid, &champion.Champion{Name: "Ahri"})

	for i := 0; i < 100; i++ {
		c, err := RollLane(roster, champion.Mid, current, nil, random.NewSecure())
		require.NoError(t, err)
		require.NotNil(t, c)
		// Garen and Ezreal play elsewhere and Ahri is the pick being replaced.
		assert.Equal(t, "Zed", c.Name)
	}
}

func TestRollLane_ExhaustedYieldsNil(t *testing.T) {
	current := Empty().With(champion.Support, &champion.Champion{Name: "Thresh"})
	c, err := RollLane(testRoster(), champion.Support, current, nil, random.NewSecure())
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = RollLane(testRoster(), champion.Support, Empty(), NewNameSet("Thresh"), random.NewSecure())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestAssignments_JSONHasAllLanes(t *testing.T) {
	a := Empty().With(champion.Mid, &champion.Champion{ID: "5", Name: "Ahri", Roles: []champion.Lane{champion.Mid}})
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 5)
	assert.Equal(t, "null", string(raw["top"]))

	var back Assignments
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "Ahri", back.Get(champion.Mid).Name)
	assert.Nil(t, back.Get(champion.Top))

	assert.Error(t, json.Unmarshal([]byte(`{"bot":null}`), &back))
}

func TestActiveLanes(t *testing.T) {
	got := ActiveLanes(map[champion.Lane]bool{champion.Top: true, champion.ADC: true})
	assert.Equal(t, []champion.Lane{champion.Jungle, champion.Mid, champion.Support}, got)
}
