package catalog

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "irmut.dev/pkg/irmut/internal/model"
)

func sampleMutations() []m.Mutation {
	return []m.Mutation{
		{ID: 1, Kind: m.KindAOR, Function: "compute", Index: 2, Op: m.OpAdd, TOp: m.OpSub},
		{ID: 2, Kind: m.KindAOR, Function: "compute", Index: 2, Op: m.OpAdd, TOp: m.OpMul},
		{ID: 3, Kind: m.KindLOR, Function: "compute", Index: 4, Op: m.OpAnd, TOp: m.OpOr},
		{ID: 4, Kind: m.KindROR, Function: "compute", Index: 5, Op: m.OpICmp, SPre: m.PredSGT, TPre: m.PredSLT},
		{ID: 5, Kind: m.KindSTD, Function: "main", Index: 0, Op: m.OpCall, FTp: m.TagVoid},
		{ID: 6, Kind: m.KindLVR, Function: "main", Index: 1, Op: m.OpAdd, OpIndex: 1, SCon: 10, TCon: -1},
	}
}

func TestEncodeLine(t *testing.T) {
	muts := sampleMutations()

	assert.Equal(t, "1:AOR:compute:2:14:16", EncodeLine(muts[0]))
	assert.Equal(t, "4:ROR:compute:5:46:38:40", EncodeLine(muts[3]))
	assert.Equal(t, "5:STD:main:0:56:4", EncodeLine(muts[4]))
	assert.Equal(t, "6:LVR:main:1:14:1:10:-1", EncodeLine(muts[5]))
}

func TestRoundTrip(t *testing.T) {
	// parse(serialize(M)) must reproduce M exactly, for every kind.
	for _, mut := range sampleMutations() {
		got, err := ParseLine(EncodeLine(mut))
		require.NoError(t, err, "line %q", EncodeLine(mut))
		assert.Equal(t, mut, got)
	}
}

func TestWriteRead(t *testing.T) {
	muts := sampleMutations()

	var sb strings.Builder
	require.NoError(t, Write(&sb, muts))

	got, err := Read(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, muts, got)
}

func TestParseLineRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"1:AOR:f",
		"x:AOR:f:0:14:16",
		"1:XXX:f:0:14:16",
		"1:AOR:f:0:14",
		"1:ROR:f:0:46:38",
		"1:LVR:f:0:14:1:10",
		"1:AOR:f:-1:14:16",
		"0:AOR:f:0:14:16",
		"10001:AOR:f:0:14:16",
		"1:AOR:f:0:fourteen:16",
	}
	for _, line := range bad {
		_, err := ParseLine(line)
		assert.ErrorIs(t, err, ErrMalformed, "line %q", line)
	}
}

func TestReadRejectsGaps(t *testing.T) {
	text := "1:AOR:f:0:14:16\n3:AOR:f:1:14:18\n"

	_, err := Read(strings.NewReader(text))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mutations.txt")
	muts := sampleMutations()

	require.NoError(t, Save(path, muts))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, muts, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	store, err := NewStore(sampleMutations())
	require.NoError(t, err)

	assert.Equal(t, 6, store.Len())

	mut, ok := store.Get(4)
	require.True(t, ok)
	assert.Equal(t, m.KindROR, mut.Kind)

	_, ok = store.Get(0)
	assert.False(t, ok)
	_, ok = store.Get(7)
	assert.False(t, ok)

	assert.Len(t, store.ForFunction("compute"), 4)
	assert.Len(t, store.ForFunction("main"), 2)
	assert.Empty(t, store.ForFunction("absent"))
}

func TestStoreSites(t *testing.T) {
	store, err := NewStore(sampleMutations())
	require.NoError(t, err)

	sites := store.Sites("compute")
	require.Len(t, sites, 3)

	// Each site is a contiguous id run sharing one instruction index.
	assert.Len(t, sites[0], 2)

	for _, site := range sites {
		for i := 1; i < len(site); i++ {
			assert.Equal(t, site[0].Index, site[i].Index)
			assert.Equal(t, site[i-1].ID+1, site[i].ID)
		}
	}
}

func TestStoreRejectsSparseIDs(t *testing.T) {
	muts := sampleMutations()
	muts[2].ID = 9

	_, err := NewStore(muts)
	assert.Error(t, err)
}
