package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySequentialIDs(t *testing.T) {
	r := NewCustomBlockRegistry()

	first, err := r.Register("мох", GrassBlockID, 0x2F4F2F)
	require.NoError(t, err)
	second, err := r.Register("базальт", StoneBlockID, 0x1C1C1C)
	require.NoError(t, err)

	assert.Equal(t, CustomBlockBase, first.ID)
	assert.Equal(t, CustomBlockBase+1, second.ID)

	got, ok := r.Lookup(first.ID)
	assert.True(t, ok)
	assert.Equal(t, "мох", got.Name)
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewCustomBlockRegistry()
	_, err := r.Register("", StoneBlockID, 0)
	assert.Error(t, err)
}

func TestRegistryLoadRestoresNextID(t *testing.T) {
	r := NewCustomBlockRegistry()
	r.Load([]CustomBlockType{
		{ID: 1001, Name: "мох", BaseID: GrassBlockID},
		{ID: 1005, Name: "базальт", BaseID: StoneBlockID},
		{ID: 42, Name: "мусор"}, // ниже базы — игнорируется
	})

	assert.Len(t, r.All(), 2)

	next, err := r.Register("новый", DirtBlockID, 0)
	require.NoError(t, err)
	assert.Equal(t, BlockID(1006), next.ID, "nextID должен продолжиться после максимального загруженного")
}

func TestRegistryAllSorted(t *testing.T) {
	r := NewCustomBlockRegistry()
	r.Load([]CustomBlockType{
		{ID: 1010, Name: "c"},
		{ID: 1001, Name: "a"},
		{ID: 1005, Name: "b"},
	})

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, BlockID(1001), all[0].ID)
	assert.Equal(t, BlockID(1005), all[1].ID)
	assert.Equal(t, BlockID(1010), all[2].ID)
}

func TestGeneratorDeterministic(t *testing.T) {
	a := NewGenerator(12345).GenerateArea(16, 16)
	b := NewGenerator(12345).GenerateArea(16, 16)

	require.NotEmpty(t, a, "Генератор должен выдавать непустой рельеф")
	assert.Equal(t, a, b, "Один сид — одинаковый рельеф")

	for pos, id := range a {
		assert.NotEqual(t, AirBlockID, id, "Карта не должна содержать пустых записей (%v)", pos)
		assert.GreaterOrEqual(t, pos.Y, 0)
	}
}
