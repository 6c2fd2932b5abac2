package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixturesMapsUsersAndProducts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	raw := `{
		"users": [{"id": "U1", "name": "Bea Buyer", "email": "bea@example.com"}],
		"products": [{"id": "P1", "seller_id": "U2", "name": "Rain jacket", "images": ["a.png"], "price_cents": 4500, "currency": "EUR"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	f, err := LoadFixtures(path)
	require.NoError(t, err)

	profiles := f.Profiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "U1", profiles[0].ID)
	assert.Equal(t, "bea@example.com", profiles[0].Email)

	products := f.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "U2", products[0].SellerID)
	assert.Equal(t, int64(4500), products[0].PriceCents)
	assert.Equal(t, []string{"a.png"}, products[0].Images)
}

func TestLoadFixturesRepoFile(t *testing.T) {
	f, err := LoadFixtures(filepath.Join("..", "..", "..", "..", "data", "fixtures.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, f.Profiles())
	assert.NotEmpty(t, f.Products())
}

func TestLoadFixturesMissingFile(t *testing.T) {
	_, err := LoadFixtures(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
