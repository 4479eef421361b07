package slug

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Red Shirt", "red-shirt"},
		{"ALL UPPER CASE", "all-upper-case"},
		{"Hello!!! World???", "hello-world"},
		{"price: $100", "price-100"},
		{"   hello world   ", "hello-world"},
		{"hello\t\tworld", "hello-world"},
		{"a - - b", "a-b"},
		{"-hello-", "hello"},
		{"Kadın Giyim", "kadin-giyim"},
		{"Çocuk Ürünleri", "cocuk-urunleri"},
		{"Güneş Gözlüğü", "gunes-gozlugu"},
		{"İstanbul", "istanbul"},
		{"Crème Brûlée", "creme-brulee"},
		{"Straße", "strasse"},
		{"Łódź", "lodz"},
		{"123", "123"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}

func TestGenerate_EmptyResults(t *testing.T) {
	assert.Equal(t, "", Generate(""))
	assert.Equal(t, "", Generate("   "))
	assert.Equal(t, "", Generate("!!!"))
}

func TestGenerate_IsIdempotent(t *testing.T) {
	for _, name := range []string{"Red Shirt", "Çocuk Ürünleri", "a--b", "Blue Shirt 2"} {
		once := Generate(name)
		assert.Equal(t, once, Generate(once))
	}
}

// takenSet is an ExistsFunc over a fixed set that records every lookup.
type takenSet struct {
	mu      sync.Mutex
	taken   map[string]bool
	lookups []string
}

func (s *takenSet) exists(_ context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, slug)
	return s.taken[slug], nil
}

func TestGenerateUnique_BaseFree(t *testing.T) {
	set := &takenSet{taken: map[string]bool{}}
	got, err := GenerateUnique(context.Background(), "Red Shirt", set.exists)
	require.NoError(t, err)
	assert.Equal(t, "red-shirt", got)
	assert.Equal(t, []string{"red-shirt"}, set.lookups)
}

func TestGenerateUnique_AppendsCounter(t *testing.T) {
	set := &takenSet{taken: map[string]bool{"red-shirt": true}}
	got, err := GenerateUnique(context.Background(), "Red Shirt", set.exists)
	require.NoError(t, err)
	assert.Equal(t, "red-shirt-1", got)
}

func TestGenerateUnique_TriesSuffixesInOrder(t *testing.T) {
	set := &takenSet{taken: map[string]bool{
		"red-shirt":   true,
		"red-shirt-1": true,
		"red-shirt-2": true,
	}}
	got, err := GenerateUnique(context.Background(), "Red Shirt", set.exists)
	require.NoError(t, err)
	assert.Equal(t, "red-shirt-3", got)
	assert.Equal(t, []string{"red-shirt", "red-shirt-1", "red-shirt-2", "red-shirt-3"}, set.lookups)
}

func TestGenerateUnique_ResultNeverTaken(t *testing.T) {
	taken := map[string]bool{}
	for i := 0; i < 20; i++ {
		set := &takenSet{taken: taken}
		got, err := GenerateUnique(context.Background(), "Blue Shirt", set.exists)
		require.NoError(t, err)
		assert.False(t, taken[got], "slug %q returned twice", got)
		taken[got] = true
	}
	assert.True(t, taken["blue-shirt"])
	assert.True(t, taken["blue-shirt-19"])
}

func TestGenerateUnique_EmptyBase(t *testing.T) {
	called := false
	_, err := GenerateUnique(context.Background(), "!!!", func(context.Context, string) (bool, error) {
		called = true
		return false, nil
	})
	require.Error(t, err)
	assert.True(t, IsEmptySlug(err))
	assert.False(t, called, "store must not be consulted for an empty base")
}

func TestGenerateUnique_StoreErrorAborts(t *testing.T) {
	storeErr := errors.New("connection refused")
	_, err := GenerateUnique(context.Background(), "Red Shirt", func(context.Context, string) (bool, error) {
		return false, storeErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), `"red-shirt"`)
}

func TestGenerateUnique_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := GenerateUnique(ctx, "Red Shirt", func(context.Context, string) (bool, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return true, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}

func ExampleGenerateUnique() {
	taken := map[string]bool{"red-shirt": true}
	s, _ := GenerateUnique(context.Background(), "Red Shirt", func(_ context.Context, slug string) (bool, error) {
		return taken[slug], nil
	})
	fmt.Println(s)
	// Output: red-shirt-1
}
