package vectorizer

import (
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var cryptoDocs = []string{
	"Bitcoin is surging to new highs",
	"Meme coins are becoming popular",
	"AI and cryptocurrency are the future of finance",
}

func column(t *testing.T, v *TFIDF, term string) int {
	t.Helper()
	for i, w := range v.Vocabulary() {
		if w == term {
			return i
		}
	}
	t.Fatalf("term %q not in vocabulary %v", term, v.Vocabulary())
	return -1
}

func TestFitTransform(t *testing.T) {
	v := New(DefaultOptions())
	x, err := v.FitTransform(cryptoDocs)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ai", "becoming", "bitcoin", "coins", "cryptocurrency", "finance",
		"future", "highs", "meme", "new", "popular", "surging",
	}, v.Vocabulary())

	r, c := x.Dims()
	assert.Equal(t, 3, r, "one row per document")
	assert.Equal(t, 12, c)

	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, mat.Norm(x.RowView(i), 2), 1e-12)
	}
	// four equally rare terms per document
	assert.InDelta(t, 0.5, x.At(0, column(t, v, "bitcoin")), 1e-12)
	assert.Zero(t, x.At(1, column(t, v, "bitcoin")))
	assert.True(t, v.Fitted())
}

func TestFitTransformErrors(t *testing.T) {
	v := New(DefaultOptions())

	_, err := v.FitTransform(nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	_, err = v.FitTransform([]string{"", "   "})
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	_, err = v.FitTransform([]string{"the and of", "is are to"})
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
	assert.False(t, v.Fitted())
}

func TestTransform(t *testing.T) {
	t.Run("before fit", func(t *testing.T) {
		_, err := New(DefaultOptions()).Transform([]string{"bitcoin"})
		assert.ErrorIs(t, err, ErrNotFitted)
	})

	t.Run("unseen terms dropped", func(t *testing.T) {
		v := New(DefaultOptions())
		_, err := v.FitTransform(cryptoDocs)
		require.NoError(t, err)

		x, err := v.Transform([]string{"bitcoin dogecoin", "dogecoin only"})
		require.NoError(t, err)
		_, c := x.Dims()
		assert.Equal(t, 12, c)
		assert.InDelta(t, 1.0, x.At(0, column(t, v, "bitcoin")), 1e-12)
		assert.Zero(t, mat.Norm(x.RowView(1), 2))
	})

	t.Run("empty input", func(t *testing.T) {
		v := New(DefaultOptions())
		_, err := v.FitTransform(cryptoDocs)
		require.NoError(t, err)
		_, err = v.Transform(nil)
		assert.ErrorIs(t, err, ErrEmptyCorpus)
	})
}

func TestDocumentFrequencyFilters(t *testing.T) {
	docs := []string{"crypto moon", "crypto dump", "moon lambo"}

	v := New(Options{MinDF: 2, MaxDF: 1})
	_, err := v.FitTransform(docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"crypto", "moon"}, v.Vocabulary())

	v = New(Options{MinDF: 1, MaxDF: 0.5})
	_, err = v.FitTransform(docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"dump", "lambo"}, v.Vocabulary())

	v = New(Options{MinDF: 5})
	_, err = v.FitTransform(docs)
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestMaxFeatures(t *testing.T) {
	v := New(Options{MaxFeatures: 2})
	_, err := v.FitTransform([]string{"crypto crypto moon", "crypto lambo", "moon"})
	require.NoError(t, err)
	assert.Equal(t, []string{"crypto", "moon"}, v.Vocabulary())
}

func TestNGrams(t *testing.T) {
	v := New(Options{NGramMax: 2})
	_, err := v.FitTransform([]string{"the meme coin pump"})
	require.NoError(t, err)
	assert.Equal(t, []string{"coin", "coin pump", "meme", "meme coin", "pump"}, v.Vocabulary())
}

func TestSublinearTF(t *testing.T) {
	v := New(Options{SublinearTF: true})
	x, err := v.FitTransform([]string{"pump pump pump dump"})
	require.NoError(t, err)

	pump := x.At(0, column(t, v, "pump"))
	dump := x.At(0, column(t, v, "dump"))
	assert.InDelta(t, 1+math.Log(3), pump/dump, 1e-12)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "vectorizer.json")
	orig := New(Options{NGramMax: 2, SublinearTF: true})
	_, err := orig.FitTransform(cryptoDocs)
	require.NoError(t, err)
	require.NoError(t, orig.Save(path))

	loaded := New(DefaultOptions())
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, orig.Vocabulary(), loaded.Vocabulary())
	assert.Equal(t, orig.Options(), loaded.Options())

	heldOut := []string{"bitcoin meme coins surging", "the future of AI"}
	want, err := orig.Transform(heldOut)
	require.NoError(t, err)
	got, err := loaded.Transform(heldOut)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}

func TestSaveUnfitted(t *testing.T) {
	err := New(DefaultOptions()).Save(filepath.Join(t.TempDir(), "v.json"))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestLoadMissingFile(t *testing.T) {
	v := New(DefaultOptions())
	assert.Error(t, v.Load(filepath.Join(t.TempDir(), "absent.json")))
	assert.False(t, v.Fitted())
}

func TestConcurrentTransform(t *testing.T) {
	v := New(DefaultOptions())
	_, err := v.FitTransform(cryptoDocs)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Transform(cryptoDocs)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
