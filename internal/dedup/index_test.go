package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watchlog/internal/model"
)

var (
	d1 = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	d2 = time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
)

func TestOffer_LongerTitleWins(t *testing.T) {
	t.Parallel()

	x := New()
	id := model.VideoIdentity{ID: "cat1", Shape: model.ShapeWatch}
	x.Offer(id, "Cat", d1)
	x.Offer(id, "Cat Video Full Title", d2)

	recs := x.Finalize()
	require.Len(t, recs, 1)
	assert.Equal(t, "Cat Video Full Title", recs[0].BestTitle)
	assert.Equal(t, d1, recs[0].FirstSeenDate, "first-seen date is never updated")
	assert.Equal(t, 1, x.Duplicates())
}

func TestOffer_ShorterOrEqualTitleKept(t *testing.T) {
	t.Parallel()

	x := New()
	id := model.VideoIdentity{ID: "v", Shape: model.ShapeWatch}
	x.Offer(id, "Full Title", d1)
	x.Offer(id, "Short", d2)
	x.Offer(id, "Same Len!!", d2)

	recs := x.Finalize()
	require.Len(t, recs, 1)
	assert.Equal(t, "Full Title", recs[0].BestTitle)
	assert.Equal(t, 2, x.Duplicates())
}

func TestOffer_CountsDuplicatesAcrossShapes(t *testing.T) {
	t.Parallel()

	x := New()
	x.Offer(model.VideoIdentity{ID: "A", Shape: model.ShapeWatch}, "a", d1)
	x.Offer(model.VideoIdentity{ID: "B", Shape: model.ShapeWatch}, "b", d1)
	x.Offer(model.VideoIdentity{ID: "A", Shape: model.ShapeShortLink}, "a", d2)

	recs := x.Finalize()
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Identity.ID)
	assert.Equal(t, model.ShapeWatch, recs[0].Identity.Shape)
	assert.Equal(t, "B", recs[1].Identity.ID)
	assert.Equal(t, 1, x.Duplicates())
	assert.Equal(t, 2, x.Len())
}

func TestOffer_ComparesNormalizedRunes(t *testing.T) {
	t.Parallel()

	x := New()
	id := model.VideoIdentity{ID: "v"}
	// "é" precomposed vs "e" + combining accent are the same title after NFC.
	x.Offer(id, "Caf\u00e9", d1)
	x.Offer(id, "Cafe\u0301", d1)

	recs := x.Finalize()
	require.Len(t, recs, 1)
	assert.Equal(t, "Caf\u00e9", recs[0].BestTitle)
}

func TestFinalize_ReturnsCopy(t *testing.T) {
	t.Parallel()

	x := New()
	x.Offer(model.VideoIdentity{ID: "A"}, "a", d1)
	recs := x.Finalize()
	recs[0].BestTitle = "mutated"
	assert.Equal(t, "a", x.Finalize()[0].BestTitle)
}
