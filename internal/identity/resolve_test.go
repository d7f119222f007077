package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watchlog/internal/model"
)

func TestResolve_WatchAndShortLinkShareID(t *testing.T) {
	t.Parallel()

	watch, ok := Resolve("https://x/watch?v=ABC123&t=5s")
	require.True(t, ok)
	short, ok := Resolve("https://youtu.be/ABC123")
	require.True(t, ok)

	assert.Equal(t, "ABC123", watch.ID)
	assert.Equal(t, watch.ID, short.ID)
	assert.Equal(t, model.ShapeWatch, watch.Shape)
	assert.Equal(t, model.ShapeShortLink, short.Shape)
}

func TestResolve_Shapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		link  string
		id    string
		shape model.Shape
		ok    bool
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", model.ShapeWatch, true},
		{"watch with playlist", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1&index=2", "dQw4w9WgXcQ", model.ShapeWatch, true},
		{"relative watch", "/watch?v=dQw4w9WgXcQ&pp=abc", "dQw4w9WgXcQ", model.ShapeWatch, true},
		{"mobile host", "https://m.youtube.com/watch?v=abc_DEF-123", "abc_DEF-123", model.ShapeWatch, true},
		{"no scheme", "youtu.be/XYZ987?si=tracking", "XYZ987", model.ShapeShortLink, true},
		{"embed", "https://www.youtube.com/embed/EMB123", "EMB123", model.ShapeWatch, true},
		{"shorts rejected", "https://www.youtube.com/shorts/SHORT1", "", model.ShapeShorts, false},
		{"watch without id", "https://www.youtube.com/watch?list=PL1", "", model.ShapeWatch, false},
		{"channel link", "https://www.youtube.com/@veritasium", "", model.ShapeUnknown, false},
		{"empty", "", "", model.ShapeUnknown, false},
		{"bad id", "https://www.youtube.com/watch?v=a%20b", "", model.ShapeWatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve(tt.link)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, got.ID)
			assert.Equal(t, tt.shape, Classify(tt.link))
		})
	}
}

func TestIsShortForm(t *testing.T) {
	t.Parallel()

	assert.True(t, IsShortForm("https://www.youtube.com/shorts/abc"))
	assert.True(t, IsShortForm("/Shorts/abc"))
	assert.False(t, IsShortForm("https://www.youtube.com/watch?v=shorts"))
}

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	id, ok := Resolve(CanonicalURL("ABC123"))
	require.True(t, ok)
	assert.Equal(t, "ABC123", id.ID)
}
