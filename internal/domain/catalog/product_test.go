package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSize(t *testing.T) {
	p := &Product{Sizes: []string{"S", "M"}, SizeBuckets: []SizeBucket{{Size: "XL", Pieces: 1}}}

	got, ok := p.ResolveSize("m")
	assert.True(t, ok)
	assert.Equal(t, "M", got)

	got, ok = p.ResolveSize("xl")
	assert.True(t, ok)
	assert.Equal(t, "XL", got)

	_, ok = p.ResolveSize("X")
	assert.False(t, ok, "prefix matches must not resolve")
	_, ok = p.ResolveSize("")
	assert.False(t, ok)
}

func TestHasSizes(t *testing.T) {
	assert.False(t, (&Product{}).HasSizes())
	assert.True(t, (&Product{Sizes: []string{"M"}}).HasSizes())
	assert.True(t, (&Product{SizeBuckets: []SizeBucket{{Size: "M"}}}).HasSizes())
}

func TestColorNamesUnion(t *testing.T) {
	p := &Product{
		Colors:      []string{"Red", "blue"},
		ColorImages: []ColorImages{{Color: "Blue"}, {Color: "Green"}},
	}
	assert.Equal(t, []string{"Red", "blue", "Green"}, p.ColorNames())

	got, ok := p.ResolveColor("GREEN")
	assert.True(t, ok)
	assert.Equal(t, "Green", got)

	_, ok = p.ResolveColor("Gre")
	assert.False(t, ok)
}

func TestImageFor(t *testing.T) {
	p := &Product{
		Images:      []string{"main.jpg"},
		ColorImages: []ColorImages{{Color: "Red", URLs: []string{"red-1.jpg", "red-2.jpg"}}},
	}
	assert.Equal(t, "red-1.jpg", p.ImageFor("red"))
	assert.Equal(t, "main.jpg", p.ImageFor("blue"))
	assert.Equal(t, "main.jpg", p.ImageFor(""))
	assert.Equal(t, "", (&Product{}).ImageFor("red"))
}

func TestCloneCopiesSlices(t *testing.T) {
	p := &Product{SizeBuckets: []SizeBucket{{Size: "M", Pieces: 2}}, ColorImages: []ColorImages{{Color: "Red", URLs: []string{"a"}}}}
	c := p.Clone()
	c.SizeBuckets[0].Pieces = 9
	c.ColorImages[0].URLs[0] = "b"
	assert.Equal(t, 2, p.SizeBuckets[0].Pieces)
	assert.Equal(t, "a", p.ColorImages[0].URLs[0])
}
