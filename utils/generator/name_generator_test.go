package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeBaseName(t *testing.T) {
	tests := []struct {
		name     string
		original string
		want     string
	}{
		{"plain", "whiskers.png", "whiskers.png"},
		{"spaces", "my cat.jpg", "my_cat.jpg"},
		{"unix traversal", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\tom\Pictures\tom.png`, "tom.png"},
		{"hidden file", ".bashrc", "bashrc"},
		{"unicode", "猫.png", "_.png"},
		{"empty", "", "image"},
		{"dots", "..", "image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeBaseName(tt.original))
		})
	}
}

func TestSanitizeBaseName_TruncatesKeepingExtension(t *testing.T) {
	got := SanitizeBaseName(strings.Repeat("a", 300) + ".png")
	assert.Len(t, got, maxBaseLen)
	assert.True(t, strings.HasSuffix(got, ".png"))
}

func TestNameGenerator_Generate(t *testing.T) {
	g := NewNameGenerator(false)
	g.newID = func() string { return "0b1c" }

	assert.Equal(t, "0b1c-whiskers.png", g.Generate("whiskers.png"))
	assert.Equal(t, "0b1c-passwd", g.Generate("../../etc/passwd"))
}

func TestNameGenerator_Unique(t *testing.T) {
	g := NewNameGenerator(false)

	a := g.Generate("whiskers.png")
	b := g.Generate("whiskers.png")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "-whiskers.png"))
	assert.True(t, strings.HasSuffix(b, "-whiskers.png"))
}

func TestNameGenerator_KeepOriginal(t *testing.T) {
	g := NewNameGenerator(true)
	g.newID = func() string { return "0b1c" }

	assert.Equal(t, "my cat.png", g.Generate("my cat.png"))
	assert.Equal(t, "tom.png", g.Generate(`C:\tmp\tom.png`))
	// 不可用的文件名退回到生成的名字
	assert.Equal(t, "0b1c-image", g.Generate(".."))
}
