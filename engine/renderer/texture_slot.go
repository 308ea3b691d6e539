package renderer

// TextureSlot owns at most one texture. Replacing the texture releases the
// previous one.
type TextureSlot struct {
	name    string
	texture Texture
}

func NewTextureSlot(name string) *TextureSlot {
	return &TextureSlot{name: name}
}

func (s *TextureSlot) Name() string {
	return s.name
}

// Texture returns the current texture, or nil when the slot is empty.
func (s *TextureSlot) Texture() Texture {
	return s.texture
}

func (s *TextureSlot) IsEmpty() bool {
	return s.texture == nil
}

func (s *TextureSlot) Replace(t Texture) {
	if s.texture != nil && s.texture != t {
		s.texture.Release()
	}
	s.texture = t
}

func (s *TextureSlot) Release() {
	s.Replace(nil)
}
