package metadata

import "testing"

func TestParseChannelView(t *testing.T) {
	for c := ChannelView(0); c < ChannelViewCount; c++ {
		got, err := ParseChannelView(c.String())
		if err != nil || got != c {
			t.Fatalf("ParseChannelView(%q): got %v, %v, want %v", c.String(), got, err, c)
		}
	}
	if got, _ := ParseChannelView(" diff "); got != ChannelViewDiff {
		t.Fatalf("ParseChannelView: got %v, want %v", got, ChannelViewDiff)
	}
	if _, err := ParseChannelView("alpha"); err == nil {
		t.Fatalf("expected an error for an unknown view")
	}
}

func TestSubresourceCount(t *testing.T) {
	d := TextureDesc{Width: 64, Height: 64, MipLevels: 7, ArraySize: 3}
	if got := d.SubresourceCount(); got != 21 {
		t.Fatalf("SubresourceCount: got %d, want 21", got)
	}
}
