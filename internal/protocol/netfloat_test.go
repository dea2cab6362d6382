package protocol

import "testing"

func TestNetfloatRoundTrip(t *testing.T) {
	for _, f := range []float32{0, 1, -1, 0.5, 3.14159, -123.456} {
		got := NetfloatToFloat(FloatToNetfloat(f))
		if got != f {
			t.Errorf("round trip for %v: got %v", f, got)
		}
	}
}
