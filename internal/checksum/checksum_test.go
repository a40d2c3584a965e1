package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("distinct inputs collide")
	}
}

func TestSame(t *testing.T) {
	data := []byte(`{"title":"x"}`)
	if !Same(Sum(data), data) {
		t.Error("Same rejects matching data")
	}
	if Same(Sum(data), []byte(`{"title":"y"}`)) {
		t.Error("Same accepts changed data")
	}
	if Same("", data) {
		t.Error("empty checksum matched")
	}
}
