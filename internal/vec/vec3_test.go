package vec

import (
	"testing"
)

func TestVec3KeyRoundTrip(t *testing.T) {
	cases := []Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 2, Z: 3},
		{X: -5, Y: 12, Z: -300},
		{X: 1000000, Y: -1000000, Z: 42},
	}

	for _, v := range cases {
		key := v.Key()
		parsed, err := ParseKey(key)
		if err != nil {
			t.Fatalf("Ошибка разбора ключа %q: %v", key, err)
		}
		if !parsed.Equals(v) {
			t.Errorf("Ожидался %v после round-trip, получен %v", v, parsed)
		}
	}
}

func TestParseKeyInvalid(t *testing.T) {
	invalid := []string{"", "1,2", "1,2,3,4", "a,b,c", "1,2,z"}

	for _, key := range invalid {
		if _, err := ParseKey(key); err == nil {
			t.Errorf("Ожидалась ошибка для ключа %q", key)
		}
	}
}

func TestVec3DistanceSquared(t *testing.T) {
	a := Vec3{X: 0, Y: 0, Z: 0}
	b := Vec3{X: 3, Y: 4, Z: 0}

	if d := a.DistanceSquaredTo(b); d != 25 {
		t.Errorf("Ожидался квадрат расстояния 25, получен %d", d)
	}
}

func TestVec3FloatToVoxel(t *testing.T) {
	// Квантование должно брать floor, в том числе для отрицательных координат
	cases := []struct {
		in   Vec3Float
		want Vec3
	}{
		{Vec3Float{X: 0.5, Y: 0.9, Z: 0.0}, Vec3{X: 0, Y: 0, Z: 0}},
		{Vec3Float{X: -0.5, Y: 1.5, Z: -2.1}, Vec3{X: -1, Y: 1, Z: -3}},
	}

	for _, c := range cases {
		if got := c.in.ToVoxel(); !got.Equals(c.want) {
			t.Errorf("ToVoxel(%v): ожидался %v, получен %v", c.in, c.want, got)
		}
	}
}

func TestVec3FloatDistance(t *testing.T) {
	a := Vec3Float{X: 1, Y: 1, Z: 1}
	b := Vec3Float{X: 4, Y: 5, Z: 1}

	if d := a.DistanceTo(b); d != 5.0 {
		t.Errorf("Ожидалось расстояние 5.0, получено %f", d)
	}
	if d := a.DistanceSquaredTo(b); d != 25.0 {
		t.Errorf("Ожидался квадрат расстояния 25.0, получен %f", d)
	}
}
