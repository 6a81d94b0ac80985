package vec

import "math"

// Vec3Float представляет трехмерный вектор с плавающими координатами мирового пространства
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает другой вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// DistanceSquaredTo возвращает квадрат расстояния до другого вектора.
// Квадрат используется для сравнения с порогом видимости без вычисления корня.
func (v Vec3Float) DistanceSquaredTo(other Vec3Float) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// DistanceTo возвращает расстояние до другого вектора
func (v Vec3Float) DistanceTo(other Vec3Float) float64 {
	return math.Sqrt(v.DistanceSquaredTo(other))
}

// ToVoxel квантует мировую позицию в координаты воксельной сетки
func (v Vec3Float) ToVoxel() Vec3 {
	return Vec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}
