package vec

import (
	"fmt"
	"strconv"
	"strings"
)

// Vec3 представляет трехмерный вектор с целочисленными координатами воксельной сетки
type Vec3 struct {
	X int
	Y int
	Z int
}

// Key возвращает канонический строковый ключ позиции вида "x,y,z".
// Используется как ключ при сохранении в durable store.
func (v Vec3) Key() string {
	return strconv.Itoa(v.X) + "," + strconv.Itoa(v.Y) + "," + strconv.Itoa(v.Z)
}

// ParseKey разбирает канонический ключ "x,y,z" обратно в Vec3
func ParseKey(key string) (Vec3, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 3 {
		return Vec3{}, fmt.Errorf("некорректный ключ позиции: %q", key)
	}

	x, err := strconv.Atoi(parts[0])
	if err != nil {
		return Vec3{}, fmt.Errorf("некорректная координата X в ключе %q: %w", key, err)
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return Vec3{}, fmt.Errorf("некорректная координата Y в ключе %q: %w", key, err)
	}
	z, err := strconv.Atoi(parts[2])
	if err != nil {
		return Vec3{}, fmt.Errorf("некорректная координата Z в ключе %q: %w", key, err)
	}

	return Vec3{X: x, Y: y, Z: z}, nil
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// DistanceSquaredTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceSquaredTo(other Vec3) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// ToFloat преобразует Vec3 в Vec3Float
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{
		X: float64(v.X),
		Y: float64(v.Y),
		Z: float64(v.Z),
	}
}
