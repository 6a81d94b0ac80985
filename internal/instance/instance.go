package instance

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-editor/internal/vec"
)

// Ошибки движка инстансов
var (
	// ErrCapacityExceeded возвращается при превышении глобального лимита
	// объектов окружения; операция отменяется без частичных мутаций.
	ErrCapacityExceeded = errors.New("превышен лимит объектов окружения")

	// ErrInstanceNotFound возвращается для несуществующего (modelKey, id)
	ErrInstanceNotFound = errors.New("инстанс не найден")

	// ErrSlotOccupied возвращается при попытке занять уже занятый явный id
	ErrSlotOccupied = errors.New("слот инстанса уже занят")
)

// Transform описывает позицию, поворот (Эйлеровы углы в радианах) и масштаб
type Transform struct {
	Position vec.Vec3Float `json:"position"`
	Rotation vec.Vec3Float `json:"rotation"`
	Scale    vec.Vec3Float `json:"scale"`
}

// Matrix компонует матрицу модели T·Rz·Ry·Rx·S для пер-инстансного буфера
func (t Transform) Matrix() mgl32.Mat4 {
	translate := mgl32.Translate3D(float32(t.Position.X), float32(t.Position.Y), float32(t.Position.Z))
	rotX := mgl32.HomogRotate3DX(float32(t.Rotation.X))
	rotY := mgl32.HomogRotate3DY(float32(t.Rotation.Y))
	rotZ := mgl32.HomogRotate3DZ(float32(t.Rotation.Z))
	scale := mgl32.Scale3D(float32(t.Scale.X), float32(t.Scale.Y), float32(t.Scale.Z))

	return translate.Mul4(rotZ).Mul4(rotY).Mul4(rotX).Mul4(scale)
}

// BoundingRadius возвращает радиус ограничивающей сферы инстанса.
// Консервативная оценка по наибольшей компоненте масштаба.
func (t Transform) BoundingRadius() float64 {
	r := t.Scale.X
	if t.Scale.Y > r {
		r = t.Scale.Y
	}
	if t.Scale.Z > r {
		r = t.Scale.Z
	}
	if r <= 0 {
		r = 1.0
	}
	return r
}

// EnvironmentInstance — размещённый объект окружения.
// InstanceID — стабильный индекс слота, уникальный в пределах modelKey;
// слот никогда не переиспользуется без явного освобождения.
type EnvironmentInstance struct {
	ModelKey   string    `json:"model_key"`
	InstanceID int       `json:"instance_id"`
	Transform  Transform `json:"transform"`
	Visible    bool      `json:"-"`
}

// FootprintBounds возвращает AABB следа инстанса для пространственного индекса
func (e *EnvironmentInstance) FootprintBounds() (min, max vec.Vec3Float) {
	r := e.Transform.BoundingRadius() / 2.0
	p := e.Transform.Position
	min = vec.Vec3Float{X: p.X - r, Y: p.Y, Z: p.Z - r}
	max = vec.Vec3Float{X: p.X + r, Y: p.Y + r*2.0, Z: p.Z + r}
	return min, max
}
