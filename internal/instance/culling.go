package instance

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-editor/internal/vec"
)

// recentKey — ключ TTL-набора «только что поставлен»
type recentKey struct {
	model string
	id    int
}

// Frustum — шесть плоскостей отсечения в форме (a,b,c,d), нормали внутрь
type Frustum struct {
	planes [6]mgl32.Vec4
}

// FrustumFromMatrix извлекает плоскости из матрицы projection*view
// (метод Грибба-Хартманна) и нормализует их.
func FrustumFromMatrix(vp mgl32.Mat4) *Frustum {
	f := &Frustum{}

	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	f.planes[0] = r3.Add(r0) // левая
	f.planes[1] = r3.Sub(r0) // правая
	f.planes[2] = r3.Add(r1) // нижняя
	f.planes[3] = r3.Sub(r1) // верхняя
	f.planes[4] = r3.Add(r2) // ближняя
	f.planes[5] = r3.Sub(r2) // дальняя

	for i := range f.planes {
		n := f.planes[i].Vec3().Len()
		if n > 0 {
			f.planes[i] = f.planes[i].Mul(1.0 / n)
		}
	}

	return f
}

// IntersectsSphere проверяет пересечение ограничивающей сферы с фрустумом
func (f *Frustum) IntersectsSphere(center mgl32.Vec3, radius float32) bool {
	for i := range f.planes {
		dist := f.planes[i].Vec3().Dot(center) + f.planes[i].W()
		if dist < -radius {
			return false
		}
	}
	return true
}

// CullResult — итог прохода куллинга
type CullResult struct {
	Performed bool // false, если проход отсечён троттлингом
	Visible   int
	Hidden    int
}

// CullingPass пересчитывает видимость всех инстансов относительно камеры.
// Инстанс видим, если он в пределах дистанции видимости И (при наличии
// фрустума) его сфера пересекает фрустум; «только что поставленные»
// принудительно видимы до истечения защитного окна. Переписываются только
// матрицы трансформов — топология буферов и соответствие id → слот
// не меняются (невидимый слот получает нулевой масштаб).
//
// Непрерывное движение камеры троттлится минимальным интервалом; force
// выполняет проход немедленно (размещение, удаление, телепорт камеры).
func (e *Engine) CullingPass(camera vec.Vec3Float, frustum *Frustum, force bool) CullResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if !force && now.Sub(e.lastCull) < e.cullInterval {
		return CullResult{Performed: false}
	}
	e.lastCull = now

	// Сметаем истёкшие записи TTL-набора
	for key, deadline := range e.recent {
		if !now.Before(deadline) {
			delete(e.recent, key)
		}
	}

	res := CullResult{Performed: true}
	for _, pool := range e.pools {
		for id, inst := range pool.live {
			visible := e.visibleLocked(inst, camera, frustum, now)

			if visible {
				res.Visible++
				if !inst.Visible {
					pool.buffer[id] = inst.Transform.Matrix()
					inst.Visible = true
				}
			} else {
				res.Hidden++
				if inst.Visible {
					pool.buffer[id] = zeroMat
					inst.Visible = false
				}
			}
		}
	}

	return res
}
