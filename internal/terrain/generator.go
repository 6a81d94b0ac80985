package terrain

import (
	"github.com/aquilax/go-perlin"

	"github.com/annel0/voxel-editor/internal/vec"
)

// Константы высот для генерации стартового рельефа
const (
	waterLevel = 0.30 // Ниже - вода
	sandLevel  = 0.38 // Ниже - песчаный берег
	stoneLevel = 0.75 // Выше - камень
)

// Generator создаёт стартовый рельеф новой карты на основе шума Перлина
type Generator struct {
	Seed       int64
	NoiseScale float64 // Масштаб шума (сглаженность ландшафта)
	MaxHeight  int     // Максимальная высота колонны в блоках

	noise *perlin.Perlin
}

// NewGenerator создаёт генератор с указанным сидом
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:       seed,
		NoiseScale: 0.05,
		MaxHeight:  12,
		noise:      perlin.NewPerlin(2, 2, 3, seed),
	}
}

// GenerateArea генерирует прямоугольную область [0,width) x [0,depth)
// и возвращает её как карту блоков для пакетного импорта.
func (g *Generator) GenerateArea(width, depth int) TerrainMap {
	out := make(TerrainMap, width*depth)

	for x := 0; x < width; x++ {
		for z := 0; z < depth; z++ {
			noiseX := float64(x) * g.NoiseScale
			noiseZ := float64(z) * g.NoiseScale

			// Noise2D возвращает значение в [-1, 1], нормализуем в [0, 1]
			height := (g.noise.Noise2D(noiseX, noiseZ) + 1.0) / 2.0

			surfaceID := g.blockForHeight(height)
			columnTop := int(height * float64(g.MaxHeight))

			// Колонна: поверхность сверху, ниже — земля и камень
			for y := 0; y <= columnTop; y++ {
				id := surfaceID
				switch {
				case y < columnTop-3:
					id = StoneBlockID
				case y < columnTop:
					id = DirtBlockID
				}
				out[vec.Vec3{X: x, Y: y, Z: z}] = id
			}
		}
	}

	return out
}

// blockForHeight выбирает блок поверхности по нормализованной высоте
func (g *Generator) blockForHeight(height float64) BlockID {
	switch {
	case height < waterLevel:
		return WaterBlockID
	case height < sandLevel:
		return SandBlockID
	case height > stoneLevel:
		return StoneBlockID
	default:
		return GrassBlockID
	}
}
