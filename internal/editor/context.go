package editor

import (
	"sync"
	"sync/atomic"

	"github.com/annel0/voxel-editor/internal/vec"
)

// SessionContext — явное разделяемое состояние сессии редактора,
// создаётся один раз и передаётся коллабораторам (вместо глобальных
// флагов «идёт очистка базы» и т.п.). Уничтожается вместе с сессией.
type SessionContext struct {
	generation atomic.Uint64 // токен поколения карты
	clearing   atomic.Bool   // идёт очистка карты

	mu           sync.RWMutex
	cameraOffset vec.Vec3Float
}

// NewSessionContext создаёт контекст сессии
func NewSessionContext() *SessionContext {
	return &SessionContext{}
}

// Generation возвращает текущий токен поколения карты.
// Нарезанная на инкременты работа обязана сверять токен перед применением
// каждого инкремента: карта могла быть очищена на лету.
func (sc *SessionContext) Generation() uint64 {
	return sc.generation.Load()
}

// BumpGeneration инвалидирует всю нарезанную работу предыдущего поколения
func (sc *SessionContext) BumpGeneration() uint64 {
	return sc.generation.Add(1)
}

// SetClearing выставляет флаг «идёт очистка карты»
func (sc *SessionContext) SetClearing(v bool) {
	sc.clearing.Store(v)
}

// Clearing сообщает, выполняется ли очистка карты
func (sc *SessionContext) Clearing() bool {
	return sc.clearing.Load()
}

// SetCameraOffset запоминает смещение камеры относительно начала мира
func (sc *SessionContext) SetCameraOffset(offset vec.Vec3Float) {
	sc.mu.Lock()
	sc.cameraOffset = offset
	sc.mu.Unlock()
}

// CameraOffset возвращает смещение камеры
func (sc *SessionContext) CameraOffset() vec.Vec3Float {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cameraOffset
}
