package terrain

import (
	"fmt"
	"sort"
	"sync"
)

// CustomBlockType описывает производный пользовательский тип блока
type CustomBlockType struct {
	ID     BlockID `json:"id"`
	Name   string  `json:"name"`
	BaseID BlockID `json:"base_id"` // базовый блок, от которого унаследован вариант
	Tint   uint32  `json:"tint"`    // цвет в формате 0xRRGGBB
}

// CustomBlockRegistry хранит пользовательские типы блоков (ID ≥ 1001).
// Список персистится отдельно от снимка террейна.
type CustomBlockRegistry struct {
	mu     sync.RWMutex
	types  map[BlockID]CustomBlockType
	nextID BlockID
}

// NewCustomBlockRegistry создаёт пустой регистр пользовательских блоков
func NewCustomBlockRegistry() *CustomBlockRegistry {
	return &CustomBlockRegistry{
		types:  make(map[BlockID]CustomBlockType),
		nextID: CustomBlockBase,
	}
}

// Register создаёт новый пользовательский тип и присваивает ему следующий ID
func (r *CustomBlockRegistry) Register(name string, baseID BlockID, tint uint32) (CustomBlockType, error) {
	if name == "" {
		return CustomBlockType{}, fmt.Errorf("имя пользовательского блока не может быть пустым")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bt := CustomBlockType{
		ID:     r.nextID,
		Name:   name,
		BaseID: baseID,
		Tint:   tint,
	}
	r.types[bt.ID] = bt
	r.nextID++

	return bt, nil
}

// Lookup возвращает тип по ID
func (r *CustomBlockRegistry) Lookup(id BlockID) (CustomBlockType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bt, ok := r.types[id]
	return bt, ok
}

// All возвращает все типы, отсортированные по ID (стабильный порядок для персистентности)
func (r *CustomBlockRegistry) All() []CustomBlockType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CustomBlockType, 0, len(r.types))
	for _, bt := range r.types {
		out = append(out, bt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load замещает содержимое регистра загруженным списком
func (r *CustomBlockRegistry) Load(types []CustomBlockType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types = make(map[BlockID]CustomBlockType, len(types))
	r.nextID = CustomBlockBase
	for _, bt := range types {
		if bt.ID < CustomBlockBase {
			continue
		}
		r.types[bt.ID] = bt
		if bt.ID >= r.nextID {
			r.nextID = bt.ID + 1
		}
	}
}

// Clear опустошает регистр (новая карта)
func (r *CustomBlockRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types = make(map[BlockID]CustomBlockType)
	r.nextID = CustomBlockBase
}
