package terrain

// PendingChangeSet накапливает несохранённые изменения террейна с момента
// последнего успешного flush. По каждому ключу хранится итоговая операция
// для durable store: «записать значение» (Added) либо «удалить, было prev»
// (Removed). Инвариант: ключ никогда не находится в обеих картах сразу.
type PendingChangeSet struct {
	Added   TerrainMap // позиция -> новый ID блока
	Removed TerrainMap // позиция -> прежний ID блока
}

// NewPendingChangeSet создаёт пустой набор изменений
func NewPendingChangeSet() *PendingChangeSet {
	return &PendingChangeSet{
		Added:   make(TerrainMap),
		Removed: make(TerrainMap),
	}
}

// Merge вливает батч изменений с применением правила замещения:
// позиция из added и removed одного батча схлопывается в «добавлено».
func (p *PendingChangeSet) Merge(added, removed TerrainMap) {
	removed = CollapseReplacements(added, removed)

	for pos, prev := range removed {
		if _, wasAdded := p.Added[pos]; wasAdded {
			// Блок был поставлен после последнего flush и теперь снят:
			// итоговая операция — удаление ключа. Удаление отсутствующего
			// ключа при flush идемпотентно.
			delete(p.Added, pos)
		}
		if _, already := p.Removed[pos]; !already {
			p.Removed[pos] = prev
		}
	}

	for pos, id := range added {
		if id == 0 {
			continue
		}
		p.Added[pos] = id
		delete(p.Removed, pos)
	}
}

// IsEmpty сообщает, есть ли несохранённые изменения
func (p *PendingChangeSet) IsEmpty() bool {
	return len(p.Added) == 0 && len(p.Removed) == 0
}

// Len возвращает суммарное количество отложенных операций
func (p *PendingChangeSet) Len() int {
	return len(p.Added) + len(p.Removed)
}

// Clone создаёт независимую копию набора
func (p *PendingChangeSet) Clone() *PendingChangeSet {
	return &PendingChangeSet{
		Added:   p.Added.Clone(),
		Removed: p.Removed.Clone(),
	}
}

// Clear опустошает набор без переаллокации ссылок у владельца
func (p *PendingChangeSet) Clear() {
	p.Added = make(TerrainMap)
	p.Removed = make(TerrainMap)
}

// RestoreFailed возвращает в набор снимок, запись которого не удалась.
// Записи, появившиеся после снятия снимка, новее и имеют приоритет:
// снимок восстанавливается только для нетронутых ключей.
func (p *PendingChangeSet) RestoreFailed(snapshot *PendingChangeSet) {
	if snapshot == nil {
		return
	}

	for pos, id := range snapshot.Added {
		if _, ok := p.Added[pos]; ok {
			continue
		}
		if _, ok := p.Removed[pos]; ok {
			continue
		}
		p.Added[pos] = id
	}

	for pos, prev := range snapshot.Removed {
		if _, ok := p.Added[pos]; ok {
			continue
		}
		if _, ok := p.Removed[pos]; ok {
			continue
		}
		p.Removed[pos] = prev
	}
}
