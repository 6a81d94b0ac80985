package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxel-editor/internal/instance"
	"github.com/annel0/voxel-editor/internal/terrain"
	"github.com/annel0/voxel-editor/internal/vec"
)

// Имена логических хранилищ внутри одной BadgerDB
const (
	StoreTerrain     = "terrain"
	StoreEnvironment = "env"
	StoreBlocks      = "blocks"

	// SnapshotKey — ключ текущего снимка внутри каждого хранилища
	SnapshotKey = "current"
)

// Ошибки хранилища
var (
	ErrStoreNotReady = errors.New("хранилище не готово")
	ErrNotFound      = errors.New("ключ не найден")
)

// WorldStore — durable key-value хранилище мира поверх BadgerDB.
// Снимок террейна хранится поэлементно (ключ на позицию), что позволяет
// инкрементальные записи; список окружения и пользовательские блоки —
// zstd-сжатыми JSON-блобами.
type WorldStore struct {
	db        *badger.DB
	dbPath    string
	mutex     sync.RWMutex
	isReady   bool
	batchSize int // размер суб-батча записи (лимит транзакции store)

	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

// NewWorldStore открывает хранилище мира в указанной директории
func NewWorldStore(dataPath string, batchSize int) (*WorldStore, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 256
	}

	zenc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd-кодер: %w", err)
	}
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd-декодер: %w", err)
	}

	return &WorldStore{
		db:        db,
		dbPath:    dbPath,
		isReady:   true,
		batchSize: batchSize,
		zenc:      zenc,
		zdec:      zdec,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStore) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

// blobKey собирает ключ блоба "<store>:<key>"
func blobKey(store, key string) []byte {
	return []byte(store + ":" + key)
}

// terrainEntryKey собирает ключ позиции террейна "terrain:current:<x,y,z>"
func terrainEntryKey(pos vec.Vec3) []byte {
	return []byte(StoreTerrain + ":" + SnapshotKey + ":" + pos.Key())
}

// terrainEntryPrefix — префикс всех позиций снимка террейна
func terrainEntryPrefix() []byte {
	return []byte(StoreTerrain + ":" + SnapshotKey + ":")
}

// GetData читает значение по ключу из логического хранилища.
// Отсутствующий ключ — ErrNotFound.
func (ws *WorldStore) GetData(store, key string) ([]byte, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrStoreNotReady
	}

	var data []byte
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(store, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return data, nil
}

// SaveData записывает значение по ключу в логическое хранилище
func (ws *WorldStore) SaveData(store, key string, value []byte) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrStoreNotReady
	}

	err := ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(store, key), value)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	return nil
}

// ClearStore удаляет все ключи логического хранилища
func (ws *WorldStore) ClearStore(store string) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrStoreNotReady
	}

	prefix := []byte(store + ":")
	keys := make([][]byte, 0)

	err := ws.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка обхода хранилища %s: %w", store, err)
	}

	// Удаляем суб-батчами, чтобы не упереться в лимит транзакции
	for start := 0; start < len(keys); start += ws.batchSize {
		end := start + ws.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		err := ws.db.Update(func(txn *badger.Txn) error {
			for _, k := range batch {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("ошибка очистки хранилища %s: %w", store, err)
		}
	}

	return nil
}

// terrainOp — одна операция записи снимка террейна
type terrainOp struct {
	key    []byte
	value  []byte // nil — удаление
	delete bool
}

// ApplyTerrainBatch записывает набор изменений террейна суб-батчами
// фиксированного размера. Ошибка любого суб-батча возвращается вызывающему;
// восстановление pending — забота ChangeTracker.
func (ws *WorldStore) ApplyTerrainBatch(pending *terrain.PendingChangeSet) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrStoreNotReady
	}
	if pending == nil || pending.IsEmpty() {
		return nil
	}

	ops := make([]terrainOp, 0, pending.Len())
	for pos, id := range pending.Added {
		value := make([]byte, 4)
		binary.BigEndian.PutUint32(value, uint32(id))
		ops = append(ops, terrainOp{key: terrainEntryKey(pos), value: value})
	}
	for pos := range pending.Removed {
		ops = append(ops, terrainOp{key: terrainEntryKey(pos), delete: true})
	}

	for start := 0; start < len(ops); start += ws.batchSize {
		end := start + ws.batchSize
		if end > len(ops) {
			end = len(ops)
		}
		batch := ops[start:end]

		err := ws.db.Update(func(txn *badger.Txn) error {
			for _, op := range batch {
				if op.delete {
					if err := txn.Delete(op.key); err != nil {
						return err
					}
					continue
				}
				if err := txn.Set(op.key, op.value); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("ошибка записи батча террейна [%d:%d]: %w", start, end, err)
		}
	}

	return nil
}

// LoadTerrain читает полный снимок террейна префиксным обходом
func (ws *WorldStore) LoadTerrain() (terrain.TerrainMap, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrStoreNotReady
	}

	out := make(terrain.TerrainMap)
	prefix := terrainEntryPrefix()

	err := ws.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			posKey := string(item.Key()[len(prefix):])
			pos, err := vec.ParseKey(posKey)
			if err != nil {
				return fmt.Errorf("повреждённый ключ террейна: %w", err)
			}
			err = item.Value(func(val []byte) error {
				if len(val) != 4 {
					return fmt.Errorf("повреждённое значение блока %s: %d байт", posKey, len(val))
				}
				id := terrain.BlockID(binary.BigEndian.Uint32(val))
				if id != 0 {
					out[pos] = id
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки террейна: %w", err)
	}

	return out, nil
}

// SaveEnvironment сохраняет упорядоченный список инстансов окружения
// единым zstd-сжатым JSON-блобом
func (ws *WorldStore) SaveEnvironment(list []instance.EnvironmentInstance) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("ошибка сериализации окружения: %w", err)
	}
	return ws.SaveData(StoreEnvironment, SnapshotKey, ws.zenc.EncodeAll(data, nil))
}

// LoadEnvironment загружает список инстансов окружения.
// Отсутствующий снимок — пустой список.
func (ws *WorldStore) LoadEnvironment() ([]instance.EnvironmentInstance, error) {
	raw, err := ws.GetData(StoreEnvironment, SnapshotKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := ws.zdec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки окружения: %w", err)
	}

	var list []instance.EnvironmentInstance
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("ошибка десериализации окружения: %w", err)
	}
	return list, nil
}

// SaveCustomBlocks сохраняет список пользовательских типов блоков
func (ws *WorldStore) SaveCustomBlocks(list []terrain.CustomBlockType) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("ошибка сериализации пользовательских блоков: %w", err)
	}
	return ws.SaveData(StoreBlocks, SnapshotKey, ws.zenc.EncodeAll(data, nil))
}

// LoadCustomBlocks загружает список пользовательских типов блоков
func (ws *WorldStore) LoadCustomBlocks() ([]terrain.CustomBlockType, error) {
	raw, err := ws.GetData(StoreBlocks, SnapshotKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := ws.zdec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки пользовательских блоков: %w", err)
	}

	var list []terrain.CustomBlockType
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("ошибка десериализации пользовательских блоков: %w", err)
	}
	return list, nil
}

// ClearAll очищает все логические хранилища (новая карта)
func (ws *WorldStore) ClearAll() error {
	for _, store := range []string{StoreTerrain, StoreEnvironment, StoreBlocks} {
		if err := ws.ClearStore(store); err != nil {
			return err
		}
	}
	return nil
}
