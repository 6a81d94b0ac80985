package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/voxel-editor/internal/config"
	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/eventbus"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/storage"
	"github.com/annel0/voxel-editor/internal/terrain"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV EDITOR_CONFIG)")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("editor"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🧊 Запуск рантайма воксельного редактора...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
		logging.Info("Конфигурация не задана, используются значения по умолчанию")
	}

	dataPath := cfg.Storage.GetDataPath()
	metricsPort := cfg.Metrics.GetMetricsPort()
	logging.Info("📡 Конфигурация: data=%s, metrics=:%d, flush=%ds, лимит окружения=%d",
		dataPath, metricsPort, cfg.Persistence.GetAutoFlushSeconds(), cfg.Editor.GetMaxEnvironmentObjects())

	// === ИНИЦИАЛИЗАЦИЯ КОМПОНЕНТОВ ===

	// Durable store мира
	logging.Debug("Открытие хранилища мира...")
	store, err := storage.NewWorldStore(dataPath, cfg.Persistence.GetWriteBatchSize())
	if err != nil {
		logging.Error("❌ Ошибка открытия хранилища: %v", err)
		log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
	}

	// Шина уведомлений для UI-слоя и метрики
	bus := eventbus.NewMemoryBus(256)
	metrics := editor.NewMetrics()

	// Сессия редактора; меш-систему подключает рендер-слой (здесь её нет)
	logging.Debug("Создание сессии редактора...")
	session := editor.NewSession(cfg, store, nil, bus, metrics)

	// Загружаем мир; пустой мир получает стартовый рельеф пакетным импортом
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Load(ctx); err != nil {
		logging.Error("❌ Ошибка загрузки мира: %v", err)
	}
	if session.Terrain().Len() == 0 {
		logging.Info("🌱 Мир пуст, генерация стартового рельефа...")
		gen := terrain.NewGenerator(time.Now().UnixNano())
		starter := gen.GenerateArea(64, 64)
		if err := session.StartImport(starter, cfg.Editor.GetImportSliceSize()); err != nil {
			logging.Error("Импорт стартового рельефа не запущен: %v", err)
		}
	}

	// Автосохранение
	go session.Scheduler().Run(ctx)

	// Prometheus метрики
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", metricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Сервер метрик остановлен с ошибкой: %v", err)
		}
	}()

	// Интерактивный цикл: без подключённого рендера просто продвигаем
	// инкрементальную работу (импорт, куллинг) с частотой кадра
	frameTicker := time.NewTicker(16 * time.Millisecond)
	defer frameTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-frameTicker.C:
				session.ProcessFrame(session.Context().CameraOffset(), nil)
			}
		}
	}()

	logging.Info("✅ Редактор запущен")
	logging.Info("   📊 Метрики: http://localhost:%d/metrics", metricsPort)
	logging.Info("   💾 Данные: %s", dataPath)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	cancel()

	// Финальное сохранение перед закрытием хранилища
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if err := session.SaveManually(saveCtx); err != nil {
		logging.Error("❌ Ошибка финального сохранения: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки сервера метрик: %v", err)
	}

	if err := store.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища: %v", err)
	}

	logging.Info("👋 Редактор остановлен")
}
