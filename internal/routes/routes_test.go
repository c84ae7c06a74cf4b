// internal/routes/routes_test.go
package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"label-service/internal/config"
	"label-service/internal/handler"
	"label-service/internal/repository"
	"label-service/internal/service"
	"label-service/internal/transport"
)

func TestRouterServesHealthAndAPI(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := &config.Config{
		App:      config.AppConfig{Name: "label-service", Environment: "test"},
		Security: config.SecurityConfig{AllowedOrigins: []string{"*"}},
		Printers: []config.PrinterConfig{{Name: "desk", Model: "b1", Connection: "usb", Address: "auto", Density: 3, LabelType: 1}},
	}

	repo := repository.NewMemoryJobRepository(0, logger)
	bus := handler.NewEventBus(logger)
	printers, err := service.NewPrinterService(cfg, repo, bus, nil, logger)
	if err != nil {
		t.Fatalf("NewPrinterService: %v", err)
	}
	lister := transport.PortListerFunc(func() ([]transport.PortInfo, error) { return nil, nil })

	r := NewRouter(cfg, logger, nil, printers,
		service.NewJobService(repo, &cfg.Jobs, logger),
		service.NewDiscoveryService(cfg, lister, logger),
		bus,
	)
	engine := r.SetupRouter()

	for _, path := range []string{"/health", "/live", "/ready", "/api/v1/printers", "/api/v1/jobs", "/api/v1/ws/stats"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Errorf("GET %s missing request id header", path)
		}
	}
}

func TestSetupRouterGinMode(t *testing.T) {
	tests := []struct {
		env   string
		debug bool
		want  string
	}{
		{"development", false, gin.DebugMode},
		{"test", false, gin.ReleaseMode},
		{"staging", true, gin.DebugMode},
		{"production", true, gin.ReleaseMode},
	}
	defer gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)
	for _, tt := range tests {
		cfg := &config.Config{App: config.AppConfig{Environment: tt.env, Debug: tt.debug}}
		repo := repository.NewMemoryJobRepository(0, logger)
		bus := handler.NewEventBus(logger)
		printers, err := service.NewPrinterService(cfg, repo, bus, nil, logger)
		if err != nil {
			t.Fatalf("NewPrinterService: %v", err)
		}
		NewRouter(cfg, logger, nil, printers,
			service.NewJobService(repo, &cfg.Jobs, logger),
			service.NewDiscoveryService(cfg, nil, logger),
			bus,
		).SetupRouter()

		if gin.Mode() != tt.want {
			t.Errorf("%s debug=%v: mode = %s, want %s", tt.env, tt.debug, gin.Mode(), tt.want)
		}
	}
}
