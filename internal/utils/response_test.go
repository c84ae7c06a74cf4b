// internal/utils/response_test.go
package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"label-service/internal/niimbot"
	"label-service/internal/transport"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", &niimbot.ConfigurationError{Field: "density", Reason: "out of range"}, http.StatusBadRequest},
		{"no response", &niimbot.JobError{State: niimbot.StateJobEnded, Err: niimbot.ErrNoResponse}, http.StatusGatewayTimeout},
		{"device error", fmt.Errorf("print: %w", niimbot.ErrDeviceError), http.StatusBadGateway},
		{"unsupported", niimbot.ErrUnsupported, http.StatusBadGateway},
		{"connection", &niimbot.ConnectionError{Op: "open", Err: fmt.Errorf("no such file")}, http.StatusServiceUnavailable},
		{"ambiguous", &transport.AmbiguousPortError{Candidates: []transport.PortInfo{{Name: "a"}, {Name: "b"}}}, http.StatusConflict},
		{"no ports", transport.ErrNoPorts, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusForError(tt.err); got != tt.want {
				t.Fatalf("StatusForError = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDomainErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/print", nil)
	c.Set("request_id", "req-1")

	DomainErrorResponse(c, "Print failed", &niimbot.JobError{State: niimbot.StatePrinting, Err: niimbot.ErrDeviceError})

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Success   bool              `json:"success"`
		Error     APIError          `json:"error"`
		Data      map[string]string `json:"data"`
		RequestID string            `json:"request_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Error.Code != "DEVICE_ERROR" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Data["state"] != "printing" {
		t.Errorf("state = %q", resp.Data["state"])
	}
	if resp.RequestID != "req-1" {
		t.Errorf("request id = %q", resp.RequestID)
	}
}

func TestDomainErrorResponseListsCandidates(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/print", nil)

	err := fmt.Errorf("open printer: %w", &transport.AmbiguousPortError{Candidates: []transport.PortInfo{{Name: "/dev/ttyACM0"}, {Name: "/dev/ttyUSB0"}}})
	DomainErrorResponse(c, "Cannot choose a port", err)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Error APIError `json:"error"`
		Data  struct {
			Candidates []transport.PortInfo `json:"candidates"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "AMBIGUOUS_PORT" || len(resp.Data.Candidates) != 2 {
		t.Fatalf("response = %+v", resp)
	}
}
