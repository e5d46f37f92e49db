package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testConfig() model.AppConfig {
	return model.AppConfig{
		Directus: model.DirectusConfig{
			URL:       "http://localhost:8055",
			AssetsURL: "http://localhost:8055/assets",
		},
		Notifications: model.NotificationConfig{PollIntervalSec: 30, VisibleToasts: 3, PageSize: 10},
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"http://localhost:8055", false},
		{" https://cms.example.com ", false},
		{"", true},
		{"localhost:8055", true},
		{"ftp://example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := validateURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateURL(%q) = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRange(t *testing.T) {
	v := validateRange("Poll interval", 5, 3600)
	for in, wantErr := range map[string]bool{"5": false, " 60 ": false, "4": true, "3601": true, "soon": true} {
		if err := v(in); (err != nil) != wantErr {
			t.Errorf("validateRange(%q) = %v, wantErr %v", in, err, wantErr)
		}
	}
}

func TestApplyForm(t *testing.T) {
	m := New("cfg.yaml", testConfig(), nil, keys.DefaultKeyMap(), 80, 24)
	m.resetForm()
	m.fb.url = "https://cms.example.com/"
	m.fb.polling = true
	m.fb.interval = "60"
	m.fb.visible = "5"

	cfg := m.applyForm()
	if cfg.Directus.URL != "https://cms.example.com" {
		t.Errorf("URL = %q", cfg.Directus.URL)
	}
	if cfg.Directus.AssetsURL != "https://cms.example.com/assets" {
		t.Errorf("AssetsURL = %q, want it to follow the derived default", cfg.Directus.AssetsURL)
	}
	if !cfg.Notifications.Polling || cfg.Notifications.PollIntervalSec != 60 || cfg.Notifications.VisibleToasts != 5 {
		t.Errorf("Notifications = %+v", cfg.Notifications)
	}
	if cfg.Notifications.PageSize != 10 {
		t.Errorf("PageSize = %d, want untouched 10", cfg.Notifications.PageSize)
	}
}

func TestApplyFormKeepsCustomAssetsURL(t *testing.T) {
	cfg := testConfig()
	cfg.Directus.AssetsURL = "https://cdn.example.com/assets"
	m := New("cfg.yaml", cfg, nil, keys.DefaultKeyMap(), 80, 24)
	m.resetForm()
	m.fb.url = "https://cms.example.com"

	if got := m.applyForm().Directus.AssetsURL; got != "https://cdn.example.com/assets" {
		t.Errorf("AssetsURL = %q", got)
	}
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"reachable", nil, false},
		{"unreachable", errors.New("dial tcp: refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pinger := func(string) Pinger { return fakePinger{err: tt.err} }
			m := New("cfg.yaml", testConfig(), pinger, keys.DefaultKeyMap(), 80, 24)
			m.mode = ModeTesting

			m, _ = m.Update(m.ping("http://localhost:8055")())
			if m.mode != ModeSummary {
				t.Errorf("mode = %v, want summary", m.mode)
			}
			if m.statusErr != tt.wantErr {
				t.Errorf("statusErr = %v, want %v (%q)", m.statusErr, tt.wantErr, m.statusMsg)
			}
		})
	}
}

func TestSaveWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := New(path, testConfig(), nil, keys.DefaultKeyMap(), 80, 24)

	cfg := testConfig()
	cfg.Notifications.Polling = true
	m, cmd := m.Update(m.save(cfg)())
	if cmd == nil {
		t.Fatal("expected a SavedMsg command")
	}
	saved, ok := cmd().(SavedMsg)
	if !ok || !saved.Config.Notifications.Polling {
		t.Fatalf("cmd() = %#v", cmd())
	}
	if m.statusErr {
		t.Errorf("status = %q", m.statusMsg)
	}

	loaded, err := model.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !loaded.Notifications.Polling {
		t.Error("saved polling flag not read back")
	}
}
