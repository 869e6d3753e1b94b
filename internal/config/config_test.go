package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Tool.Binary != "snapper" {
		t.Errorf("default binary = %q, want %q", cfg.Tool.Binary, "snapper")
	}
	if !cfg.Tool.Sudo {
		t.Error("default sudo = false, want true")
	}
	if cfg.UI.DefaultSort != "number" {
		t.Errorf("default sort = %q, want %q", cfg.UI.DefaultSort, "number")
	}
	if !cfg.UI.SortAscending {
		t.Error("default sort direction = descending, want ascending")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
tool:
  binary: snapper2
  config: home
  sudo: false
ui:
  default_sort: date
  sort_ascending: false
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Tool.Binary != "snapper2" {
		t.Errorf("binary = %q, want %q", cfg.Tool.Binary, "snapper2")
	}
	if cfg.Tool.Config != "home" {
		t.Errorf("config = %q, want %q", cfg.Tool.Config, "home")
	}
	if cfg.Tool.Sudo {
		t.Error("sudo = true, want false")
	}
	if cfg.UI.DefaultSort != "date" {
		t.Errorf("default_sort = %q, want %q", cfg.UI.DefaultSort, "date")
	}
	if cfg.UI.SortAscending {
		t.Error("sort_ascending = true, want false")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
	want := DefaultConfig()
	if *cfg != want {
		t.Errorf("Load(missing) = %+v, want defaults %+v", *cfg, want)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load(invalid YAML) should return error")
	}
}

func TestLoad_UnknownField(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
tool:
  binry: snapper
`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load(unknown field) should return error")
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
ui:
  default_sort: space
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UI.DefaultSort != "space" {
		t.Errorf("default_sort = %q, want %q", cfg.UI.DefaultSort, "space")
	}
	// Unset fields should retain defaults.
	if cfg.Tool.Binary != "snapper" {
		t.Errorf("binary = %q, want default %q", cfg.Tool.Binary, "snapper")
	}
	if !cfg.Tool.Sudo {
		t.Error("sudo lost its default")
	}
}

func TestLoadLayered_Priority(t *testing.T) {
	// Setup: user config sets the binary, project config overrides sort.
	userDir := t.TempDir()
	projectDir := t.TempDir()

	userCfg := filepath.Join(userDir, "config.yaml")
	if err := os.WriteFile(userCfg, []byte(`
tool:
  binary: snapper2
ui:
  default_sort: date
`), 0o644); err != nil {
		t.Fatal(err)
	}

	projectCfg := filepath.Join(projectDir, "config.yaml")
	if err := os.WriteFile(projectCfg, []byte(`
ui:
  default_sort: user
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLayered(userCfg, projectCfg)
	if err != nil {
		t.Fatalf("LoadLayered() error = %v", err)
	}
	// Later layer wins where set.
	if cfg.UI.DefaultSort != "user" {
		t.Errorf("default_sort = %q, want %q", cfg.UI.DefaultSort, "user")
	}
	// Earlier layer survives where the later one is silent.
	if cfg.Tool.Binary != "snapper2" {
		t.Errorf("binary = %q, want %q", cfg.Tool.Binary, "snapper2")
	}
	// Defaults survive where no layer speaks.
	if !cfg.Tool.Sudo {
		t.Error("sudo lost its default")
	}
}

func TestLoadLayered_FalseOverridesTrue(t *testing.T) {
	// A later layer setting sudo: false must override the default true;
	// pointer-typed raw fields distinguish unset from explicit false.
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
tool:
  sudo: false
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLayered(cfgPath)
	if err != nil {
		t.Fatalf("LoadLayered() error = %v", err)
	}
	if cfg.Tool.Sudo {
		t.Error("explicit sudo: false did not override the default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "empty binary", mutate: func(c *Config) { c.Tool.Binary = "" }, wantErr: true},
		{name: "bad sort key", mutate: func(c *Config) { c.UI.DefaultSort = "size" }, wantErr: true},
		{name: "empty sort key allowed", mutate: func(c *Config) { c.UI.DefaultSort = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SNAPDASH_BINARY", "snapper-test")
	t.Setenv("SNAPDASH_CONFIG", "root")
	t.Setenv("SNAPDASH_SUDO", "false")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Tool.Binary != "snapper-test" {
		t.Errorf("binary = %q, want %q", cfg.Tool.Binary, "snapper-test")
	}
	if cfg.Tool.Config != "root" {
		t.Errorf("config = %q, want %q", cfg.Tool.Config, "root")
	}
	if cfg.Tool.Sudo {
		t.Error("sudo = true, want false from env")
	}
}

func TestApplyEnv_InvalidBool(t *testing.T) {
	t.Setenv("SNAPDASH_SUDO", "maybe")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err == nil {
		t.Fatal("ApplyEnv() should reject a non-boolean SNAPDASH_SUDO")
	}
}
