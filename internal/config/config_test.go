package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := Config{
		DB:         filepath.Join(".contacts", "contacts.db"),
		ExportDir:  filepath.Join("data", "contacts"),
		ServerPort: 8000,
		Log:        LogConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Backup:     BackupConfig{Prefix: "contacts", Region: "us-east-1"},
	}
	if *cfg != want {
		t.Errorf("Load() = %+v, want %+v", *cfg, want)
	}
}

func TestLoad_FileEnvAndFlag(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.MkdirAll(DefaultDir, 0755); err != nil {
		t.Fatal(err)
	}
	data := "db: from-file.db\nserver:\n  port: 9000\nsearch:\n  case_sensitive: true\nexport:\n  dir: out\n"
	if err := os.WriteFile(filepath.Join(DefaultDir, "config.yaml"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CT_SERVER_PORT", "9100")
	t.Setenv("CT_IMPORT_CREATE_IF_MISSING", "true")
	t.Setenv("CT_BACKUP_BUCKET", "team-contacts")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	if err := flags.Parse([]string{"--db", "from-flag.db"}); err != nil {
		t.Fatal(err)
	}

	v := New()
	if err := BindFlag(v, KeyDB, flags.Lookup("db")); err != nil {
		t.Fatalf("BindFlag() failed: %v", err)
	}
	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DB != "from-flag.db" {
		t.Errorf("DB = %q, want flag value", cfg.DB)
	}
	if cfg.ServerPort != 9100 {
		t.Errorf("ServerPort = %d, want env value 9100", cfg.ServerPort)
	}
	if !cfg.CaseSensitive || !cfg.CreateIfMissing {
		t.Errorf("CaseSensitive/CreateIfMissing = %v/%v, want true/true", cfg.CaseSensitive, cfg.CreateIfMissing)
	}
	if cfg.ExportDir != "out" {
		t.Errorf("ExportDir = %q, want out", cfg.ExportDir)
	}
	if cfg.File == "" {
		t.Error("File should name the config file read")
	}
	if cfg.Backup.Bucket != "team-contacts" || cfg.Backup.Prefix != "contacts" {
		t.Errorf("Backup = %+v, want env bucket and default prefix", cfg.Backup)
	}
}

func TestLoad_UnsetFlagKeepsFileValue(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("db: file.db\n"), 0644); err != nil {
		t.Fatal(err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", ".contacts/contacts.db", "")

	v := New()
	if err := BindFlag(v, KeyDB, flags.Lookup("db")); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(v, path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DB != "file.db" {
		t.Errorf("DB = %q, want file.db", cfg.DB)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("server:\n  port: 70000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(New(), bad); err == nil {
		t.Error("expected error for out of range port")
	}

	if err := BindFlag(New(), KeyDB, nil); err == nil {
		t.Error("expected error for nil flag")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDir, "config.yaml")

	written, err := WriteDefault(path)
	if err != nil || !written {
		t.Fatalf("WriteDefault() = %v, %v", written, err)
	}
	written, err = WriteDefault(path)
	if err != nil || written {
		t.Errorf("second WriteDefault() = %v, %v, want false", written, err)
	}

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load() of default file failed: %v", err)
	}
	if cfg.ServerPort != 8000 || cfg.DB != ".contacts/contacts.db" {
		t.Errorf("default file resolved to %+v", cfg)
	}
}
