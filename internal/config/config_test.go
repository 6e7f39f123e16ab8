package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 120*time.Second, cfg.Pipeline.JobTimeout)
	assert.InDelta(t, 0.3, cfg.Pipeline.ScannedMaxRatio, 1e-9)
	assert.InDelta(t, 0.8, cfg.Pipeline.VectorMinRatio, 1e-9)
	assert.Equal(t, []string{"floor_plan"}, cfg.Pipeline.AdmitTypes)
	assert.Equal(t, 4, cfg.Pipeline.MaxScannedVisionPages)
	assert.Equal(t, 6, cfg.Pipeline.MaxMixedVisionPages)
	assert.Equal(t, "pdftoppm", cfg.Render.Binary)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "pipeline:\n  job_timeout: 30s\n  admit_types: [floor_plan, schedule]\n  min_sheet_confidence: 75\ninference:\n  vision_model: my-vlm\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Pipeline.JobTimeout)
	assert.Equal(t, []string{"floor_plan", "schedule"}, cfg.Pipeline.AdmitTypes)
	assert.Equal(t, 75, cfg.Pipeline.MinSheetConfidence)
	assert.Equal(t, "my-vlm", cfg.Inference.VisionModel)
}

func TestDatabaseDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "./data/x.db"}
	assert.Equal(t, "./data/x.db", sqlite.DSN())

	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "jobs", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=jobs sslmode=disable", pg.DSN())
}
