package rgoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.True(t, cfg.GetBool("hir.desugar_scope_capture"))
	assert.True(t, cfg.GetBool("hir.normalize_fixed_point"))
	assert.True(t, cfg.GetBool("air.optimize_curry"))
	assert.True(t, cfg.GetBool("codegen.emit_comments"))
	assert.Equal(t, "warn", cfg.GetString("log.level"))
}

func TestConfigSetGetRoundTrip(t *testing.T) {
	cfg := NewConfig()

	cfg.SetBool("x.flag", false)
	assert.False(t, cfg.GetBool("x.flag"))

	cfg.SetInt("x.count", 42)
	assert.Equal(t, 42, cfg.GetInt("x.count"))

	cfg.SetString("x.name", "rgoc")
	assert.Equal(t, "rgoc", cfg.GetString("x.name"))
}

func TestConfigGetMissingKeyPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetBool("does.not.exist") })
}

func TestConfigGetWrongTypePanics(t *testing.T) {
	cfg := NewConfig()
	cfg.SetBool("x.flag", true)
	assert.Panics(t, func() { cfg.GetInt("x.flag") })
}
