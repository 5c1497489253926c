package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairblock/typereg/schemas"
)

const testConfig = `
log_level: debug
include_nested: true
sources:
  - kind: proto
    import_paths: [proto, third_party/proto]
    files: [fairyring/pep/tx.proto]
  - kind: protoset
    path: build/cosmos.binpb
    packages: [cosmos.bank.v1beta1]
  - kind: global
  - kind: reflection
    endpoint: localhost:9090
    timeout: 15s
    packages: [cosmwasm.wasm.v1]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typereg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	v, err := NewViper(writeConfig(t, testConfig))
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.False(t, cfg.Strict)
	assert.True(t, cfg.IncludeNested)
	require.Len(t, cfg.Sources, 4)
	assert.Equal(t, SourceConfig{
		Kind:        KindProto,
		ImportPaths: []string{"proto", "third_party/proto"},
		Files:       []string{"fairyring/pep/tx.proto"},
	}, cfg.Sources[0])
	assert.Equal(t, "build/cosmos.binpb", cfg.Sources[1].Path)
	assert.Equal(t, 15*time.Second, cfg.Sources[3].Timeout)

	sources := cfg.Sources()
	require.Len(t, sources, 4)
	proto, ok := sources[0].(*schemas.ProtoSource)
	require.True(t, ok)
	assert.True(t, proto.Options.IncludeNested)
	assert.Equal(t, []string{"fairyring/pep/tx.proto"}, proto.Files)
	protoset, ok := sources[1].(*schemas.ProtosetSource)
	require.True(t, ok)
	assert.Equal(t, []string{"cosmos.bank.v1beta1"}, protoset.Options.Packages)
	assert.IsType(t, &schemas.GlobalSource{}, sources[2])
	refl, ok := sources[3].(*schemas.ReflectionSource)
	require.True(t, ok)
	assert.Equal(t, "localhost:9090", refl.Endpoint)
	assert.Equal(t, 15*time.Second, refl.Timeout)
	assert.Equal(t, "reflection:localhost:9090", refl.Name())

	loader := cfg.Loader(zerolog.Nop())
	assert.Len(t, loader.Sources, 4)
	assert.False(t, loader.Strict)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TYPEREG_STRICT", "true")
	t.Setenv("TYPEREG_LOG_LEVEL", "warn")

	v, err := NewViper(writeConfig(t, testConfig))
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
	assert.Equal(t, zerolog.WarnLevel, cfg.Level())
}

func TestNewViperMissingFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	// the default file is optional
	t.Chdir(t.TempDir())
	v, err := NewViper("")
	require.NoError(t, err)
	assert.Equal(t, "info", v.GetString("log_level"))
	_, err = Load(v)
	assert.ErrorContains(t, err, "at least one source is required")
}

func TestValidate(t *testing.T) {
	testCases := map[string]struct {
		cfg Config
		err string
	}{
		"bad level": {
			cfg: Config{LogLevel: "loud", Sources: []SourceConfig{{Kind: KindGlobal}}},
			err: "log_level",
		},
		"missing kind": {
			cfg: Config{Sources: []SourceConfig{{Path: "x.binpb"}}},
			err: "sources[0]: kind is required",
		},
		"unknown kind": {
			cfg: Config{Sources: []SourceConfig{{Kind: KindGlobal}, {Kind: "http"}}},
			err: `sources[1]: unknown kind "http"`,
		},
		"proto without import paths": {
			cfg: Config{Sources: []SourceConfig{{Kind: KindProto}}},
			err: "requires import_paths",
		},
		"protoset without path": {
			cfg: Config{Sources: []SourceConfig{{Kind: KindProtoset}}},
			err: "requires path",
		},
		"reflection without endpoint": {
			cfg: Config{Sources: []SourceConfig{{Kind: KindReflection}}},
			err: "requires endpoint",
		},
		"negative timeout": {
			cfg: Config{Sources: []SourceConfig{{Kind: KindReflection, Endpoint: "localhost:9090", Timeout: -time.Second}}},
			err: "must not be negative",
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorContains(t, tc.cfg.Validate(), tc.err)
		})
	}

	ok := Config{LogLevel: "info", Sources: []SourceConfig{{Kind: KindGlobal}}}
	assert.NoError(t, ok.Validate())
}
