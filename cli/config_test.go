package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

// writeConfig puts a config file in the working directory of fs.
func writeConfig(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(wd, name), []byte(content), 0o644))
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(afero.NewMemMapFs(), testFlags(t), nil)
	require.NoError(t, err)
	assert.Equal(t, &config{
		Output:            "horizontal",
		HorizontalPadding: 40,
		CSVSeparator:      ',',
		DateFormat:        "2006-01-02 15:04:05",
	}, cfg)
	assert.Equal(t, "query", cfg.missing())
}

func TestConfigPrecedence(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config.properties", "uri=mongodb://file/db\nquery=select a from t\noutput=vertical\nhorizontalPadding=10\n")
	require.NoError(t, afero.WriteFile(fs, ".env", []byte("SQLMONGO_OUTPUT=out.csv\nSQLMONGO_CSVSEPARATOR=;\nOTHER=x\n"), 0o644))
	t.Setenv("SQLMONGO_CSVSEPARATOR", "|")

	cfg, err := loadConfig(fs, testFlags(t, "--horizontal-padding", "20"), []string{"query=select b from t"})
	require.NoError(t, err)
	assert.Equal(t, "mongodb://file/db", cfg.URI)
	assert.Equal(t, "select b from t", cfg.Query)
	assert.Equal(t, "out.csv", cfg.Output)
	assert.Equal(t, '|', cfg.CSVSeparator)
	assert.Equal(t, 20, cfg.HorizontalPadding)
	assert.Equal(t, "", cfg.missing())
}

func TestConfigArgsOverrideFlags(t *testing.T) {
	cfg, err := loadConfig(afero.NewMemMapFs(), testFlags(t, "-q", "select a from t", "--debug"), []string{"query=select b from t", "explain=true"})
	require.NoError(t, err)
	assert.Equal(t, "select b from t", cfg.Query)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.Explain)
	assert.Equal(t, "", cfg.missing())
}

func TestConfigBadOption(t *testing.T) {
	_, err := loadConfig(afero.NewMemMapFs(), testFlags(t), []string{"query"})
	assert.EqualError(t, err, "unexpected option: query (format: key=value)")

	_, err = loadConfig(afero.NewMemMapFs(), testFlags(t), []string{"csvSeparator=ab"})
	assert.EqualError(t, err, `csvSeparator must be a single character, got "ab"`)
}

func TestConfigMissing(t *testing.T) {
	assert.Equal(t, "uri", (&config{Query: "select a from t"}).missing())
	assert.Equal(t, "", (&config{Query: "select a from t", Data: "dir"}).missing())
}

func TestPropertiesCodec(t *testing.T) {
	v := map[string]any{}
	err := propertiesCodec{}.Decode([]byte("# settings\nquery = select a from t where b = '${x}'\ncsvSeparator=;\n"), v)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "select a from t where b = '${x}'", "csvSeparator": ";"}, v)

	b, err := propertiesCodec{}.Encode(map[string]any{"output": "vertical", "horizontalPadding": 10})
	require.NoError(t, err)
	assert.Equal(t, "horizontalPadding = 10\noutput = vertical\n", string(b))
}
