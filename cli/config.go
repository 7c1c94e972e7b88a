package main

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SQLMONGO"

// config is the resolved configuration of one run.
type config struct {
	URI               string
	Data              string
	Query             string
	Output            string
	HorizontalPadding int
	CSVSeparator      rune
	DateFormat        string
	Explain           bool
	Debug             bool
}

// examples are shown when a required setting is missing.
var examples = map[string]string{
	"uri":   "mongodb://localhost:27017/mydb",
	"query": "select userEmail from coupons where couponState = 4",
}

var optionPattern = regexp.MustCompile(`^([a-zA-Z0-9]+)=(.+)$`)

// bindings maps config keys to their flags.
var bindings = map[string]string{
	"uri":               "uri",
	"data":              "data",
	"query":             "query",
	"output":            "output",
	"horizontalPadding": "horizontal-padding",
	"csvSeparator":      "csv-separator",
	"dateFormat":        "date-format",
	"explain":           "explain",
	"debug":             "debug",
}

func addFlags(flags *pflag.FlagSet) {
	flags.String("uri", "", "MongoDB connection string, including the database name")
	flags.String("data", "", "directory of JSON collections to query instead of a server")
	flags.StringP("query", "q", "", "query to run")
	flags.StringP("output", "o", "", "horizontal, vertical or the name of a CSV file")
	flags.Int("horizontal-padding", 0, "column width of horizontal output")
	flags.String("csv-separator", "", "field separator of CSV output")
	flags.String("date-format", "", "Go layout for dates")
	flags.Bool("explain", false, "print the MongoDB queries instead of running them")
	flags.Bool("debug", false, "log tokens and queries")
}

// loadConfig resolves the configuration. Sources, from weakest to
// strongest: defaults, a config file, a .env file, SQLMONGO_* environment
// variables, flags and key=value arguments.
func loadConfig(fs afero.Fs, flags *pflag.FlagSet, args []string) (*config, error) {
	v := viper.NewWithOptions(viper.WithCodecRegistry(codecs()))
	v.SetFs(fs)
	v.SetDefault("output", "horizontal")
	v.SetDefault("horizontalPadding", 40)
	v.SetDefault("csvSeparator", ",")
	v.SetDefault("dateFormat", "2006-01-02 15:04:05")
	v.SetDefault("explain", false)
	v.SetDefault("debug", false)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "sqlmongo"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	dotenv, err := readDotenv(fs, ".env")
	if err != nil {
		return nil, err
	}
	if len(dotenv) > 0 {
		if err := v.MergeConfigMap(dotenv); err != nil {
			return nil, errors.Wrap(err, "failed to apply .env")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for key, name := range bindings {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "failed to bind flag %s", name)
			}
		}
	}

	for _, arg := range args {
		m := optionPattern.FindStringSubmatch(arg)
		if m == nil {
			return nil, errors.Errorf("unexpected option: %s (format: key=value)", arg)
		}
		v.Set(m[1], m[2])
	}

	sep := []rune(v.GetString("csvSeparator"))
	if len(sep) != 1 {
		return nil, errors.Errorf("csvSeparator must be a single character, got %q", string(sep))
	}
	return &config{
		URI:               v.GetString("uri"),
		Data:              v.GetString("data"),
		Query:             v.GetString("query"),
		Output:            v.GetString("output"),
		HorizontalPadding: v.GetInt("horizontalPadding"),
		CSVSeparator:      sep[0],
		DateFormat:        v.GetString("dateFormat"),
		Explain:           v.GetBool("explain"),
		Debug:             v.GetBool("debug"),
	}, nil
}

// readDotenv returns the SQLMONGO_* entries of a .env file keyed by
// setting name. A missing file is no error.
func readDotenv(fs afero.Fs, path string) (map[string]any, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()
	env, err := godotenv.Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	r := map[string]any{}
	for k, val := range env {
		key, ok := strings.CutPrefix(k, envPrefix+"_")
		if ok {
			r[strings.ToLower(key)] = val
		}
	}
	return r, nil
}

// missing returns the first required setting that's not set.
func (c *config) missing() string {
	switch {
	case c.Query == "":
		return "query"
	case c.URI == "" && c.Data == "" && !c.Explain:
		return "uri"
	}
	return ""
}

func printMissing(w io.Writer, key string) {
	fmt.Fprintf(w, "Please provide %s through `config.properties` file or command line option e.g. \"%s=%s\"\n", key, key, examples[key])
}
