package pgsql

import (
	"fmt"
	"reflect"

	"github.com/gookit/config/v2"
	"github.com/gookit/config/v2/toml"
	"github.com/mitchellh/mapstructure"
)

// ConfigSection is the optional top-level section holding driver options
// in a config file.
const ConfigSection = "pgsql"

// LoadOptions reads option files (JSON by default, TOML by extension) and
// decodes them over DefaultOptions. ${VAR} references are expanded from
// the environment. Keys may live at the top level or under [pgsql].
func LoadOptions(files ...string) (Options, error) {
	return LoadOptionsInto(DefaultOptions(), files...)
}

// LoadOptionsInto is LoadOptions decoding over base; fields the files do
// not name keep their base values.
func LoadOptionsInto(base Options, files ...string) (Options, error) {
	raw, err := loadRaw(files)
	if err != nil {
		return Options{}, err
	}
	return DecodeOptionsInto(base, raw)
}

func loadRaw(files []string) (map[string]interface{}, error) {
	c := config.New(ConfigSection)
	c.WithOptions(config.ParseEnv)
	c.AddDriver(toml.Driver)
	if err := c.LoadFiles(files...); err != nil {
		return nil, fmt.Errorf("pgsql: load options: %w", err)
	}
	data, prefix := c.Data(), ""
	if section, ok := data[ConfigSection].(map[string]interface{}); ok {
		data, prefix = section, ConfigSection+"."
	}
	raw := make(map[string]interface{}, len(data))
	for k, v := range data {
		// String applies ParseEnv
		if _, ok := v.(string); ok {
			v = c.String(prefix + k)
		}
		raw[k] = v
	}
	return raw, nil
}

// DecodeOptions decodes raw key/values over DefaultOptions. Fetch modes,
// portability flags and field case accept their names as well as numbers.
func DecodeOptions(raw map[string]interface{}) (Options, error) {
	return DecodeOptionsInto(DefaultOptions(), raw)
}

// DecodeOptionsInto decodes raw key/values over base.
func DecodeOptionsInto(base Options, raw map[string]interface{}) (Options, error) {
	opts := base
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       optionsDecodeHook,
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return Options{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Options{}, fmt.Errorf("pgsql: decode options: %w", err)
	}
	return opts, nil
}

var (
	fetchModeType   = reflect.TypeOf(FetchDefault)
	portabilityType = reflect.TypeOf(PortabilityNone)
	caseType        = reflect.TypeOf(CaseLower)
)

func optionsDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	switch to {
	case fetchModeType:
		return ParseFetchMode(s)
	case portabilityType:
		return ParsePortability(s)
	case caseType:
		return ParseCase(s)
	}
	return data, nil
}
