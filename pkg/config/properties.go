// Copyright © 2025 Vevoly. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/openimsdk/tools/errs"
	"github.com/spf13/viper"
)

// Properties is the raw, file-level configuration of one named cache before
// resolution. Every field is optional; unset fields fall back to the defaults
// block and then to the built-in constants.
type Properties struct {
	Namespace      string `mapstructure:"namespace"`
	StorageShape   string `mapstructure:"storageShape"`
	StoragePolicy  string `mapstructure:"storagePolicy"`
	RedisTTL       string `mapstructure:"redisTTL"`
	LocalTTL       string `mapstructure:"localTTL"`
	EmptyTTL       string `mapstructure:"emptyTTL"`
	LocalMaxSize   int    `mapstructure:"localMaxSize"`
	EmptyValueMark string `mapstructure:"emptyValueMark"`
	KeyField       string `mapstructure:"keyField"`
	BusinessKey    string `mapstructure:"businessKey"`
}

// RootProperties mirrors the multicache YAML block: a shared defaults
// section and one Properties entry per named cache.
type RootProperties struct {
	Defaults Properties            `mapstructure:"defaults"`
	Configs  map[string]Properties `mapstructure:"configs"`
}

// Load reads a YAML configuration file into cfg, with environment variables
// prefixed by envPrefix overriding file values (dots become underscores).
func Load(path string, envPrefix string, cfg any) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		return errs.WrapMsg(err, "failed to read config file", "path", path, "envPrefix", envPrefix)
	}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
	}); err != nil {
		return errs.WrapMsg(err, "failed to unmarshal config", "path", path)
	}
	return nil
}
