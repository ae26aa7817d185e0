// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/bookrec/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	CandidateAll       = "all"
	CandidateLimit     = "limit"
	CandidateNeighbors = "neighbors"
)

// storePrefixes are the URL schemes accepted by data_store.
var storePrefixes = []string{
	"mysql://",
	"postgres://",
	"postgresql://",
	"sqlite://",
	"mongodb://",
	"mongodb+srv://",
	"redis://",
	"rediss://",
}

// Config is the configuration for bookrec.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Hybrid    HybridConfig    `mapstructure:"hybrid"`
	SVD       SVDConfig       `mapstructure:"svd"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

// DatabaseConfig is the configuration for the rating store.
type DatabaseConfig struct {
	DataStore   string      `mapstructure:"data_store" validate:"required,data_store"`
	TablePrefix string      `mapstructure:"table_prefix"`
	MySQL       MySQLConfig `mapstructure:"mysql"`
}

type MySQLConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// HybridConfig holds the blending weights of the three signals.
type HybridConfig struct {
	Alpha float64 `mapstructure:"alpha" validate:"gte=0"`
	Beta  float64 `mapstructure:"beta" validate:"gte=0"`
	Gamma float64 `mapstructure:"gamma" validate:"gte=0"`
}

// SVDConfig holds hyper-parameters of the latent factor model.
type SVDConfig struct {
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gte=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float32 `mapstructure:"init_mean"`
	InitStd     float32 `mapstructure:"init_std" validate:"gte=0"`
	RandomState int64   `mapstructure:"random_state"`
}

func (c *SVDConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:    c.NFactors,
		model.NEpochs:     c.NEpochs,
		model.Lr:          c.Lr,
		model.Reg:         c.Reg,
		model.InitMean:    c.InitMean,
		model.InitStdDev:  c.InitStd,
		model.RandomState: c.RandomState,
	}
}

// RecommendConfig is the configuration for ranking.
type RecommendConfig struct {
	DefaultN          int           `mapstructure:"default_n" validate:"gt=0"`
	Jobs              int           `mapstructure:"jobs" validate:"gt=0"`
	CandidateStrategy string        `mapstructure:"candidate_strategy" validate:"oneof=all limit neighbors"`
	CandidateLimit    int           `mapstructure:"candidate_limit" validate:"gt=0"`
	MinCommonItems    int           `mapstructure:"min_common_items" validate:"gt=0"`
	FitPeriod         time.Duration `mapstructure:"fit_period" validate:"gte=0"`
	UserCacheTTL      time.Duration `mapstructure:"user_cache_ttl" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://data.db",
		},
		Hybrid: HybridConfig{
			Alpha: 0.5,
			Beta:  0.3,
			Gamma: 0.2,
		},
		SVD: SVDConfig{
			NFactors: 50,
			NEpochs:  15,
			Lr:       0.005,
			Reg:      0.02,
			InitStd:  0.1,
		},
		Recommend: RecommendConfig{
			DefaultN:          10,
			Jobs:              1,
			CandidateStrategy: CandidateAll,
			CandidateLimit:    500,
			MinCommonItems:    4,
			UserCacheTTL:      time.Minute,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	v.SetDefault("database.mysql.max_open_conns", defaultConfig.Database.MySQL.MaxOpenConns)
	v.SetDefault("database.mysql.max_idle_conns", defaultConfig.Database.MySQL.MaxIdleConns)
	v.SetDefault("database.mysql.conn_max_lifetime", defaultConfig.Database.MySQL.ConnMaxLifetime)
	// [hybrid]
	v.SetDefault("hybrid.alpha", defaultConfig.Hybrid.Alpha)
	v.SetDefault("hybrid.beta", defaultConfig.Hybrid.Beta)
	v.SetDefault("hybrid.gamma", defaultConfig.Hybrid.Gamma)
	// [svd]
	v.SetDefault("svd.n_factors", defaultConfig.SVD.NFactors)
	v.SetDefault("svd.n_epochs", defaultConfig.SVD.NEpochs)
	v.SetDefault("svd.lr", defaultConfig.SVD.Lr)
	v.SetDefault("svd.reg", defaultConfig.SVD.Reg)
	v.SetDefault("svd.init_mean", defaultConfig.SVD.InitMean)
	v.SetDefault("svd.init_std", defaultConfig.SVD.InitStd)
	v.SetDefault("svd.random_state", defaultConfig.SVD.RandomState)
	// [recommend]
	v.SetDefault("recommend.default_n", defaultConfig.Recommend.DefaultN)
	v.SetDefault("recommend.jobs", defaultConfig.Recommend.Jobs)
	v.SetDefault("recommend.candidate_strategy", defaultConfig.Recommend.CandidateStrategy)
	v.SetDefault("recommend.candidate_limit", defaultConfig.Recommend.CandidateLimit)
	v.SetDefault("recommend.min_common_items", defaultConfig.Recommend.MinCommonItems)
	v.SetDefault("recommend.fit_period", defaultConfig.Recommend.FitPeriod)
	v.SetDefault("recommend.user_cache_ttl", defaultConfig.Recommend.UserCacheTTL)
}

type configBinding struct {
	key string
	env string
}

func bindEnv(v *viper.Viper) error {
	bindings := []configBinding{
		{"database.data_store", "BOOKREC_DATA_STORE"},
		{"database.table_prefix", "BOOKREC_TABLE_PREFIX"},
		{"hybrid.alpha", "BOOKREC_HYBRID_ALPHA"},
		{"hybrid.beta", "BOOKREC_HYBRID_BETA"},
		{"hybrid.gamma", "BOOKREC_HYBRID_GAMMA"},
		{"recommend.jobs", "BOOKREC_RECOMMEND_JOBS"},
		{"recommend.candidate_strategy", "BOOKREC_CANDIDATE_STRATEGY"},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// LoadConfig loads configuration from toml file. Environment variables override
// values in the file, and missing values take defaults. An empty path loads
// defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	if err := bindEnv(v); err != nil {
		return nil, errors.Trace(err)
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks every field against its constraints and reports the first
// violation in plain English.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
		return lo.SomeBy(storePrefixes, func(prefix string) bool {
			return strings.HasPrefix(fl.Field().String(), prefix)
		})
	}); err != nil {
		return errors.Trace(err)
	}
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return errors.Trace(err)
	}
	if err := validate.RegisterTranslation("data_store", trans, func(ut ut.Translator) error {
		return ut.Add("data_store", "{0} must start with one of "+strings.Join(storePrefixes, ", "), true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("data_store", fe.Field())
		return t
	}); err != nil {
		return errors.Trace(err)
	}
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return errors.NotValidf("%s", validationErrors[0].Translate(trans))
		}
		return errors.Trace(err)
	}
	return nil
}
