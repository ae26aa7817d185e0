// Copyright 2021 gorse Project Authors
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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gorse-io/bookrec/cmd/version"
	"github.com/gorse-io/bookrec/common/log"
	"github.com/gorse-io/bookrec/config"
	"github.com/gorse-io/bookrec/master"
	"github.com/gorse-io/bookrec/storage"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "bookrec",
	Short: "Hybrid book recommender.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		otel.SetErrorHandler(log.GetErrorHandler())
	},
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Fit the recommender and refit it periodically.",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMaster(cmd)
		if err != nil {
			return err
		}
		defer m.Close()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if err = m.Initialize(ctx); err != nil {
			return err
		}
		m.Serve(ctx)
		log.Logger().Info("stop bookrec successfully")
		return nil
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show bookrec version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

// openMaster loads the configuration and connects the rating store.
func openMaster(cmd *cobra.Command) (*master.Master, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	m, err := master.NewMaster(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, errors.Trace(err)
	}
	return m, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load config")
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (data.Database, error) {
	store, err := data.Open(cfg.Database.DataStore, cfg.Database.TablePrefix,
		storage.WithMaxOpenConns(cfg.Database.MySQL.MaxOpenConns),
		storage.WithMaxIdleConns(cfg.Database.MySQL.MaxIdleConns),
		storage.WithConnMaxLifetime(cfg.Database.MySQL.ConnMaxLifetime))
	if err != nil {
		log.Logger().Error("failed to connect data database", zap.Error(err),
			zap.String("database", log.RedactDBURL(cfg.Database.DataStore)))
		return nil, errors.Trace(err)
	}
	return data.NewProxyDatabase(store), nil
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(serveCommand, recommendCommand, estimateCommand, evaluateCommand, versionCommand)
}

func main() {
	if err := rootCommand.ExecuteContext(context.Background()); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
