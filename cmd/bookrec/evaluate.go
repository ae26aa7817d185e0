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
	"os"
	"strconv"

	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/logics"
	"github.com/gorse-io/bookrec/master"
	"github.com/gorse-io/bookrec/storage/data"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the recommender on held out ratings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		testRatio, _ := cmd.Flags().GetFloat64("test-ratio")
		seed, _ := cmd.Flags().GetInt64("seed")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		ctx := cmd.Context()
		interactions, err := store.GetInteractions(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		books, err := store.GetBooks(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		train, test, err := dataset.Split(interactions, testRatio, seed)
		if err != nil {
			return errors.Trace(err)
		}
		// fit on the training part only
		m, err := master.NewMaster(cfg, data.NewMemoryDatabase(train, books))
		if err != nil {
			return errors.Trace(err)
		}
		if err = m.Initialize(ctx); err != nil {
			return err
		}
		model := m.Model()
		bar := progressbar.Default(int64(2*len(test)), "evaluate")
		progress := func() {
			_ = bar.Add(1)
		}
		hybridScore, err := logics.Evaluate(ctx, model, test, cfg.Recommend.Jobs, progress)
		if err != nil {
			return errors.Trace(err)
		}
		latentFactorScore, err := logics.Evaluate(ctx, model.LatentFactor(), test, cfg.Recommend.Jobs, progress)
		if err != nil {
			return errors.Trace(err)
		}
		_ = bar.Finish()
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Estimator", "RMSE", "MAE", "Ratings")
		for _, row := range []struct {
			name  string
			score logics.Score
		}{
			{"hybrid", hybridScore},
			{"latent factor", latentFactorScore},
		} {
			if err = table.Append([]string{
				row.name,
				formatFloat(row.score.RMSE),
				formatFloat(row.score.MAE),
				strconv.Itoa(row.score.Count),
			}); err != nil {
				return errors.Trace(err)
			}
		}
		return table.Render()
	},
}

func init() {
	evaluateCommand.Flags().Float64("test-ratio", 0.2, "ratio of held out ratings")
	evaluateCommand.Flags().Int64("seed", 0, "random seed of the split")
}
