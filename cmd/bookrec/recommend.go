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
	"fmt"
	"os"
	"strconv"

	"github.com/gorse-io/bookrec/logics"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend <reader>",
	Short: "Recommend books to a reader.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("number")
		m, err := openMaster(cmd)
		if err != nil {
			return err
		}
		defer m.Close()
		ctx := cmd.Context()
		userId := args[0]
		if exist, err := m.UserExists(ctx, userId); err != nil {
			return errors.Trace(err)
		} else if !exist {
			return errors.NotFoundf("reader %s", userId)
		}
		if err = m.Initialize(ctx); err != nil {
			return err
		}
		predictions, err := m.Recommend(ctx, userId, n)
		if err != nil {
			return err
		}
		return renderPredictions(predictions)
	},
}

func renderPredictions(predictions []logics.Prediction) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Book", "Score")
	for i, prediction := range predictions {
		if err := table.Append([]string{
			strconv.Itoa(i + 1),
			prediction.ItemId,
			fmt.Sprintf("%.4f", prediction.Score),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return table.Render()
}

func init() {
	recommendCommand.Flags().IntP("number", "n", -1, "number of recommendations (default recommend.default_n)")
}
