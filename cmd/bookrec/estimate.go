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
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var estimateCommand = &cobra.Command{
	Use:   "estimate <reader> <book>",
	Short: "Estimate the rating of a reader for a book.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMaster(cmd)
		if err != nil {
			return err
		}
		defer m.Close()
		ctx := cmd.Context()
		if err = m.Initialize(ctx); err != nil {
			return err
		}
		est, err := m.Explain(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return renderEstimate(est, m.Model().Weights())
	},
}

func renderEstimate(est logics.Estimate, weights logics.Weights) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Signal", "Weight", "Estimate", "Fallback")
	rows := [][]string{
		{"collaborative filtering", formatFloat(weights.Alpha), formatFloat(est.CF), strconv.FormatBool(est.CFFallback || est.ColdStart)},
		{"content", formatFloat(weights.Beta), formatFloat(est.Content), strconv.FormatBool(est.ContentFallback || est.ColdStart)},
		{"popularity", formatFloat(weights.Gamma), formatFloat(est.Popularity), strconv.FormatBool(est.ColdStart)},
		{"hybrid", "", formatFloat(est.Score), strconv.FormatBool(est.ColdStart)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatFloat(x float64) string {
	return fmt.Sprintf("%.4f", x)
}
