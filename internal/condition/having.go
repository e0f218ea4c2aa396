/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package condition

import "github.com/mongolyzer/mongolyzer/internal/accumulator"

// NewHavingFilter compiles expression into an accumulator.HavingFilter
// evaluated against a breakdown row's "cause", "count", and "percentage"
// fields (SPEC_FULL §4.5). A row survives when the expression evaluates
// true.
func NewHavingFilter(expression string) (accumulator.HavingFilter, error) {
	c, err := NewExprCondition(expression)
	if err != nil {
		return nil, err
	}
	return func(row accumulator.BreakdownEntry) bool {
		return c.Evaluate(map[string]interface{}{
			"cause":      row.Cause,
			"count":      row.Count,
			"percentage": row.Percentage,
		})
	}, nil
}
