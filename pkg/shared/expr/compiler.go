/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package expr

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

// Program is a compiled boolean expression.
type Program struct {
	source  string
	program *vm.Program
}

// Compile compiles a boolean expression. vars is a sample environment; names that do not
// appear in it, once expanded, are rejected at compile time.
func Compile(expression string, vars map[string]interface{}) (*Program, error) {
	program, err := expr.Compile(expression, expr.Env(getFuncMap(vars)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("unable to compile expression '%s': %w", expression, err)
	}
	return &Program{source: expression, program: program}, nil
}

func (p *Program) String() string {
	return p.source
}

// Match runs the program against vars.
func (p *Program) Match(vars map[string]interface{}) (bool, error) {
	result, err := expr.Run(p.program, getFuncMap(vars))
	if err != nil {
		return false, fmt.Errorf("unable to execute expression '%s': %w", p.source, err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression '%s' returned %T, not bool", p.source, result)
	}
	return matched, nil
}
