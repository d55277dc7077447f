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

package correlate

// exitPool tracks which exits of one plate are still free. next(i) returns the first free
// index >= i, or len when none is left, with path compression over taken slots.
type exitPool struct {
	parent []int
}

func newExitPool(n int) *exitPool {
	parent := make([]int, n+1)
	for i := range parent {
		parent[i] = i
	}
	return &exitPool{parent: parent}
}

func (p *exitPool) next(i int) int {
	root := i
	for p.parent[root] != root {
		root = p.parent[root]
	}
	for p.parent[i] != root {
		p.parent[i], i = root, p.parent[i]
	}
	return root
}

func (p *exitPool) take(i int) {
	p.parent[i] = i + 1
}
