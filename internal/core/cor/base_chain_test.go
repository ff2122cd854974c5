// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/assert"
)

// suffixCommand appends its suffix to the string input.
type suffixCommand struct {
	cor.BaseCommand
	suffix string
	err    error
	runs   *int
}

func newSuffix(name string, suffix string, runs *int) *suffixCommand {
	return &suffixCommand{BaseCommand: *cor.NewBaseCommand(name), suffix: suffix, runs: runs}
}

func (c *suffixCommand) Execute(context cor.Context) {
	*c.runs++
	if c.err != nil {
		c.Fail(context, c.err)
		return
	}
	c.Succeed(context)
	context.Add(c.GetOutputParam(), context.Get(c.GetInputParam()).(string)+c.suffix)
}

func TestChainPipesOutputToInput(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("pipe")
	chain.AddCommand(newSuffix("a", "-a", &runs))
	chain.AddCommand(newSuffix("b", "-b", &runs))

	chCtx := cor.NewBaseContextWithInput(context.Background(), "in")
	chain.Execute(chCtx)

	require.NoError(t, chCtx.Err())
	assert.Equal(t, 2, runs)
	assert.Equal(t, "in-a-b", chCtx.Get(cor.CtxIn))
}

func TestChainStopsOnFirstError(t *testing.T) {
	runs := 0
	failing := newSuffix("a", "-a", &runs)
	failing.err = errors.New("boom")
	chain := cor.NewBaseChain("stop")
	chain.AddCommand(failing)
	chain.AddCommand(newSuffix("b", "-b", &runs))

	chCtx := cor.NewBaseContextWithInput(context.Background(), "in")
	chain.Execute(chCtx)

	require.Error(t, chCtx.Err())
	assert.Equal(t, 1, runs)
	assert.True(t, strings.Contains(chCtx.Err().Error(), "a: boom"))
}

func TestChainContinueOnFailure(t *testing.T) {
	runs := 0
	failing := newSuffix("a", "-a", &runs)
	failing.err = errors.New("boom")
	chain := cor.NewBaseChain("continue")
	chain.ContinueOnFailure(true)
	chain.AddCommand(failing)
	chain.AddCommand(newSuffix("b", "-b", &runs))

	chCtx := cor.NewBaseContextWithInput(context.Background(), "in")
	chain.Execute(chCtx)

	// "b" has no input after "a" failed, so it is reported as not executable.
	assert.Equal(t, 1, runs)
	assert.Equal(t, 2, len(chCtx.GetErrors()))
}

func TestChainMissingInput(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("empty")
	chain.AddCommand(newSuffix("a", "-a", &runs))

	chCtx := cor.NewBaseContextWithInput(context.Background(), nil)
	chain.Execute(chCtx)

	assert.Equal(t, 0, runs)
	require.Error(t, chCtx.Err())
}

func TestChainRestoresParentContext(t *testing.T) {
	runs := 0
	parent := context.WithValue(context.Background(), struct{}{}, "parent")
	chain := cor.NewBaseChain("restore")
	chain.AddCommand(newSuffix("a", "-a", &runs))

	chCtx := cor.NewBaseContextWithInput(parent, "in")
	chain.Execute(chCtx)

	assert.Equal(t, parent, chCtx.GetContext())
}
