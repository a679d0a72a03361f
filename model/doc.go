// Package model defines the provider-neutral completion boundary used by the
// agentmem runtime. The runtime depends only on the Model interface; concrete
// adapters for hosted providers live in the anthropic and openai subpackages,
// and MockModel provides deterministic completions for tests.
package model
