// Package model defines the provider-agnostic abstractions for driving
// streaming language model completions inside soulchat.
//
// Core goals:
//   - Unify streaming generation with tool calling behind a single interface
//   - Normalize message content (text, tool use, tool result parts)
//   - Keep request/response shapes minimal and transport independent
//   - Provide per-model pricing with a default fallback tier
//   - Facilitate deterministic testing (ScriptedModel)
//
// Providers (Anthropic, OpenAI) implement the Model interface in sub-packages
// so the agent loop remains decoupled from vendor SDKs.
package model
