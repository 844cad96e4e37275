// Package aios provides top-level documentation for the bluelabel-aios
// module, an orchestration core for LLM-backed agents. The module is
// organized as subpackages (e.g. `llm`, `agent`, `agent/runtime`, `memory`,
// `observability`, `config`).
//
// Importers typically depend on the subpackages directly, for example:
//
//	import (
//	  "github.com/amuslera/bluelabel-aios/llm"
//	  "github.com/amuslera/bluelabel-aios/agent"
//	  "github.com/amuslera/bluelabel-aios/agent/runtime"
//	)
//
// The llm package routes chat, completion, and embedding calls across
// interchangeable provider adapters; the runtime package registers agents
// and executes them under a bounded deadline. cmd/aiosd is the composition
// root that wires both from a config file.
package aios
