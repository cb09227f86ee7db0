// Package tools exposes engine operations as named, schema-described tools.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/mmpa/pkg/tools/toolbox]: the Tool type and ToolBox registry. Stores and the engine publish their operations through it.
//   - [github.com/germanamz/mmpa/pkg/tools/mcpserver]: serves a ToolBox over the MCP protocol using the official MCP Go SDK.
//
// The toolbox sub-package is the foundation layer and has no dependencies
// beyond the standard library; mcpserver is a thin wrapper around the SDK.
package tools
