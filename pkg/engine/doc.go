// Package engine is the composition root that assembles the mmpa components
// from configuration and exposes them through a frontend-agnostic API.
// Frontends (HTTP, MCP, the terminal dashboard) drive an Engine, observe
// activity through its event bus, and let Run tick the render loop.
package engine
