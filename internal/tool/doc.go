// Package tool defines the capability interface invocable via tools/call
// and the registry that enumerates and resolves registered tools.
package tool
