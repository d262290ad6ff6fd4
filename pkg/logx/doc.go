// Package logx is the director's structured logger: a thin zerolog wrapper
// whose level and sinks follow config reloads.
//
// Console output is human readable (short timestamp, file:line caller) and
// drops its own timestamp when running under journald. The optional file
// sink writes JSON lines.
package logx
