// Package logx is fenixbot's structured logger: a thin layer over zerolog
// with typed field helpers, component loggers derived via With, and a
// Service whose level and sinks can be swapped while the bot runs.
//
// Console output is human readable with a short file:line caller. The
// optional file sink receives one JSON object per line.
package logx
