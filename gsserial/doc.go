// Package gsserial implements the gsmodule Transport over a serial line.
//
// Commands are written as "<cmd>\r\n" and the reply lines are collected
// until a final OK or ERROR line. The command echo is skipped. Unsolicited
// lines that can never be part of a reply are moved into an event buffer,
// also while a command is in flight. When a command times out, its late
// reply is drained before the next command is written.
//
// Payloads are written in the module's escape framing:
//
//	ESC 'Z' <cid> <length: 4 decimal digits> <data>   one frame per WriteData
//	ESC 'W' <data>                                     bulk transfer (certificates)
package gsserial
