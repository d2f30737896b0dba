// Package atcmd renders and parses the textual AT command protocol spoken by
// Gainspan Serial2WiFi radio modules.
//
// Encoders are pure functions: each returns exactly one command line (without
// the trailing CR LF) and never fails. Every caller-supplied string passes
// through Escape, so a double quote or backslash inside an SSID, passphrase,
// hostname or certificate name can never terminate a field early.
//
// # Escaping
//
//	atcmd.WPAPassphrase(`pa"ss`)  // AT+WWPA="pa\"ss"
//
// Unescape reverses Escape, so Unescape(Escape(s)) == s for every s.
//
// # Replies and events
//
// The module answers a command with zero or more information lines followed
// by OK or ERROR. ParseConnectReply and ParseIPReply extract the payload of
// the information lines. Lines the module emits without being asked (link
// loss, peer disconnect, NCM progress) are classified by ParseEvent.
package atcmd
