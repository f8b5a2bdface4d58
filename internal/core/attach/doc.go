// Package attach decodes the engine's raw attach and logs streams.
//
// Both start as plain HTTP/1.0 exchanges on a raw socket and then turn
// into a byte stream:
//
//   - header.go: locating and parsing the response header block
//   - frame.go: the 8-byte multiplexed frame header
//   - demux.go: the attach state machine (headers, mode detection, tty
//     passthrough or framed payloads)
//   - logs.go: the logs reader (base64 lines, binary frames or plain text)
//   - session.go: an interactive console bound to one channel at a time
//
// Decoders never fail on short input. They report how much they consumed
// and expect the rest again, followed by more data.
package attach
