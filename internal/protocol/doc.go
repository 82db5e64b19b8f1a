// Package protocol implements the text protocol spoken between clients and
// the location server.
//
// Requests are newline terminated commands, several of which may arrive in a
// single message:
//
//	add X Y
//	rm X Y
//	query X Y
//	list
//	kill
//
// Each valid command gets exactly one reply line.  A malformed command gets no
// reply at all, the server hangs up instead.
package protocol
