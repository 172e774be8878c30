// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strings"
)

// cutset trimmed from raw lines and from the trailing parameter.
const whitespaceCutset = " \n\r\t"

// Message is a single IRC protocol message, decomposed into its
// prefix, command, middle parameters and trailing parameter. A line
// whose parameters contain forbidden characters parses to an invalid
// Message carrying an error description; the dispatcher drops it
// after reporting.
type Message struct {
	Prefix   string
	Command  string
	Params   []string
	Trailing string
	Invalid  bool
	Error    string
}

func validParam(param string) bool {
	return !strings.ContainsAny(param, "\n\r\t:")
}

// ParseLine parses one complete IRC line (already split out of the
// byte stream; the terminating newline may still be present).
//
// Message tags (a leading @-token) are consumed and discarded. A
// leading :-token after any tags is the message source; it is kept
// but carries no authority. Middle parameters run up to the first
// token that begins with ':'; everything after that colon is the
// trailing parameter, trimmed of surrounding whitespace. An empty
// line parses to a Message with an empty Command.
func ParseLine(line string) (msg Message) {
	trimmed := strings.Trim(line, whitespaceCutset)
	if len(trimmed) == 0 {
		return
	}

	rest := trimmed
	if rest[0] == '@' {
		idx := strings.IndexAny(rest, " \t")
		if idx == -1 {
			// the whole line was a tags block
			return
		}
		rest = strings.TrimLeft(rest[idx:], " \t")
		if len(rest) == 0 {
			return
		}
	}

	if rest[0] == ':' {
		idx := strings.IndexAny(rest, " \t")
		if idx == -1 {
			return
		}
		msg.Prefix = rest[1:idx]
		rest = strings.TrimLeft(rest[idx:], " \t")
		if len(rest) == 0 {
			return
		}
	}

	idx := strings.IndexAny(rest, " \t")
	if idx == -1 {
		msg.Command = strings.ToUpper(rest)
		return
	}
	msg.Command = strings.ToUpper(rest[:idx])
	rest = rest[idx:]

	for {
		rest = strings.TrimLeft(rest, " \t")
		if len(rest) == 0 {
			return
		}
		if rest[0] == ':' {
			msg.Trailing = strings.Trim(rest[1:], whitespaceCutset)
			return
		}
		idx = strings.IndexAny(rest, " \t")
		var token string
		if idx == -1 {
			token, rest = rest, ""
		} else {
			token, rest = rest[:idx], rest[idx:]
		}
		if !validParam(token) {
			msg.Invalid = true
			msg.Error = "Invalid character in parameter: " + token
			return
		}
		msg.Params = append(msg.Params, token)
	}
}
