// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import "fmt"

const (
	// SemVer is the semantic version of ircserv.
	SemVer = "1.0.0"
)

var (
	// Commit is the current git commit.
	Commit = ""

	// Ver is the full version of ircserv, used in responses to clients.
	Ver = fmt.Sprintf("ircserv-%s", SemVer)
)

const (
	// readBufferSize is how much we ask the kernel for in one recv.
	readBufferSize = 1024

	// sendQueueLineLen approximates one full-size wire line when sizing
	// the outbound queue from the configured sendq byte limit.
	sendQueueLineLen = 512
)
