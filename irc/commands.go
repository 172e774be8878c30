// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"fmt"
)

// Command represents a command accepted from a client.
type Command struct {
	handler      func(server *Server, client *Client, msg Message)
	usablePreReg bool
	minParams    int
}

// Run runs this command with the given client/message.
func (cmd *Command) Run(server *Server, client *Client, msg Message) {
	if !client.registered && !cmd.usablePreReg {
		client.enqueueReply(errNotRegistered(client.Nick()))
		return
	}
	if len(msg.Params) < cmd.minParams {
		client.enqueueReply(errNeedMoreParams(client.Nick(), msg.Command))
		return
	}

	cmd.handler(server, client, msg)

	// after each command, see if we can send registration to the client
	if !client.registered && !client.destroyed {
		server.tryRegister(client)
	}
}

// Commands holds all commands executable by a client connected to us.
var Commands map[string]Command

func init() {
	Commands = map[string]Command{
		"CAP": {
			handler:      capHandler,
			usablePreReg: true,
		},
		"INVITE": {
			handler:   inviteHandler,
			minParams: 2,
		},
		"JOIN": {
			handler:   joinHandler,
			minParams: 1,
		},
		"KICK": {
			handler:   kickHandler,
			minParams: 2,
		},
		"MODE": {
			handler:   modeHandler,
			minParams: 1,
		},
		"MOTD": {
			handler: motdHandler,
		},
		"NICK": {
			handler:      nickHandler,
			usablePreReg: true,
		},
		"NOTICE": {
			handler: noticeHandler,
		},
		"PART": {
			handler:   partHandler,
			minParams: 1,
		},
		"PASS": {
			handler:      passHandler,
			usablePreReg: true,
		},
		"PING": {
			handler: pingHandler,
		},
		"PRIVMSG": {
			handler: privmsgHandler,
		},
		"QUIT": {
			handler:      quitHandler,
			usablePreReg: true,
		},
		"TOPIC": {
			handler:   topicHandler,
			minParams: 1,
		},
		"USER": {
			handler:      userHandler,
			usablePreReg: true,
			minParams:    3,
		},
	}
}

// dispatch routes one parsed message to its handler. Empty parses,
// invalid parses and unknown commands are all dropped here.
func (server *Server) dispatch(client *Client, msg Message) {
	if msg.Command == "" {
		return
	}
	if msg.Invalid {
		server.logger.Debug("command", fmt.Sprintf("%s sent an unparseable line", client.Nick()), msg.Error)
		return
	}

	cmd, ok := Commands[msg.Command]
	if !ok {
		server.logger.Debug("command", fmt.Sprintf("%s sent unknown command %s", client.Nick(), msg.Command))
		return
	}

	cmd.Run(server, client, msg)
}
