// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2017-2018 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"fmt"
	"strconv"
	"strings"
)

func isChannelName(name string) bool {
	return len(name) > 0 && (name[0] == '#' || name[0] == '&')
}

func isAlphanumeric(str string) bool {
	for i := 0; i < len(str); i++ {
		c := str[i]
		if !(('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')) {
			return false
		}
	}
	return len(str) > 0
}

// splitList splits a comma-separated command argument, dropping empty
// entries.
func splitList(arg string) (result []string) {
	for _, item := range strings.Split(arg, ",") {
		if item != "" {
			result = append(result, item)
		}
	}
	return
}

//
// connection registration
//

// PASS <password>
func passHandler(server *Server, client *Client, msg Message) {
	if client.registered {
		client.enqueueReply(errAlreadyRegistered(client.Nick()))
		return
	}

	password := ""
	if len(msg.Params) > 0 {
		password = msg.Params[0]
	} else if msg.Trailing != "" {
		password = msg.Trailing
	}
	if password == "" {
		client.enqueueReply(errNeedMoreParams(client.Nick(), "PASS"))
		return
	}

	if !server.checkPassword(password) {
		client.enqueueReply(errPasswdMismatch(client.Nick()))
		return
	}
	client.passAccepted = true
}

// NICK <nickname>
func nickHandler(server *Server, client *Client, msg Message) {
	if !client.passAccepted {
		client.enqueueReply(errPasswdMismatch(client.Nick()))
		return
	}

	newNick := ""
	if len(msg.Params) > 0 {
		newNick = msg.Params[0]
	} else if msg.Trailing != "" {
		newNick = msg.Trailing
	}
	if newNick == "" {
		client.enqueueReply(errNoNicknameGiven(client.Nick()))
		return
	}

	if strings.ContainsAny(newNick, "#@:&") {
		client.enqueueReply(errErroneusNickname(client.Nick(), newNick))
		return
	}
	if _, inUse := server.nicknames[newNick]; inUse {
		client.enqueueReply(errNicknameInUse(client.Nick(), newNick))
		return
	}

	if client.hasNick() {
		oldNick := client.nick
		delete(server.nicknames, oldNick)
		client.enqueueReply(rplNickChange(client.Id(), newNick))
		// every nickname-keyed set in every channel moves in this
		// same step, so no stale key can be observed
		for _, channel := range server.channels {
			channel.UpdateNickname(oldNick, newNick)
		}
		server.logger.Debug("nick", fmt.Sprintf("%s changed nickname to %s", oldNick, newNick))
	}

	server.nicknames[newNick] = client
	client.nick = newNick
}

// USER <username> <mode> <unused> <realname>
func userHandler(server *Server, client *Client, msg Message) {
	if client.registered {
		client.enqueueReply(errAlreadyRegistered(client.Nick()))
		return
	}
	if !client.passAccepted {
		client.enqueueReply(errPasswdMismatch(client.Nick()))
		return
	}

	client.username = msg.Params[0]
	if msg.Trailing != "" {
		client.realname = msg.Trailing
	} else if len(msg.Params) > 3 {
		client.realname = msg.Params[3]
	}
	client.userSet = true
}

// CAP <subcommand> [...]
//
// No IRCv3 capabilities are supported. LS and LIST get an empty list
// and REQ is refused wholesale, so negotiating clients proceed straight to
// registration; everything else is ignored.
func capHandler(server *Server, client *Client, msg Message) {
	if len(msg.Params) == 0 {
		return
	}
	switch strings.ToUpper(msg.Params[0]) {
	case "LS", "LIST":
		client.enqueueReply(sourcedReply(serverName, "CAP", client.Nick()+" "+strings.ToUpper(msg.Params[0])+" :"))
	case "REQ":
		client.enqueueReply(sourcedReply(serverName, "CAP", client.Nick()+" NAK :"+msg.Trailing))
	}
}

// QUIT [:<reason>]
func quitHandler(server *Server, client *Client, msg Message) {
	reason := msg.Trailing
	if reason == "" && len(msg.Params) > 0 {
		reason = msg.Params[0]
	}
	if reason == "" {
		reason = "Client Quit"
	}
	server.quitClient(client, reason)
}

//
// channel membership
//

// JOIN <channel>{,<channel>} [<key>{,<key>}]
func joinHandler(server *Server, client *Client, msg Message) {
	if len(msg.Params) > 2 {
		return
	}

	channels := splitList(msg.Params[0])
	var keys []string
	if len(msg.Params) > 1 {
		keys = splitList(msg.Params[1])
	}

	keyIndex := 0
	for _, name := range channels {
		if !isChannelName(name) {
			continue
		}

		channel, exists := server.channels[name]
		if !exists {
			channel = NewChannel(name, client)
			server.channels[name] = channel
			server.greetJoinedUser(client, channel)
			server.logger.Debug("channel", fmt.Sprintf("%s created %s", client.nick, name))
			continue
		}

		invited := channel.IsInvited(client.nick)
		switch {
		case channel.IsMember(client.nick):
			client.enqueueReply(errUserOnChannel(client.Nick(), client.nick, name))
		case channel.IsFull() && !invited:
			client.enqueueReply(errChannelIsFull(client.Nick(), name))
		case channel.CheckMode('i') && !invited:
			client.enqueueReply(errInviteOnlyChan(client.Nick(), name))
		case channel.CheckMode('k') && !consumeKey(keys, &keyIndex, channel.Key()):
			client.enqueueReply(errBadChannelKey(client.Nick(), name))
		default:
			channel.Broadcast(rplJoin(client.Id(), name))
			channel.AddMember(client)
			server.greetJoinedUser(client, channel)
		}
	}
}

// consumeKey checks the next positional JOIN key against the channel
// key, advancing past it only on a match.
func consumeKey(keys []string, index *int, channelKey string) bool {
	if *index < len(keys) && keys[*index] == channelKey {
		*index++
		return true
	}
	return false
}

// PART <channel>{,<channel>} [:<reason>]
func partHandler(server *Server, client *Client, msg Message) {
	reason := msg.Trailing

	for _, name := range splitList(msg.Params[0]) {
		channel, exists := server.channels[name]
		if !exists {
			client.enqueueReply(errNoSuchChannel(client.Nick(), name))
			continue
		}
		if !channel.IsMember(client.nick) {
			client.enqueueReply(errNotOnChannel(client.Nick(), name))
			continue
		}

		channel.Broadcast(rplPart(client.Id(), name, reason))
		channel.RemoveMember(client.nick)
		server.removeChannelIfEmpty(name)
	}
}

// KICK <channel> <user>{,<user>} [:<comment>]
func kickHandler(server *Server, client *Client, msg Message) {
	name := msg.Params[0]
	reason := msg.Trailing

	channel, exists := server.channels[name]
	if !exists {
		client.enqueueReply(errNoSuchChannel(client.Nick(), name))
		return
	}
	if !channel.IsMember(client.nick) {
		client.enqueueReply(errNotOnChannel(client.Nick(), name))
		return
	}
	if !channel.IsOperator(client.nick) {
		client.enqueueReply(errChanOPrivsNeeded(client.Nick(), name))
		return
	}

	for _, target := range splitList(msg.Params[1]) {
		if target == client.nick {
			client.enqueueReply(errCannotKickSelf(client.Nick(), name))
			continue
		}
		if !channel.IsMember(target) {
			client.enqueueReply(errUserNotInChannel(client.Nick(), target, name))
			continue
		}

		// the target sees their own removal
		channel.Broadcast(rplKick(client.Id(), name, target, reason))
		channel.RemoveMember(target)
	}

	// destruction must wait until every broadcast above is enqueued
	server.removeChannelIfEmpty(name)
}

// INVITE <nickname> <channel>
func inviteHandler(server *Server, client *Client, msg Message) {
	nick := msg.Params[0]
	name := msg.Params[1]

	channel, exists := server.channels[name]
	if !exists {
		client.enqueueReply(errNoSuchChannel(client.Nick(), name))
		return
	}
	if !channel.IsMember(client.nick) {
		client.enqueueReply(errNotOnChannel(client.Nick(), name))
		return
	}
	if channel.CheckMode('i') && !channel.IsOperator(client.nick) {
		client.enqueueReply(errChanOPrivsNeeded(client.Nick(), name))
		return
	}

	target, online := server.nicknames[nick]
	if !online {
		client.enqueueReply(errNoSuchNick(client.Nick(), nick))
		return
	}
	if channel.IsMember(nick) {
		client.enqueueReply(errUserOnChannel(client.Nick(), nick, name))
		return
	}

	channel.Invite(nick)
	client.enqueueReply(rplInviting(client.Id(), client.nick, nick, name))
	target.enqueueReply(rplInvite(client.Id(), nick, name))
}

//
// channel state
//

// TOPIC <channel> [:<topic>]
func topicHandler(server *Server, client *Client, msg Message) {
	name := msg.Params[0]
	if !isChannelName(name) {
		return
	}

	channel, exists := server.channels[name]
	if !exists {
		client.enqueueReply(errNoSuchChannel(client.Nick(), name))
		return
	}
	if !channel.IsMember(client.nick) {
		client.enqueueReply(errNotOnChannel(client.Nick(), name))
		return
	}

	if msg.Trailing == "" {
		if channel.Topic() == "" {
			client.enqueueReply(rplNoTopic(client.Nick(), name))
		} else {
			client.enqueueReply(rplTopic(client.Nick(), name, channel.Topic()))
		}
		return
	}

	if channel.CheckMode('t') && !channel.IsOperator(client.nick) {
		client.enqueueReply(errChanOPrivsNeeded(client.Nick(), name))
		return
	}

	channel.SetTopic(msg.Trailing)
	channel.Broadcast(rplChangeTopic(client.Id(), name, msg.Trailing))
}

// MODE <target> [<modestring> [<mode arguments>...]]
func modeHandler(server *Server, client *Client, msg Message) {
	// mode arguments are accepted either as middle parameters or
	// packed into the trailing parameter
	params := msg.Params
	if msg.Trailing != "" {
		params = append(params[:len(params):len(params)], strings.Fields(msg.Trailing)...)
	}

	target := params[0]
	if !isChannelName(target) {
		if _, online := server.nicknames[target]; !online {
			client.enqueueReply(errNoSuchChannel(client.Nick(), target))
		}
		// user modes are not implemented
		return
	}

	channel, exists := server.channels[target]
	if !exists {
		client.enqueueReply(errNoSuchChannel(client.Nick(), target))
		return
	}

	if len(params) == 1 {
		client.enqueueReply(rplChannelModeIs(client.Nick(), target, channel.ModeString()))
		return
	}

	if !channel.IsOperator(client.nick) {
		client.enqueueReply(errChanOPrivsNeeded(client.Nick(), target))
		return
	}

	applyChannelModes(server, client, channel, params[1], params[2:])
}

// applyChannelModes walks a modestring character by character,
// consuming one tail parameter per parameterized mode, and broadcasts
// the aggregate of the changes that actually took effect.
func applyChannelModes(server *Server, client *Client, channel *Channel, modeString string, params []string) {
	adding := true
	paramIndex := 0
	var applied strings.Builder

	nextParam := func() (string, bool) {
		if paramIndex < len(params) {
			param := params[paramIndex]
			paramIndex++
			return param, true
		}
		return "", false
	}

	for i := 0; i < len(modeString); i++ {
		mode := modeString[i]
		if mode == '+' || mode == '-' {
			adding = (mode == '+')
			continue
		}

		changed := false
		switch mode {
		case 'i', 't':
			changed = channel.SetMode(mode, adding)

		case 'k':
			if adding == channel.CheckMode('k') {
				break
			}
			if !adding {
				channel.RemoveKey()
				changed = true
				break
			}
			param, ok := nextParam()
			if !ok {
				client.enqueueReply(errNeedMoreParams(client.Nick(), "MODE +k"))
				break
			}
			if !isAlphanumeric(param) {
				client.enqueueReply(errInvalidModeParam(client.Nick(), channel.Name(), 'k', param))
				break
			}
			channel.SetKey(param)
			masked := strings.Repeat("*", len(param))
			client.enqueueReply(rplChannelModeIsWithParam(client.Nick(), channel.Name(), channel.ModeString(), masked))
			changed = true

		case 'l':
			if adding == channel.CheckMode('l') {
				break
			}
			if !adding {
				channel.RemoveLimit()
				changed = true
				break
			}
			param, ok := nextParam()
			if !ok {
				client.enqueueReply(errNeedMoreParams(client.Nick(), "MODE +l"))
				break
			}
			limit, err := strconv.Atoi(param)
			if err != nil || limit <= 0 {
				client.enqueueReply(errInvalidModeParam(client.Nick(), channel.Name(), 'l', param))
				break
			}
			channel.SetLimit(limit)
			client.enqueueReply(rplChannelModeIsWithParam(client.Nick(), channel.Name(), channel.ModeString(), param))
			changed = true

		case 'o':
			param, ok := nextParam()
			if !ok {
				client.enqueueReply(errNeedMoreParams(client.Nick(), "MODE o"))
				break
			}
			if !channel.IsMember(param) {
				client.enqueueReply(errUserNotInChannel(client.Nick(), param, channel.Name()))
				break
			}
			if adding != channel.IsOperator(param) {
				if adding {
					channel.AddOperator(param)
				} else {
					channel.RemoveOperator(param)
				}
				changed = true
			}

		case 'b':
			// accepted for client compatibility, no ban list exists

		default:
			client.enqueueReply(errUnknownMode(client.Nick(), mode))
		}

		if changed {
			if adding {
				applied.WriteByte('+')
			} else {
				applied.WriteByte('-')
			}
			applied.WriteByte(mode)
		}
	}

	if applied.Len() > 0 {
		channel.Broadcast(rplChannelMode(client.Id(), channel.Name(), applied.String()))
	}
}

//
// messaging
//

// PRIVMSG <target> :<text>
func privmsgHandler(server *Server, client *Client, msg Message) {
	messageHandler(server, client, msg, false)
}

// NOTICE <target> :<text>
func noticeHandler(server *Server, client *Client, msg Message) {
	messageHandler(server, client, msg, true)
}

// messageHandler relays to a channel or a nickname. NOTICE semantics
// are identical to PRIVMSG except that failures are silent.
func messageHandler(server *Server, client *Client, msg Message, notice bool) {
	if len(msg.Params) == 0 {
		if !notice {
			client.enqueueReply(errNoRecipient(client.Nick(), msg.Command))
		}
		return
	}
	if msg.Trailing == "" {
		if !notice {
			client.enqueueReply(errNoTextToSend(client.Nick()))
		}
		return
	}

	target := msg.Params[0]
	var line string
	if notice {
		line = rplNotice(client.Id(), target, msg.Trailing)
	} else {
		line = rplPrivMsg(client.Id(), target, msg.Trailing)
	}

	if isChannelName(target) {
		channel, exists := server.channels[target]
		if !exists || !channel.IsMember(client.nick) {
			if !notice {
				client.enqueueReply(errCannotSendToChan(client.Nick(), target))
			}
			return
		}
		channel.BroadcastExcept(client, line)
		return
	}

	recipient, online := server.nicknames[target]
	if !online {
		if !notice {
			client.enqueueReply(errNoSuchNick(client.Nick(), target))
		}
		return
	}
	recipient.enqueueReply(line)
}

//
// server queries
//

// MOTD [<target>]
func motdHandler(server *Server, client *Client, msg Message) {
	if len(msg.Params) > 0 && msg.Params[0] != serverName {
		client.enqueueReply(errNoSuchServer(client.Nick(), msg.Params[0]))
		return
	}
	server.MOTD(client)
}

// PING <token>
func pingHandler(server *Server, client *Client, msg Message) {
	token := ""
	if len(msg.Params) > 0 {
		token = msg.Params[0]
	} else if msg.Trailing != "" {
		token = msg.Trailing
	}
	if token == "" {
		client.enqueueReply(errNeedMoreParams(client.Nick(), "PING"))
		return
	}
	client.enqueueReply(rplPong(client.Id(), token))
}
