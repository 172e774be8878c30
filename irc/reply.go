// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"fmt"
)

// The server name is fixed: every server-originated line is prefixed
// with :localhost, and all numeric replies follow RFC 2812 numbering.

const serverName = "localhost"

// userID renders the nick!user source used in the :source COMMAND
// prefix of broadcast messages.
func userID(nick, username string) string {
	return nick + "!" + username
}

// numericReply assembles ":localhost <code> <target> <rest>\r\n".
func numericReply(code, target, rest string) string {
	if target == "" {
		target = "*"
	}
	return fmt.Sprintf(":%s %s %s %s\r\n", serverName, code, target, rest)
}

// sourcedReply assembles ":<source> <command> <rest>\r\n".
func sourcedReply(source, command, rest string) string {
	return fmt.Sprintf(":%s %s %s\r\n", source, command, rest)
}

//
// connection registration
//

func rplWelcome(nick, id string) string {
	return numericReply(RPL_WELCOME, nick, ":Welcome to the Internet Relay Network "+id)
}

func rplYourHost(nick string) string {
	return numericReply(RPL_YOURHOST, nick, fmt.Sprintf(":Your host is %s, running version %s", serverName, Ver))
}

func rplCreated(nick, datetime string) string {
	return numericReply(RPL_CREATED, nick, ":This server was created "+datetime)
}

func rplMyInfo(nick string) string {
	return numericReply(RPL_MYINFO, nick, fmt.Sprintf("%s %s o itkol kl", serverName, Ver))
}

func errPasswdMismatch(nick string) string {
	return numericReply(ERR_PASSWDMISMATCH, nick, ":Password incorrect.")
}

func errAlreadyRegistered(nick string) string {
	return numericReply(ERR_ALREADYREGISTERED, nick, ":You may not reregister.")
}

func errNotRegistered(nick string) string {
	return numericReply(ERR_NOTREGISTERED, nick, ":You have not registered")
}

func errNeedMoreParams(nick, command string) string {
	return numericReply(ERR_NEEDMOREPARAMS, nick, command+" :Not enough parameters.")
}

//
// nicknames
//

func errNoNicknameGiven(nick string) string {
	return numericReply(ERR_NONICKNAMEGIVEN, nick, ":There is no nickname.")
}

func errErroneusNickname(nick, badNick string) string {
	return numericReply(ERR_ERRONEUSNICKNAME, nick, badNick+" :Erroneous nickname")
}

func errNicknameInUse(nick, badNick string) string {
	return numericReply(ERR_NICKNAMEINUSE, nick, badNick+" :Nickname is already in use.")
}

func rplNickChange(id, newNick string) string {
	return sourcedReply(id, RPL_NICK, ":"+newNick)
}

//
// channel membership
//

func rplJoin(id, channel string) string {
	return sourcedReply(id, RPL_JOIN, ":"+channel)
}

func rplPart(id, channel, reason string) string {
	if reason == "" {
		reason = "."
	}
	return sourcedReply(id, RPL_PART, channel+" :"+reason)
}

func rplKick(id, channel, target, reason string) string {
	return sourcedReply(id, RPL_KICK, channel+" "+target+" :"+reason)
}

func rplQuit(id, reason string) string {
	return sourcedReply(id, RPL_QUIT, ":Quit: "+reason)
}

func errNoSuchChannel(nick, channel string) string {
	return numericReply(ERR_NOSUCHCHANNEL, nick, channel+" :No such channel")
}

func errNotOnChannel(nick, channel string) string {
	return numericReply(ERR_NOTONCHANNEL, nick, channel+" :The user is not on this channel.")
}

func errUserOnChannel(nick, target, channel string) string {
	return numericReply(ERR_USERONCHANNEL, nick, target+" "+channel+" :Is already on channel")
}

func errUserNotInChannel(nick, target, channel string) string {
	return numericReply(ERR_USERNOTINCHANNEL, nick, target+" "+channel+" :They aren't on that channel")
}

func errChannelIsFull(nick, channel string) string {
	return numericReply(ERR_CHANNELISFULL, nick, channel+" :Cannot join channel (+l)")
}

func errInviteOnlyChan(nick, channel string) string {
	return numericReply(ERR_INVITEONLYCHAN, nick, channel+" :Cannot join channel (+i)")
}

func errBadChannelKey(nick, channel string) string {
	return numericReply(ERR_BADCHANNELKEY, nick, channel+" :Cannot join channel (+k)")
}

func errChanOPrivsNeeded(nick, channel string) string {
	return numericReply(ERR_CHANOPRIVSNEEDED, nick, channel+" :You're not channel operator")
}

func errCannotKickSelf(nick, channel string) string {
	return numericReply(ERR_CHANOPRIVSNEEDED, nick, channel+" :You can't kick yourself")
}

//
// channel state
//

func rplTopic(nick, channel, topic string) string {
	return numericReply(RPL_TOPIC, nick, channel+" :"+topic)
}

func rplNoTopic(nick, channel string) string {
	return numericReply(RPL_NOTOPIC, nick, channel+" :No topic is set")
}

func rplChangeTopic(id, channel, topic string) string {
	return sourcedReply(id, RPL_CHANGETOPIC, channel+" :"+topic)
}

func rplNamReply(nick, channel, names string) string {
	return numericReply(RPL_NAMREPLY, nick, "@ "+channel+" :"+names)
}

func rplEndOfNames(nick, channel string) string {
	return numericReply(RPL_ENDOFNAMES, nick, channel+" :End of /NAMES list.")
}

func rplChannelModeIs(nick, channel, modes string) string {
	return numericReply(RPL_CHANNELMODEIS, nick, channel+" :"+modes)
}

func rplChannelModeIsWithParam(nick, channel, modes, param string) string {
	return numericReply(RPL_CHANNELMODEIS, nick, channel+" "+modes+" "+param)
}

func rplChannelMode(id, channel, changes string) string {
	return sourcedReply(id, RPL_MODE, channel+" "+changes)
}

// the mode announcement sent to a channel creator
func modeChannelMsg(channel, modes string) string {
	return sourcedReply(serverName, RPL_MODE, channel+" "+modes)
}

func errUnknownMode(nick string, mode byte) string {
	return numericReply(ERR_UNKNOWNMODE, nick, string(mode)+" :is unknown mode char to me")
}

func errInvalidModeParam(nick, channel string, mode byte, param string) string {
	return numericReply(ERR_INVALIDMODEPARAM, nick, channel+" "+string(mode)+" "+param+" :Invalid mode parameter")
}

//
// invitations
//

func rplInviting(id, nick, target, channel string) string {
	return sourcedReply(id, RPL_INVITING, nick+" "+target+" "+channel)
}

func rplInvite(id, target, channel string) string {
	return sourcedReply(id, RPL_INVITE, target+" :"+channel)
}

//
// messaging
//

func rplPrivMsg(id, target, text string) string {
	return sourcedReply(id, RPL_PRIVMSG, target+" :"+text)
}

func rplNotice(id, target, text string) string {
	return sourcedReply(id, RPL_NOTICE, target+" :"+text)
}

func errNoSuchNick(nick, target string) string {
	return numericReply(ERR_NOSUCHNICK, nick, target+" :No such nick/channel")
}

func errCannotSendToChan(nick, channel string) string {
	return numericReply(ERR_CANNOTSENDTOCHAN, nick, channel+" :Cannot send to channel")
}

func errNoRecipient(nick, command string) string {
	return numericReply(ERR_NORECIPIENT, nick, ":No recipient given "+command)
}

func errNoTextToSend(nick string) string {
	return numericReply(ERR_NOTEXTTOSEND, nick, ":No text to send")
}

//
// server queries
//

func rplPong(id, token string) string {
	return sourcedReply(id, RPL_PONG, token)
}

func rplMotdStart(nick string) string {
	return numericReply(RPL_MOTDSTART, nick, fmt.Sprintf(":- %s Message of the day - ", serverName))
}

func rplMotdLine(nick, line string) string {
	return numericReply(RPL_MOTD, nick, ":"+line)
}

func rplEndOfMotd(nick string) string {
	return numericReply(RPL_ENDOFMOTD, nick, ":End of /MOTD command.")
}

func errNoMotd(nick string) string {
	return numericReply(ERR_NOMOTD, nick, ":MOTD File is missing")
}

func errNoSuchServer(nick, target string) string {
	return numericReply(ERR_NOSUCHSERVER, nick, target+" :No such server")
}
