// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016- Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"sort"
	"strings"
)

// channelFlags is the closed set of channel modes, in the order they
// render in mode strings.
const channelFlags = "iklot"

// Channel is a named multicast group. Members, operators and invitees
// are keyed by nickname; the member map holds each member's session
// directly. Nick renames rewrite all three maps in the same handler
// step, so a nickname key is always current.
type Channel struct {
	name      string
	topic     string
	key       string
	userLimit int
	flags     map[byte]bool
	members   map[string]*Client
	operators map[string]bool
	invites   map[string]bool
}

// NewChannel creates a channel with its founder as sole member and
// operator. Topic protection is on by default.
func NewChannel(name string, founder *Client) *Channel {
	channel := &Channel{
		name:      name,
		flags:     make(map[byte]bool),
		members:   map[string]*Client{founder.nick: founder},
		operators: map[string]bool{founder.nick: true},
		invites:   make(map[string]bool),
	}
	channel.SetMode('t', true)
	return channel
}

func (channel *Channel) Name() string {
	return channel.name
}

func (channel *Channel) IsEmpty() bool {
	return len(channel.members) == 0
}

func (channel *Channel) Size() int {
	return len(channel.members)
}

func (channel *Channel) IsMember(nick string) bool {
	_, ok := channel.members[nick]
	return ok
}

func (channel *Channel) IsOperator(nick string) bool {
	return channel.operators[nick]
}

func (channel *Channel) IsInvited(nick string) bool {
	return channel.invites[nick]
}

// AddMember adds a session to the channel, consuming any pending
// invitation. If the channel somehow has no operators left, the new
// member picks up the hat.
func (channel *Channel) AddMember(client *Client) {
	channel.members[client.nick] = client
	delete(channel.invites, client.nick)
	if len(channel.operators) == 0 {
		channel.operators[client.nick] = true
	}
}

// RemoveMember drops a nickname from membership and the operator set.
// The member must leave before a replacement operator is chosen, or
// the leaver could be promoted back into the hat.
func (channel *Channel) RemoveMember(nick string) {
	delete(channel.members, nick)
	if channel.operators[nick] {
		delete(channel.operators, nick)
		channel.SetMode('o', false)
	}
	if len(channel.operators) == 0 && len(channel.members) > 0 {
		channel.operators[channel.firstMember()] = true
	}
}

// AddOperator grants operator status to a current member.
func (channel *Channel) AddOperator(nick string) {
	if _, ok := channel.members[nick]; ok {
		channel.operators[nick] = true
		channel.SetMode('o', true)
	}
}

// RemoveOperator drops operator status. A non-empty channel must keep
// at least one operator: the lexicographically first member is
// promoted when the set empties.
func (channel *Channel) RemoveOperator(nick string) {
	if channel.operators[nick] {
		delete(channel.operators, nick)
		channel.SetMode('o', false)
	}
	if len(channel.operators) == 0 && len(channel.members) > 0 {
		channel.operators[channel.firstMember()] = true
	}
}

func (channel *Channel) firstMember() (first string) {
	for nick := range channel.members {
		if first == "" || nick < first {
			first = nick
		}
	}
	return
}

func (channel *Channel) Invite(nick string) {
	channel.invites[nick] = true
}

func (channel *Channel) RemoveInvite(nick string) {
	delete(channel.invites, nick)
}

func (channel *Channel) Key() string {
	return channel.key
}

func (channel *Channel) SetKey(key string) {
	channel.key = key
	channel.SetMode('k', true)
}

func (channel *Channel) RemoveKey() {
	channel.key = ""
	channel.SetMode('k', false)
}

func (channel *Channel) UserLimit() int {
	return channel.userLimit
}

func (channel *Channel) SetLimit(limit int) {
	channel.userLimit = limit
	channel.SetMode('l', true)
}

func (channel *Channel) RemoveLimit() {
	channel.userLimit = 0
	channel.SetMode('l', false)
}

func (channel *Channel) IsFull() bool {
	return channel.flags['l'] && len(channel.members) >= channel.userLimit
}

func (channel *Channel) Topic() string {
	return channel.topic
}

func (channel *Channel) SetTopic(topic string) {
	channel.topic = topic
}

func (channel *Channel) CheckMode(flag byte) bool {
	return channel.flags[flag]
}

// SetMode sets or clears a mode flag, reporting whether the value
// actually transitioned.
func (channel *Channel) SetMode(flag byte, on bool) bool {
	if channel.flags[flag] == on {
		return false
	}
	channel.flags[flag] = on
	return true
}

// ModeString renders the set flags as "+iklt...", in the fixed order
// of channelFlags.
func (channel *Channel) ModeString() string {
	var set strings.Builder
	set.WriteByte('+')
	for i := 0; i < len(channelFlags); i++ {
		if channel.flags[channelFlags[i]] {
			set.WriteByte(channelFlags[i])
		}
	}
	return set.String()
}

// MemberList renders the NAMES view of the channel, operators
// prefixed with @, in nickname order.
func (channel *Channel) MemberList() string {
	nicks := make([]string, 0, len(channel.members))
	for nick := range channel.members {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	for i, nick := range nicks {
		if channel.operators[nick] {
			nicks[i] = "@" + nick
		}
	}
	return strings.Join(nicks, " ")
}

// Broadcast enqueues a line to every member.
func (channel *Channel) Broadcast(line string) {
	for _, member := range channel.members {
		member.enqueueReply(line)
	}
}

// BroadcastExcept enqueues a line to every member but one.
func (channel *Channel) BroadcastExcept(excluded *Client, line string) {
	for _, member := range channel.members {
		if member != excluded {
			member.enqueueReply(line)
		}
	}
}

// UpdateNickname rewrites the membership, operator and invite keys
// after a nick change. All three maps move in the same handler step.
func (channel *Channel) UpdateNickname(oldNick, newNick string) {
	if client, ok := channel.members[oldNick]; ok {
		delete(channel.members, oldNick)
		channel.members[newNick] = client
	}
	if channel.operators[oldNick] {
		delete(channel.operators, oldNick)
		channel.operators[newNick] = true
	}
	if channel.invites[oldNick] {
		delete(channel.invites, oldNick)
		channel.invites[newNick] = true
	}
}
