// Package discord connects the chat dispatcher to a Discord bot account.
//
// Inbound MessageCreate events from other users become chat.Message values;
// replies are sent with ChannelMessageSend, split into chunks that fit
// Discord's message length limit. discordgo's own logging is bridged to slog.
package discord
