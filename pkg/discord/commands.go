package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Command names.
const (
	CommandTalk  = "talk"
	CommandLeave = "leave"
)

// Commands are the application commands the bot serves.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        CommandTalk,
		Description: "Start a voice conversation in your current voice channel.",
	},
	{
		Name:        CommandLeave,
		Description: "End the voice conversation and leave the channel.",
	},
}

// DeployCommands replaces the application's commands. An empty guildID
// registers them globally.
func DeployCommands(s *discordgo.Session, appID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	if appID == "" {
		return nil, fmt.Errorf("discord: application ID is required")
	}
	registered, err := s.ApplicationCommandBulkOverwrite(appID, guildID, Commands)
	if err != nil {
		return nil, fmt.Errorf("discord: deploy commands: %w", err)
	}
	return registered, nil
}

// Embed colors.
const (
	colorError = 0xED4245
	colorInfo  = 0x5865F2
)

func errorEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorError}
}

func infoEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorInfo}
}

func ephemeral(embed *discordgo.MessageEmbed) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	}
}
