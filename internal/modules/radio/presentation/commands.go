package presentation

import "github.com/bwmarrin/discordgo"

// Commands returns all slash commands for the radio module.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a radio stream in your voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "stream",
					Description:  "Predefined station name or stream URL",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		{
			Name:        "join",
			Description: "Join your voice channel without playing anything",
		},
		{
			Name:        "stop",
			Description: "Stop the radio",
		},
		{
			Name:        "leave",
			Description: "Stop the radio and leave the voice channel",
		},
		{
			Name:        "now",
			Description: "Show what is currently playing",
		},
		{
			Name:        "list",
			Description: "List the predefined stations",
		},
	}
}
