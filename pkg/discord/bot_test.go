package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/teslashibe/go-talk/internal/httpc"
)

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without token")
	}
}

func TestNewSession_UsesSharedClient(t *testing.T) {
	dg, err := NewSession("token")
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	if dg.Client != httpc.Client {
		t.Error("expected shared HTTP client")
	}
	if dg.Identify.Intents&discordgo.IntentsGuildVoiceStates == 0 {
		t.Error("voice state intent missing")
	}
}

func TestBot_StatusIdle(t *testing.T) {
	b, err := New(Config{Token: "token"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if st := b.Status(); st.Active || st.Session != nil {
		t.Errorf("expected idle status, got %+v", st)
	}
	if b.stopActive() {
		t.Error("stopActive should report nothing to stop")
	}
}

func TestUserVoiceChannel(t *testing.T) {
	state := discordgo.NewState()
	err := state.GuildAdd(&discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", UserID: "u1", ChannelID: "c1"},
		},
	})
	if err != nil {
		t.Fatalf("GuildAdd error: %v", err)
	}

	ch, err := userVoiceChannel(state, "g1", "u1")
	if err != nil || ch != "c1" {
		t.Errorf("expected c1, got %q (%v)", ch, err)
	}

	if _, err := userVoiceChannel(state, "g1", "u2"); err != ErrNotInVoice {
		t.Errorf("expected ErrNotInVoice, got %v", err)
	}
	if _, err := userVoiceChannel(state, "", "u1"); err != ErrNotInVoice {
		t.Errorf("expected ErrNotInVoice for DM, got %v", err)
	}
}

func TestInteractionUserID(t *testing.T) {
	member := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "m"}},
	}}
	if interactionUserID(member) != "m" {
		t.Error("expected member user ID")
	}

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "d"},
	}}
	if interactionUserID(dm) != "d" {
		t.Error("expected DM user ID")
	}
}

func TestCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range Commands {
		if c.Description == "" {
			t.Errorf("command %s has no description", c.Name)
		}
		names[c.Name] = true
	}
	if !names[CommandTalk] || !names[CommandLeave] {
		t.Errorf("missing commands: %v", names)
	}

	resp := ephemeral(errorEmbed("t", "d"))
	if resp.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Error("error reply must be ephemeral")
	}
}

func TestDeployCommands_RequiresAppID(t *testing.T) {
	dg, _ := NewSession("token")
	if _, err := DeployCommands(dg, "", ""); err == nil {
		t.Error("expected error without application ID")
	}
}
