package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/teslashibe/go-talk/internal/httpc"
	"github.com/teslashibe/go-talk/pkg/audioconv"
	"github.com/teslashibe/go-talk/pkg/playback"
	"github.com/teslashibe/go-talk/pkg/realtime"
)

// connectTimeout bounds the realtime handshake for /talk.
const connectTimeout = 15 * time.Second

// ErrNotInVoice indicates the invoking user is not in a voice channel.
var ErrNotInVoice = errors.New("discord: user is not in a voice channel")

// Bot serves the talk commands. At most one conversation is active at a time.
type Bot struct {
	cfg    Config
	dg     *discordgo.Session
	logger *slog.Logger

	mu     sync.Mutex
	active *talk
}

// talk is one active voice conversation.
type talk struct {
	guildID   string
	channelID string
	userID    string
	startedAt time.Time
	vc        *discordgo.VoiceConnection
	session   *realtime.Session
	cancel    context.CancelFunc
	done      chan struct{}
}

// Status describes the active conversation, if any.
type Status struct {
	Active    bool            `json:"active"`
	GuildID   string          `json:"guild_id,omitempty"`
	ChannelID string          `json:"channel_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	StartedAt time.Time       `json:"started_at,omitzero"`
	Session   *realtime.Stats `json:"session,omitempty"`
}

// New creates a bot. Call Run to connect to the gateway.
func New(cfg Config) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Converter == nil {
		cfg.Converter = audioconv.NewLinear()
	}

	dg, err := NewSession(cfg.Token)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:    cfg,
		dg:     dg,
		logger: cfg.Logger.With("component", "discord"),
	}
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteraction)

	return b, nil
}

// NewSession creates a discordgo session using the shared HTTP client.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	dg.Client = httpc.Client
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	return dg, nil
}

// Run opens the gateway and blocks until ctx ends, then ends any active
// conversation and closes the gateway.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	b.logger.Info("gateway connected")

	<-ctx.Done()

	b.stopActive()
	if err := b.dg.Close(); err != nil {
		b.logger.Warn("closing gateway", "error", err)
	}
	b.logger.Info("gateway closed")
	return nil
}

// Status returns the active conversation status.
func (b *Bot) Status() Status {
	b.mu.Lock()
	t := b.active
	b.mu.Unlock()

	if t == nil {
		return Status{}
	}
	stats := t.session.Stats()
	return Status{
		Active:    true,
		GuildID:   t.guildID,
		ChannelID: t.channelID,
		UserID:    t.userID,
		StartedAt: t.startedAt,
		Session:   &stats,
	}
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("bot ready", "user", r.User.Username, "guilds", len(r.Guilds))
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch name := i.ApplicationCommandData().Name; name {
	case CommandTalk:
		b.handleTalk(s, i)
	case CommandLeave:
		b.handleLeave(s, i)
	default:
		b.logger.Debug("unknown command", "name", name)
	}
}

func (b *Bot) handleTalk(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	channelID, err := userVoiceChannel(s.State, i.GuildID, userID)
	if err != nil {
		b.respond(s, i, ephemeral(errorEmbed("Not in a voice channel", "Join a voice channel first, then run /talk.")))
		return
	}

	b.mu.Lock()
	busy := b.active
	b.mu.Unlock()
	if busy != nil {
		b.respond(s, i, ephemeral(errorEmbed("Already talking", fmt.Sprintf("A conversation is active in <#%s>.", busy.channelID))))
		return
	}

	// Joining voice and the realtime handshake can exceed the 3s reply window.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.logger.Error("defer reply failed", "error", err)
		return
	}

	if err := b.start(s, i.GuildID, channelID, userID); err != nil {
		b.logger.Error("something went wrong during voice mode", "error", err)
		b.edit(s, i, errorEmbed("Error", "An error occurred while starting the voice chat."))
		return
	}

	b.edit(s, i, infoEmbed("Listening", fmt.Sprintf("Talking in <#%s>. Use /leave to end.", channelID)))
}

func (b *Bot) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.stopActive() {
		b.respond(s, i, ephemeral(errorEmbed("Nothing to end", "No conversation is active.")))
		return
	}
	b.respond(s, i, ephemeral(infoEmbed("Goodbye", "Conversation ended.")))
}

func (b *Bot) start(s *discordgo.Session, guildID, channelID, userID string) error {
	vc, err := s.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return fmt.Errorf("join voice: %w", err)
	}

	player, err := b.player(vc)
	if err != nil {
		_ = vc.Disconnect()
		return err
	}

	stream := playback.NewStream(player, playback.WithLogger(b.cfg.Logger))
	session, err := realtime.NewSession(stream, append(b.cfg.Realtime, realtime.WithLogger(b.cfg.Logger))...)
	if err != nil {
		_ = vc.Disconnect()
		return err
	}
	session.OnError(func(err error) {
		b.logger.Warn("session error", "error", err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	t := &talk{
		guildID:   guildID,
		channelID: channelID,
		userID:    userID,
		startedAt: time.Now(),
		vc:        vc,
		session:   session,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	session.OnStateChange(func(from, to realtime.State) {
		if b.cfg.OnStateChange != nil {
			b.cfg.OnStateChange(from, to)
		}
		if to == realtime.StateEnded || to == realtime.StateClosed {
			go b.finish(t)
		}
	})

	b.mu.Lock()
	if b.active != nil {
		b.mu.Unlock()
		cancel()
		_ = vc.Disconnect()
		return fmt.Errorf("discord: conversation already active")
	}
	b.active = t
	b.mu.Unlock()

	opts := []CaptureOption{WithCaptureLogger(b.cfg.Logger)}
	if b.cfg.SpeakerOnly {
		opts = append(opts, WithSpeaker(userID))
	}
	capture := NewCapture(vc.OpusRecv, session, b.cfg.Converter, opts...)
	capture.Attach(vc)

	go func() {
		defer close(t.done)
		_ = capture.Run(ctx)
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
	err = session.Connect(connectCtx)
	connectCancel()
	if err != nil {
		b.finish(t)
		return err
	}

	b.logger.Info("conversation started", "guild", guildID, "channel", channelID, "user", userID)
	return nil
}

func (b *Bot) player(vc *discordgo.VoiceConnection) (playback.Player, error) {
	if b.cfg.Player != nil {
		return b.cfg.Player(vc)
	}
	return NewVoicePlayer(vc, b.cfg.Logger), nil
}

// finish tears down t if it is still the active conversation.
func (b *Bot) finish(t *talk) {
	b.mu.Lock()
	if b.active != t {
		b.mu.Unlock()
		return
	}
	b.active = nil
	b.mu.Unlock()

	b.teardown(t)
}

func (b *Bot) stopActive() bool {
	b.mu.Lock()
	t := b.active
	b.active = nil
	b.mu.Unlock()

	if t == nil {
		return false
	}
	b.teardown(t)
	return true
}

func (b *Bot) teardown(t *talk) {
	t.cancel()
	if err := t.session.Disconnect(); err != nil {
		b.logger.Warn("disconnect failed", "error", err)
	}
	<-t.done
	if err := t.vc.Disconnect(); err != nil {
		b.logger.Warn("leaving voice failed", "error", err)
	}
	b.logger.Info("conversation ended", "channel", t.channelID, "duration", time.Since(t.startedAt).Round(time.Second))
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) {
	if err := s.InteractionRespond(i.Interaction, resp); err != nil {
		b.logger.Error("reply failed", "error", err)
	}
}

func (b *Bot) edit(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		b.logger.Error("reply edit failed", "error", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// userVoiceChannel returns the voice channel userID is in.
func userVoiceChannel(state *discordgo.State, guildID, userID string) (string, error) {
	if guildID == "" || userID == "" {
		return "", ErrNotInVoice
	}
	vs, err := state.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", ErrNotInVoice
	}
	return vs.ChannelID, nil
}
