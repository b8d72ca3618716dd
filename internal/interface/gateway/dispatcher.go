package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/application/command"
	"github.com/cozykbin/Jipsa-bot/internal/application/query"
	"github.com/cozykbin/Jipsa-bot/internal/domain/ranking"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// Routes inbound platform events (commands, voice presence, attachments,
// button presses) to the application handlers and renders the results back
// through the Notifier. Nothing below this layer knows the platform exists.
// ══════════════════════════════════════════════════════════════════════════════

// Command is an inbound slash-command invocation.
type Command struct {
	UserID      string
	DisplayName string
	Channel     string
	Name        string
	Args        []string
}

// VoiceChange is a voice presence transition. Empty room means "not in any
// voice room".
type VoiceChange struct {
	UserID      string
	DisplayName string
	Before      string
	After       string
}

// Attachment is a message carrying at least one attachment.
type Attachment struct {
	UserID      string
	DisplayName string
	Channel     string
}

// ButtonPress is an inline-button interaction.
type ButtonPress struct {
	UserID  string
	Channel string
	Action  string
}

// Button actions.
const (
	ActionStreakRanking     = "rank:streak"
	ActionAttendanceRanking = "rank:attendance"
)

// Config carries the platform topology the dispatcher needs.
type Config struct {
	// TrackedRooms are the voice rooms whose time is credited.
	TrackedRooms []string

	// CameraRoom is the tracked room that requires a camera.
	CameraRoom string

	// StudyChannel receives study enter/leave/eviction notices.
	StudyChannel string

	// LeaderboardChannel holds the pinned leaderboard message.
	LeaderboardChannel string
}

func (c Config) tracked(room string) bool {
	for _, r := range c.TrackedRooms {
		if r == room {
			return true
		}
	}
	return false
}

// Dispatcher routes platform events to the application layer.
type Dispatcher struct {
	checkIn       *command.CheckInHandler
	requestWakeup *command.RequestWakeupHandler
	resolveWakeup *command.ResolveWakeupHandler
	study         *command.StudyHandler
	admin         *command.AdminHandler

	stats   *query.StatsHandler
	history *query.HistoryHandler
	profile *query.ProfileHandler
	boards  *query.LeaderboardHandler

	notifier  Notifier
	directory Directory
	refs      RefStore
	presence  Presence
	present   *Presenter
	log       *logger.Logger
	config    Config
}

// Handlers bundles the application-layer dependencies.
type Handlers struct {
	CheckIn       *command.CheckInHandler
	RequestWakeup *command.RequestWakeupHandler
	ResolveWakeup *command.ResolveWakeupHandler
	Study         *command.StudyHandler
	Admin         *command.AdminHandler
	Stats         *query.StatsHandler
	History       *query.HistoryHandler
	Profile       *query.ProfileHandler
	Boards        *query.LeaderboardHandler
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	h Handlers,
	notifier Notifier,
	directory Directory,
	refs RefStore,
	presence Presence,
	log *logger.Logger,
	config Config,
) *Dispatcher {
	return &Dispatcher{
		checkIn:       h.CheckIn,
		requestWakeup: h.RequestWakeup,
		resolveWakeup: h.ResolveWakeup,
		study:         h.Study,
		admin:         h.Admin,
		stats:         h.Stats,
		history:       h.History,
		profile:       h.Profile,
		boards:        h.Boards,
		notifier:      notifier,
		directory:     directory,
		refs:          refs,
		presence:      presence,
		present:       NewPresenter(),
		log:           log.With(logger.Component("gateway")),
		config:        config,
	}
}

// OnCommand routes one slash command.
func (d *Dispatcher) OnCommand(ctx context.Context, cmd Command) error {
	switch cmd.Name {
	case "checkin":
		return d.handleCheckIn(ctx, cmd)
	case "wakeup":
		return d.handleWakeup(ctx, cmd)
	case "stats":
		return d.handleStats(ctx, cmd)
	case "history":
		return d.handleHistory(ctx, cmd)
	case "profile":
		return d.handleProfile(ctx, cmd)
	case "help":
		return d.handleHelp(ctx, cmd)
	case "xp":
		return d.handleXP(ctx, cmd)
	case "study":
		return d.handleStudyAdmin(ctx, cmd)
	default:
		d.log.Debug("unknown command ignored", logger.String("command", cmd.Name))
		return nil
	}
}

func (d *Dispatcher) handleCheckIn(ctx context.Context, cmd Command) error {
	res, err := d.checkIn.Handle(ctx, command.CheckInCommand{
		UserID:      cmd.UserID,
		DisplayName: cmd.DisplayName,
	})
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}
	_, err = d.notifier.Send(ctx, cmd.Channel, d.present.CheckIn(res))
	return err
}

// handleWakeup opens the two-phase wake-up verification. The prompt is
// posted first so the pending request can reference it; when the engine
// reports the day as already verified (or a request already pending) the
// just-posted prompt is taken back.
func (d *Dispatcher) handleWakeup(ctx context.Context, cmd Command) error {
	ref, err := d.notifier.Send(ctx, cmd.Channel, d.present.WakeupPrompt(cmd.DisplayName))
	if err != nil {
		return err
	}

	res, err := d.requestWakeup.Handle(ctx, command.RequestWakeupCommand{
		UserID:          cmd.UserID,
		NotificationRef: ref,
	})
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}

	switch {
	case res.AlreadyVerified:
		return d.notifier.Edit(ctx, cmd.Channel, ref, d.present.WakeupAlreadyVerified(cmd.DisplayName))
	case res.AlreadyPending:
		return d.notifier.Edit(ctx, cmd.Channel, ref, d.present.WakeupPending(cmd.DisplayName))
	}
	return nil
}

// OnAttachment resolves a pending wake-up proof, if the sender has one.
func (d *Dispatcher) OnAttachment(ctx context.Context, a Attachment) error {
	res, err := d.resolveWakeup.Handle(ctx, command.ResolveWakeupCommand{
		UserID:      a.UserID,
		DisplayName: a.DisplayName,
	})
	if err != nil {
		return err
	}
	if !res.Resolved {
		return nil
	}

	content := d.present.WakeupVerified(res)
	if res.AlreadyVerified {
		content = d.present.WakeupAlreadyVerified(a.DisplayName)
	}

	err = d.notifier.Edit(ctx, a.Channel, res.NotificationRef, content)
	if errors.Is(err, ErrMessageNotFound) {
		// Prompt vanished; the verdict still deserves a message.
		_, err = d.notifier.Send(ctx, a.Channel, content)
	}
	return err
}

// OnVoicePresence tracks study sessions across voice transitions.
func (d *Dispatcher) OnVoicePresence(ctx context.Context, v VoiceChange) error {
	wasTracked := d.config.tracked(v.Before)
	isTracked := d.config.tracked(v.After)

	if wasTracked && !isTracked {
		if err := d.presence.Leave(ctx, v.UserID); err != nil {
			d.log.Warn("presence leave failed", logger.MemberID(v.UserID), logger.Err(err))
		}
		return d.finishStudy(ctx, v)
	}

	if isTracked {
		if err := d.presence.Enter(ctx, v.UserID); err != nil {
			d.log.Warn("presence enter failed", logger.MemberID(v.UserID), logger.Err(err))
		}
		return d.beginStudy(ctx, v)
	}

	return nil
}

func (d *Dispatcher) beginStudy(ctx context.Context, v VoiceChange) error {
	cameraRequired := v.After == d.config.CameraRoom

	ref, err := d.notifier.Send(ctx, d.config.StudyChannel,
		d.present.StudyEntered(v.DisplayName, v.After, cameraRequired))
	if err != nil {
		d.log.Warn("study notice failed", logger.MemberID(v.UserID), logger.Err(err))
		ref = ""
	}

	_, err = d.study.HandleEnter(ctx, command.EnterStudyRoomCommand{
		UserID:          v.UserID,
		DisplayName:     v.DisplayName,
		Room:            v.After,
		CameraRequired:  cameraRequired,
		NotificationRef: ref,
	})
	return err
}

func (d *Dispatcher) finishStudy(ctx context.Context, v VoiceChange) error {
	res, err := d.study.HandleLeave(ctx, command.LeaveStudyRoomCommand{
		UserID:      v.UserID,
		DisplayName: v.DisplayName,
	})
	if err != nil {
		return err
	}
	if res.NoSession {
		return nil
	}

	content := d.present.StudyLeft(v.DisplayName, res)
	if res.NotificationRef != "" {
		err = d.notifier.Edit(ctx, d.config.StudyChannel, res.NotificationRef, content)
		if err == nil || !errors.Is(err, ErrMessageNotFound) {
			return err
		}
	}
	_, err = d.notifier.Send(ctx, d.config.StudyChannel, content)
	return err
}

// OnCameraSignal forwards a camera on/off transition inside the camera room.
func (d *Dispatcher) OnCameraSignal(ctx context.Context, userID string) error {
	_, err := d.study.HandleCameraSignal(ctx, command.CameraSignalCommand{UserID: userID})
	return err
}

// OnButton routes an inline-button press.
func (d *Dispatcher) OnButton(ctx context.Context, b ButtonPress) error {
	var board ranking.Board
	switch b.Action {
	case ActionStreakRanking:
		board = ranking.BoardStreak
	case ActionAttendanceRanking:
		board = ranking.BoardAttendance
	default:
		return nil
	}

	lb, err := d.boards.Handle(ctx, query.GetLeaderboardQuery{Board: board})
	if err != nil {
		return d.reportFailure(ctx, b.Channel, err)
	}
	_, err = d.notifier.Send(ctx, b.Channel, d.present.Leaderboard(lb, timeutil.Today()))
	return err
}

func (d *Dispatcher) handleStats(ctx context.Context, cmd Command) error {
	res, err := d.stats.Handle(ctx, query.GetStatsQuery{UserID: cmd.UserID})
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}
	_, err = d.notifier.Send(ctx, cmd.Channel, d.present.Stats(cmd.DisplayName, res))
	return err
}

func (d *Dispatcher) handleHistory(ctx context.Context, cmd Command) error {
	res, err := d.history.Handle(ctx, query.GetHistoryQuery{UserID: cmd.UserID})
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}
	_, err = d.notifier.Send(ctx, cmd.Channel, d.present.History(cmd.DisplayName, res))
	return err
}

// handleProfile renders the member's profile card and remembers its ref so
// later XP changes re-render it in place.
func (d *Dispatcher) handleProfile(ctx context.Context, cmd Command) error {
	res, err := d.profile.Handle(ctx, query.GetProfileQuery{UserID: cmd.UserID})
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}
	if res.DisplayName == "" {
		res.DisplayName = cmd.DisplayName
	}

	ref, err := d.notifier.Send(ctx, cmd.Channel, d.present.Profile(res))
	if err != nil {
		return err
	}
	if err := d.refs.SetProfile(ctx, cmd.UserID, cmd.Channel+"/"+ref); err != nil {
		d.log.Warn("profile ref not stored", logger.MemberID(cmd.UserID), logger.Err(err))
	}
	return nil
}

func (d *Dispatcher) handleHelp(ctx context.Context, cmd Command) error {
	isAdmin, err := d.directory.IsAdmin(ctx, cmd.UserID)
	if err != nil {
		isAdmin = false
	}
	_, err = d.notifier.Send(ctx, cmd.Channel, d.present.Help(isAdmin))
	return err
}

// handleXP routes the admin XP subcommands:
// /xp give|take|set <member> <amount>, /xp role <role> <amount>,
// /xp raffle <amount>.
func (d *Dispatcher) handleXP(ctx context.Context, cmd Command) error {
	if len(cmd.Args) < 2 {
		_, err := d.notifier.Send(ctx, cmd.Channel, "Usage: /xp give|take|set|role|raffle ...")
		return err
	}

	isAdmin, err := d.directory.IsAdmin(ctx, cmd.UserID)
	if err != nil {
		return err
	}

	sub := cmd.Args[0]
	switch sub {
	case "give", "take", "set":
		if len(cmd.Args) < 3 {
			_, err := d.notifier.Send(ctx, cmd.Channel, fmt.Sprintf("Usage: /xp %s <member> <amount>", sub))
			return err
		}
		return d.adjustXP(ctx, cmd, isAdmin, sub, cmd.Args[1], cmd.Args[2])
	case "role":
		if len(cmd.Args) < 3 {
			_, err := d.notifier.Send(ctx, cmd.Channel, "Usage: /xp role <role> <amount>")
			return err
		}
		return d.grantToRole(ctx, cmd, isAdmin, cmd.Args[1], cmd.Args[2])
	case "raffle":
		return d.raffle(ctx, cmd, isAdmin, cmd.Args[1])
	default:
		_, err := d.notifier.Send(ctx, cmd.Channel, "Usage: /xp give|take|set|role|raffle ...")
		return err
	}
}

func (d *Dispatcher) adjustXP(ctx context.Context, cmd Command, isAdmin bool, sub, target, rawAmount string) error {
	amount, err := strconv.Atoi(rawAmount)
	if err != nil {
		_, err := d.notifier.Send(ctx, cmd.Channel, fmt.Sprintf("%q is not a number.", rawAmount))
		return err
	}

	displayName, err := d.directory.DisplayName(ctx, target)
	if err != nil {
		displayName = ""
	}

	adjust := command.AdjustXPCommand{
		CallerIsAdmin: isAdmin,
		TargetID:      target,
		DisplayName:   displayName,
		Amount:        amount,
	}

	var res *command.AdjustXPResult
	switch sub {
	case "give":
		res, err = d.admin.HandleGrantXP(ctx, adjust)
	case "take":
		res, err = d.admin.HandleRemoveXP(ctx, adjust)
	case "set":
		res, err = d.admin.HandleSetXP(ctx, adjust)
	}
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}

	var content string
	switch sub {
	case "give":
		content = fmt.Sprintf("✨ Granted %d XP to %s (now %d).", res.Applied, name(res.DisplayName), res.NewTotal)
	case "take":
		content = fmt.Sprintf("🧹 Removed %d XP from %s (now %d).", res.Applied, name(res.DisplayName), res.NewTotal)
	case "set":
		content = fmt.Sprintf("🎯 Set %s to %d XP (Lv.%d).", name(res.DisplayName), res.NewTotal, res.Level)
	}
	_, err = d.notifier.Send(ctx, cmd.Channel, content)
	return err
}

func (d *Dispatcher) grantToRole(ctx context.Context, cmd Command, isAdmin bool, role, rawAmount string) error {
	amount, err := strconv.Atoi(rawAmount)
	if err != nil {
		_, err := d.notifier.Send(ctx, cmd.Channel, fmt.Sprintf("%q is not a number.", rawAmount))
		return err
	}

	res, err := d.admin.HandleGrantToRole(ctx, command.GrantToRoleCommand{
		CallerIsAdmin: isAdmin,
		Role:          role,
		Amount:        amount,
	})
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}

	_, err = d.notifier.Send(ctx, cmd.Channel,
		fmt.Sprintf("✨ Granted %d XP to %d members of %s.", res.Amount, len(res.Recipients), role))
	return err
}

func (d *Dispatcher) raffle(ctx context.Context, cmd Command, isAdmin bool, rawAmount string) error {
	amount, err := strconv.Atoi(rawAmount)
	if err != nil {
		_, err := d.notifier.Send(ctx, cmd.Channel, fmt.Sprintf("%q is not a number.", rawAmount))
		return err
	}

	res, err := d.admin.HandleRaffleXP(ctx, command.RaffleXPCommand{
		CallerIsAdmin: isAdmin,
		Amount:        amount,
	})
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}

	if res.NoParticipants {
		_, err = d.notifier.Send(ctx, cmd.Channel, "🎲 Nobody active to draw from right now.")
		return err
	}
	_, err = d.notifier.Send(ctx, cmd.Channel,
		fmt.Sprintf("🎲 %s wins %d XP! (drawn from %d active members)",
			name(res.Winner.DisplayName), res.Winner.Applied, res.PoolSize))
	return err
}

// handleStudyAdmin routes /study credit <member> <minutes>.
func (d *Dispatcher) handleStudyAdmin(ctx context.Context, cmd Command) error {
	if len(cmd.Args) < 3 || cmd.Args[0] != "credit" {
		_, err := d.notifier.Send(ctx, cmd.Channel, "Usage: /study credit <member> <minutes>")
		return err
	}

	minutes, err := strconv.Atoi(cmd.Args[2])
	if err != nil {
		_, err := d.notifier.Send(ctx, cmd.Channel, fmt.Sprintf("%q is not a number.", cmd.Args[2]))
		return err
	}

	isAdmin, err := d.directory.IsAdmin(ctx, cmd.UserID)
	if err != nil {
		return err
	}

	target := cmd.Args[1]
	displayName, err := d.directory.DisplayName(ctx, target)
	if err != nil {
		displayName = ""
	}

	res, err := d.admin.HandleCreditStudyMinutes(ctx, command.CreditStudyMinutesCommand{
		CallerIsAdmin: isAdmin,
		TargetID:      target,
		DisplayName:   displayName,
		Minutes:       minutes,
	})
	if err != nil {
		return d.reportFailure(ctx, cmd.Channel, err)
	}

	_, err = d.notifier.Send(ctx, cmd.Channel,
		fmt.Sprintf("📚 Credited %d min to %s (+%d XP, %d min today).",
			res.Minutes, name(displayName), res.XPEarned, res.DayTotal))
	return err
}

// reportFailure translates an application error into a user-facing message.
// Authorization failures get the uniform rejection; validation failures echo
// their message; anything else is a generic retry hint.
func (d *Dispatcher) reportFailure(ctx context.Context, channel string, cause error) error {
	var content string
	switch {
	case errors.Is(cause, shared.ErrForbidden):
		content = "🚫 You don't have permission to do that."
	case errors.Is(cause, shared.ErrInvalidInput), errors.Is(cause, shared.ErrNegativeValue):
		content = "🤔 " + userMessage(cause)
	default:
		d.log.Error("command failed", logger.Err(cause))
		content = "⚠️ Something went wrong. Please try again."
	}
	_, err := d.notifier.Send(ctx, channel, content)
	return err
}

// userMessage strips the domain/op prefix from a DomainError for display.
func userMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// ── event-driven views ──────────────────────────────────────────────────────

// AttachRefreshers subscribes the event-driven view updates: the per-member
// profile card re-render on XP changes and the camera-eviction notice.
func (d *Dispatcher) AttachRefreshers(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventXPChanged, d.onXPChanged); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventStudyEvicted, d.onStudyEvicted)
}

func (d *Dispatcher) onXPChanged(event shared.Event) error {
	e, ok := event.(shared.XPChangedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := d.boards.InvalidateBoards(ctx, ranking.BoardExperience); err != nil {
		d.log.Warn("board cache invalidation failed", logger.Err(err))
	}

	stored, err := d.refs.Profile(ctx, e.MemberID)
	if err != nil || stored == "" {
		return nil // no card to refresh
	}
	channel, ref, ok := strings.Cut(stored, "/")
	if !ok {
		return nil
	}

	res, err := d.profile.Handle(ctx, query.GetProfileQuery{UserID: e.MemberID})
	if err != nil {
		return err
	}
	if res.DisplayName == "" {
		res.DisplayName = e.DisplayName
	}

	err = d.notifier.Edit(ctx, channel, ref, d.present.Profile(res))
	if errors.Is(err, ErrMessageNotFound) {
		return d.refs.ClearProfile(ctx, e.MemberID)
	}
	return err
}

func (d *Dispatcher) onStudyEvicted(event shared.Event) error {
	e, ok := event.(shared.StudyEvictedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	displayName, err := d.directory.DisplayName(ctx, e.MemberID)
	if err != nil {
		displayName = ""
	}
	_, err = d.notifier.Send(ctx, d.config.StudyChannel, d.present.StudyEvicted(displayName))
	return err
}
