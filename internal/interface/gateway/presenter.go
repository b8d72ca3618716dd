package gateway

import (
	"fmt"
	"strings"

	"github.com/cozykbin/Jipsa-bot/internal/application/command"
	"github.com/cozykbin/Jipsa-bot/internal/application/query"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/ranking"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENTER
// Renders application results into the plain-text messages the Notifier
// sends. All copy lives here so the dispatcher stays free of formatting.
// ══════════════════════════════════════════════════════════════════════════════

// Presenter formats outgoing messages.
type Presenter struct{}

// NewPresenter creates a new Presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

func name(displayName string) string {
	if displayName == "" {
		return ranking.UnknownMemberName
	}
	return displayName
}

// CheckIn renders the check-in response.
func (p *Presenter) CheckIn(res *command.CheckInResult) string {
	if res.AlreadyCheckedIn {
		return fmt.Sprintf("✅ %s, today's check-in is already in the book. Current streak: %d days.",
			name(res.DisplayName), res.Streak)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🌞 %s checked in! +%d XP\n", name(res.DisplayName), res.XPEarned)
	fmt.Fprintf(&sb, "🔥 Streak: %d days • 📅 Total: %d days", res.Streak, res.TotalDays)
	if res.LeveledUp {
		sb.WriteString("\n")
		sb.WriteString(p.levelUpLine(res.NewTotal))
	}
	return sb.String()
}

// WakeupPrompt renders the proof request posted when a member starts the
// wake-up verification.
func (p *Presenter) WakeupPrompt(displayName string) string {
	return fmt.Sprintf("📸 %s, post a photo in this channel to verify you're up! Before 09:00 counts as an early bird.",
		name(displayName))
}

// WakeupPending renders the reminder for a duplicate request.
func (p *Presenter) WakeupPending(displayName string) string {
	return fmt.Sprintf("⏳ %s, your wake-up proof is still pending. Post a photo to finish it.", name(displayName))
}

// WakeupAlreadyVerified renders the response when today is already done.
func (p *Presenter) WakeupAlreadyVerified(displayName string) string {
	return fmt.Sprintf("☀️ %s, today's wake-up is already verified. See you tomorrow morning!", name(displayName))
}

// WakeupVerified renders the resolution message.
func (p *Presenter) WakeupVerified(res *command.ResolveWakeupResult) string {
	var sb strings.Builder
	if res.Early {
		fmt.Fprintf(&sb, "🐦 Early bird! %s woke up before 09:00. +%d XP", name(res.DisplayName), res.XPEarned)
	} else {
		fmt.Fprintf(&sb, "☀️ %s is up! +%d XP", name(res.DisplayName), res.XPEarned)
	}
	if res.LeveledUp {
		sb.WriteString("\n")
		sb.WriteString(p.levelUpLine(res.NewTotal))
	}
	return sb.String()
}

// StudyEntered renders the session-open notice.
func (p *Presenter) StudyEntered(displayName, room string, cameraRequired bool) string {
	if cameraRequired {
		return fmt.Sprintf("📚 %s entered %s. Camera on within 10 minutes doubles your XP!", name(displayName), room)
	}
	return fmt.Sprintf("📚 %s entered %s. The clock is running.", name(displayName), room)
}

// StudyLeft renders the finalization notice, edited into the enter notice.
func (p *Presenter) StudyLeft(displayName string, res *command.LeaveStudyRoomResult) string {
	if res.TooShort {
		return fmt.Sprintf("💨 %s stayed under 10 minutes. No credit this time.", name(displayName))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📖 %s studied %d min", name(displayName), res.Minutes)
	if res.Multiplier > 1 {
		fmt.Fprintf(&sb, " with camera (×%d)", res.Multiplier)
	}
	fmt.Fprintf(&sb, ". +%d XP • today: %d min", res.XPEarned, res.DayTotal)
	if res.LeveledUp {
		sb.WriteString("\n")
		sb.WriteString(p.levelUpLine(res.NewTotal))
	}
	return sb.String()
}

// StudyEvicted renders the camera-enforcement notice.
func (p *Presenter) StudyEvicted(displayName string) string {
	return fmt.Sprintf("🚪 %s was moved out of the camera room: no camera within the grace period, no credit.",
		name(displayName))
}

// Stats renders the weekly/monthly/lifetime stats message.
func (p *Presenter) Stats(displayName string, res *query.GetStatsResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Stats for %s (%s)\n", name(displayName), res.Date)
	p.statsBlock(&sb, "This week", res.Weekly)
	p.statsBlock(&sb, "This month", res.Monthly)
	p.statsBlock(&sb, "All time", res.Lifetime)
	return strings.TrimRight(sb.String(), "\n")
}

func (p *Presenter) statsBlock(sb *strings.Builder, title string, s query.PeriodStats) {
	fmt.Fprintf(sb, "%s — ✅ %d check-ins • 🌅 %d wake-ups • 📚 %d study days • ⏱ %d min\n",
		title, s.CheckIns, s.Wakeups, s.StudyDays, s.StudyMinutes)
}

// History renders the recent check-in dates plus the three streaks.
func (p *Presenter) History(displayName string, res *query.GetHistoryResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s — %d check-ins total\n", name(displayName), res.TotalDays)
	fmt.Fprintf(&sb, "🔥 Streaks: check-in %d • wake-up %d • study %d\n",
		res.AttendanceStreak, res.WakeupStreak, res.StudyStreak)

	if len(res.RecentAttendance) == 0 {
		sb.WriteString("No check-ins yet. /checkin starts the story.")
		return sb.String()
	}

	sb.WriteString("Recent: ")
	days := make([]string, len(res.RecentAttendance))
	for i, d := range res.RecentAttendance {
		days[i] = d.String()
	}
	sb.WriteString(strings.Join(days, ", "))
	return sb.String()
}

// Profile renders the per-member profile card.
func (p *Presenter) Profile(res *query.GetProfileResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s — Lv.%d %s\n", res.Tier.Emoji, name(res.DisplayName), res.Level, res.Tier.Name)
	fmt.Fprintf(&sb, "%s\n", res.Bar)
	if res.Level < member.MaxLevel {
		fmt.Fprintf(&sb, "⭐ %d XP • %d to next level\n", res.XP, res.Progress.ToNext)
	} else {
		fmt.Fprintf(&sb, "⭐ %d XP • the throne is yours\n", res.XP)
	}
	fmt.Fprintf(&sb, "🔥 Streak: %d days\n", res.Streak)
	p.statsBlock(&sb, "This week", res.Weekly)
	p.statsBlock(&sb, "This month", res.Monthly)
	return strings.TrimRight(sb.String(), "\n")
}

// Leaderboard renders one board, also used for the pinned message.
func (p *Presenter) Leaderboard(lb *ranking.Leaderboard, at timeutil.Date) string {
	var sb strings.Builder
	switch lb.Board {
	case ranking.BoardStreak:
		sb.WriteString("🔥 Streak ranking")
	case ranking.BoardAttendance:
		sb.WriteString("📅 Attendance ranking")
	default:
		sb.WriteString("🏆 Leaderboard")
	}
	fmt.Fprintf(&sb, " — %s\n", at)

	if len(lb.Entries) == 0 {
		sb.WriteString("Nobody on the board yet.")
		return sb.String()
	}

	for _, e := range lb.Entries {
		switch lb.Board {
		case ranking.BoardExperience:
			fmt.Fprintf(&sb, "%s %s %s — %d XP (Lv.%d)\n", medal(e.Rank), e.TierEmoji, e.Name(), e.Score, e.Level)
		case ranking.BoardStreak:
			fmt.Fprintf(&sb, "%s %s — %d days\n", medal(e.Rank), e.Name(), e.Score)
		case ranking.BoardAttendance:
			fmt.Fprintf(&sb, "%s %s — %d check-ins\n", medal(e.Rank), e.Name(), e.Score)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%2d.", rank)
	}
}

// Help renders the command list.
func (p *Presenter) Help(isAdmin bool) string {
	var sb strings.Builder
	sb.WriteString("🏰 Jipsa commands\n")
	sb.WriteString("/checkin — daily check-in (+50 XP)\n")
	sb.WriteString("/wakeup — start wake-up proof (photo; +200 XP before 09:00, +100 after)\n")
	sb.WriteString("/stats — weekly, monthly, and lifetime totals\n")
	sb.WriteString("/history — recent check-ins and your streaks\n")
	sb.WriteString("/profile — your level card\n")
	sb.WriteString("Study rooms credit 1 XP per minute, doubled with camera on.")
	if isAdmin {
		sb.WriteString("\n\n🔧 Admin\n")
		sb.WriteString("/xp give|take|set <member> <amount>\n")
		sb.WriteString("/xp role <role> <amount> — grant to every role holder\n")
		sb.WriteString("/xp raffle <amount> — draw one active member\n")
		sb.WriteString("/study credit <member> <minutes>")
	}
	return sb.String()
}

func (p *Presenter) levelUpLine(newTotal int) string {
	tier := member.TierOf(member.XP(newTotal))
	return fmt.Sprintf("🎉 LEVEL UP! Now %s %s (Lv.%d)", tier.Emoji, tier.Name, tier.Level)
}
