package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/devbush/submanager/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(22)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Align(lipgloss.Right).Width(12)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// FormatCount formats a number with K/M suffix
// Examples: 892 -> "892", 1234 -> "1.2K", 1500000 -> "1.5M"
func FormatCount(count int) string {
	if count >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(count)/1000000)
	}
	if count >= 1000 {
		return fmt.Sprintf("%.1fK", float64(count)/1000)
	}
	return fmt.Sprintf("%d", count)
}

// FormatWait formats a rate limit reset as "in 4m12s"
func FormatWait(reset, now time.Time) string {
	d := reset.Sub(now).Truncate(time.Second)
	if d <= 0 {
		return "now"
	}
	return "in " + d.String()
}

func row(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

// FormatBanner is the line printed before a sync starts
func FormatBanner(account *domain.Account, dryRun bool) string {
	verb := "Syncing"
	if dryRun {
		verb = "Previewing"
	}
	return fmt.Sprintf("%s @%s (%s)...", verb, account.Username, account.ProfileURL())
}

// FormatStatistics renders the statistics block shown by the stats command
func FormatStatistics(account *domain.Account, s *domain.Statistics, now time.Time) string {
	rows := []string{
		titleStyle.Render("@" + string(account.Username)),
		hintStyle.Render(account.ProfileURL()),
		"",
		row("Followers", FormatCount(s.Followers)),
		row("Following", FormatCount(s.Following)),
		row("Mutual", FormatCount(s.Mutual)),
		row("Not following back", FormatCount(s.NotFollowingBack)),
		row("Not followed back", FormatCount(s.NotFollowedBack)),
		row("Never follow", FormatCount(s.BannedFollowers)),
		row("Never unfollow", FormatCount(s.BannedFollowing)),
	}

	if s.DiscoveryEnabled {
		rows = append(rows,
			"",
			row("Protected (active)", FormatCount(s.ProtectedActive)),
			row("Protected (expired)", FormatCount(s.ProtectedExpired)),
		)
	}

	if rl := s.RateLimit; rl != nil {
		rows = append(rows,
			"",
			row("API requests left", fmt.Sprintf("%d/%d", rl.Remaining, rl.Limit)),
			row("Limit resets", FormatWait(rl.ResetAt, now)),
		)
	}

	return boxStyle.Render(strings.Join(rows, "\n"))
}

// FormatPlan lists the pending mutations of a dry run
func FormatPlan(plan domain.Plan) string {
	var b strings.Builder

	section := func(title string, users []domain.Username) {
		fmt.Fprintf(&b, "%s (%d)\n", titleStyle.Render(title), len(users))
		for _, u := range users {
			fmt.Fprintf(&b, "  %s\n", u)
		}
	}
	section("Would follow", plan.Follow)
	section("Would unfollow", plan.Unfollow)

	return b.String()
}

// FormatSummary is the one-line result of a run
func FormatSummary(followed, followTotal, unfollowed, unfollowTotal int) string {
	return fmt.Sprintf("✓ Followed %d/%d, unfollowed %d/%d", followed, followTotal, unfollowed, unfollowTotal)
}
