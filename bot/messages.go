package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/models"
)

// pendingPreview is how many pending names a /pending reply lists.
const pendingPreview = 20

var medals = []string{"🥇", "🥈", "🥉", "🎖️", "🏅"}

func welcomeText() string {
	return "🙏 स्वागत है! कृपया हर दिन अपने आंगनवाड़ी की फ़ोटो इस समूह में भेजें।"
}

func chatIDText(id int64) string {
	return fmt.Sprintf("chat_id: %d", id)
}

func memberCountText(n int) string {
	return fmt.Sprintf("👥 Group members right now: %d", n)
}

func confirmationText(name string) string {
	return fmt.Sprintf("✅ %s, आपकी आज की फ़ोटो दर्ज कर ली गई है। बहुत अच्छे!", name)
}

// RenderReport formats a report exactly as the bot posts it.
func RenderReport(at time.Time, r ledger.Report) string {
	return reportText(at, r)
}

// reportText renders the numeric summary and the streak leaderboard.
func reportText(at time.Time, r ledger.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s समूह रिपोर्ट:\n\n", at.Format("03:04 PM"))
	fmt.Fprintf(&b, "👥 कुल सदस्य: %d\n", r.Total)
	fmt.Fprintf(&b, "✅ आज रिपोर्ट भेजी: %d\n", r.Submitted)
	fmt.Fprintf(&b, "⏳ रिपोर्ट नहीं भेजी: %d\n\n", r.Count)
	b.WriteString("🏆 लगातार रिपोर्टिंग करने वाले:\n")
	if len(r.Leaderboard) == 0 {
		b.WriteString("अभी कोई डेटा उपलब्ध नहीं है।")
		return b.String()
	}
	for i, s := range r.Leaderboard {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s – %d दिन", s.Rank, s.Name, s.Streak)
	}
	return b.String()
}

// awardText renders one medal message. Rank is 1-based.
func awardText(s ledger.Standing) string {
	medal := medals[len(medals)-1]
	if s.Rank >= 1 && s.Rank <= len(medals) {
		medal = medals[s.Rank-1]
	}
	return fmt.Sprintf("%s *%s*, आप आज #%d स्थान पर हैं — %d दिनों की शानदार रिपोर्टिंग के साथ! 🎉👏",
		medal, escapeMarkdown(s.Name), s.Rank, s.Streak)
}

func pendingText(p ledger.Pending) string {
	if len(p.Named) == 0 {
		return "✅ आज किसी की रिपोर्ट पेंडिंग नहीं है."
	}
	names := make([]string, 0, pendingPreview)
	for i, m := range p.Named {
		if i == pendingPreview {
			break
		}
		names = append(names, m.Name)
	}
	preview := strings.Join(names, ", ")
	if len(p.Named) > pendingPreview {
		preview += "…"
	}
	return fmt.Sprintf("⏳ आज पेंडिंग: %d\n%s", len(p.Named), preview)
}

func contentText(item models.ContentItem) string {
	if item.Title == "" {
		return "📘 आज का संदेश:\n\n" + item.Body
	}
	return fmt.Sprintf("📘 आज का संदेश: %s\n\n%s", item.Title, item.Body)
}

func exhaustedText() string {
	return "📭 सभी संदेश साझा किए जा चुके हैं। नई सामग्री जल्द आएगी।"
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown keeps member names from breaking legacy Markdown parsing.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
