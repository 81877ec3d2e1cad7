package notify

import (
	"fmt"
	"html"
	"strings"

	"request-radar/internal/models"
)

// DefaultPreviewRunes is how much of the description goes into a message.
const DefaultPreviewRunes = 300

// Truncate cuts s to at most n runes, appending "..." when something was cut.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// FormatMessage renders the Telegram HTML body for req.
func FormatMessage(req models.Request, previewRunes int) string {
	var b strings.Builder
	b.WriteString("📢 <b>طلب جديد على خمسات!</b> 📢\n\n")
	fmt.Fprintf(&b, "<b>العنوان:</b> %s\n", html.EscapeString(req.Title))
	fmt.Fprintf(&b, "<b>صاحب الطلب:</b> %s\n", html.EscapeString(req.Author))
	fmt.Fprintf(&b, "<b>الوصف (أول %d حرف):</b>\n", previewRunes)
	b.WriteString(html.EscapeString(Truncate(req.Description, previewRunes)))
	b.WriteString("\n\n")
	if req.Link != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">🔗 عرض الطلب الكامل</a>", html.EscapeString(req.Link))
	}
	return b.String()
}
