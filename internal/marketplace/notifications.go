package marketplace

import (
	"fmt"

	"github.com/hongminglow/bountyboard/internal/push"
)

func pushNote(title, body string, bountyID int64) push.Notification {
	return push.Notification{
		Title: title,
		Body:  body,
		URL:   bountyURL(bountyID),
		Tag:   fmt.Sprintf("bounty-%d", bountyID),
	}
}

func formatMoney(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currencyCode(currency))
}

func currencyCode(c string) string {
	out := []byte(c)
	for i, ch := range out {
		if ch >= 'a' && ch <= 'z' {
			out[i] = ch - 'a' + 'A'
		}
	}
	return string(out)
}
