package telegram

import "github.com/mymmrac/telego"

// Button is one source link shown under a channel post.
type Button struct {
	Label string
	URL   string
}

// Keyboard lays buttons out in rows of two when the count is even, rows of
// one otherwise, so a lone trailing button never sits in a half-empty row.
func Keyboard(buttons []Button) *telego.InlineKeyboardMarkup {
	perRow := 1
	if len(buttons)%2 == 0 {
		perRow = 2
	}

	rows := make([][]telego.InlineKeyboardButton, 0, (len(buttons)+perRow-1)/perRow)
	for i := 0; i < len(buttons); i += perRow {
		end := i + perRow
		if end > len(buttons) {
			end = len(buttons)
		}
		row := make([]telego.InlineKeyboardButton, 0, perRow)
		for _, b := range buttons[i:end] {
			row = append(row, telego.InlineKeyboardButton{Text: b.Label, URL: b.URL})
		}
		rows = append(rows, row)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}
