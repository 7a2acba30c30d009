package tgui

// Button is an inline keyboard button. Exactly one of Data and URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

func Btn(text, data string) Button   { return Button{Text: text, Data: data} }
func URLBtn(text, url string) Button { return Button{Text: text, URL: url} }

// Row appends a row and returns the keyboard for chaining.
func (k Keyboard) Row(btn ...Button) Keyboard {
	if len(btn) == 0 {
		return k
	}
	return append(k, btn)
}

func (k Keyboard) Empty() bool {
	for _, r := range k {
		if len(r) > 0 {
			return false
		}
	}
	return true
}
