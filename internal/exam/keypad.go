package exam

import (
	"strings"
	"unicode/utf8"
)

// KeyBackspace is the keypad's delete key.
const KeyBackspace = "{bksp}"

// KeypadLayout is the row layout of the numeric keypad.
var KeypadLayout = [][]string{
	{"7", "8", "9"},
	{"4", "5", "6"},
	{"1", "2", "3"},
	{"0", ".", "-", KeyBackspace},
}

// KeyDisplay maps keys whose label differs from the key itself.
var KeyDisplay = map[string]string{KeyBackspace: "←"}

// Keypad is the numeric virtual input surface. One keypad is shared by all
// numerical questions of a session; only the displayed question is bound to
// it at any time. A Keypad is owned by its Session and is not safe for
// concurrent use on its own.
type Keypad struct {
	value     string
	onChange  func(string)
	visible   bool
	destroyed bool
}

func NewKeypad() *Keypad { return &Keypad{} }

// Bind attaches fn as the change handler and shows the keypad. Any earlier
// handler is replaced.
func (k *Keypad) Bind(fn func(string)) {
	k.onChange = fn
	k.visible = true
}

// Detach drops the handler and hides the keypad.
func (k *Keypad) Detach() {
	k.onChange = nil
	k.visible = false
}

func (k *Keypad) Bound() bool   { return k.onChange != nil }
func (k *Keypad) Visible() bool { return k.visible && !k.destroyed }
func (k *Keypad) Value() string { return k.value }

// SetInput mirrors the text field into the keypad without notifying the
// handler.
func (k *Keypad) SetInput(v string) { k.value = v }

// Clear empties the keypad value.
func (k *Keypad) Clear() { k.value = "" }

// Press applies one key. A decimal point is accepted once and a minus sign
// only as the first character. The handler sees the new value.
func (k *Keypad) Press(key string) (string, error) {
	if k.destroyed {
		return k.value, ErrSessionClosed
	}

	switch {
	case key == KeyBackspace:
		if k.value != "" {
			_, size := utf8.DecodeLastRuneInString(k.value)
			k.value = k.value[:len(k.value)-size]
		}
	case len(key) == 1 && key[0] >= '0' && key[0] <= '9':
		k.value += key
	case key == ".":
		if strings.Contains(k.value, ".") {
			return k.value, nil
		}
		k.value += key
	case key == "-":
		if k.value != "" {
			return k.value, nil
		}
		k.value = key
	default:
		return k.value, ErrInvalidKey
	}

	if k.onChange != nil {
		k.onChange(k.value)
	}
	return k.value, nil
}

// Destroy releases the keypad. Later presses fail.
func (k *Keypad) Destroy() {
	k.Detach()
	k.value = ""
	k.destroyed = true
}
