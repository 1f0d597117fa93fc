// ABOUTME: User-visible canned replies
// ABOUTME: Defaults are Japanese; every text can be overridden from config

package bridge

// Messages are the canned texts the router posts.
type Messages struct {
	Greeting   string // blank mention
	Processing string // placeholder while the backend works
	Timeout    string // backend did not answer in time
	Error      string // any other failure
}

// DefaultMessages returns the built-in Japanese texts.
func DefaultMessages() Messages {
	return Messages{
		Greeting:   "こんにちは！何かお手伝いできることはありますか？",
		Processing: "🔍 確認中です。少々お待ちください...",
		Timeout:    "タイムアウトしました。もう一度お試しください。",
		Error:      "すみません、エラーが発生しました。もう一度お試しください。",
	}
}

// withDefaults fills empty fields from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.Greeting == "" {
		m.Greeting = d.Greeting
	}
	if m.Processing == "" {
		m.Processing = d.Processing
	}
	if m.Timeout == "" {
		m.Timeout = d.Timeout
	}
	if m.Error == "" {
		m.Error = d.Error
	}
	return m
}
