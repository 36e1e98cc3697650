package model

// Bubble Tea messages exchanged between the chat view and the turn processor.

// TranscriptUpdatedMsg is sent after every fold so the view re-renders.
type TranscriptUpdatedMsg struct {
	Items []Item
	State string
}

// TurnDoneMsg reports the end of a Send or ResolveApproval call.
type TurnDoneMsg struct {
	Err error
}

// TranscriptSavedMsg reports a snapshot write. Auto is set for the save
// that follows every turn.
type TranscriptSavedMsg struct {
	ID   string
	Auto bool
	Err  error
}

type ClipboardCopiedMsg struct {
	Err error
}

type PreferenceSavedMsg struct {
	Key string
	Err error
}

type PluginStartupCompleteMsg struct {
	Failures map[string]error // pluginID → error
}

type FlashTickMsg struct{}
