package ui

import (
	"context"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"concierge/assistant"
	"concierge/config"
	"concierge/model"
	"concierge/storage"
)

// Forward returns a processor update callback that delivers snapshots to ch.
// ch must be buffered; a snapshot the view has not consumed yet is replaced
// by the newer one.
func Forward(ch chan model.TranscriptUpdatedMsg) func(assistant.Snapshot) {
	return func(s assistant.Snapshot) {
		msg := model.TranscriptUpdatedMsg{Items: s.Items, State: s.State.String()}
		for {
			select {
			case ch <- msg:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

func waitForUpdate(ch <-chan model.TranscriptUpdatedMsg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func sendCmd(ctx context.Context, p *assistant.Processor, text string) tea.Cmd {
	return func() tea.Msg {
		return model.TurnDoneMsg{Err: p.Send(ctx, text)}
	}
}

func approvalCmd(ctx context.Context, p *assistant.Processor, requestID string, approve bool) tea.Cmd {
	return func() tea.Msg {
		return model.TurnDoneMsg{Err: p.ResolveApproval(ctx, requestID, approve)}
	}
}

func saveGlobalApprovalCmd(prefs *storage.PreferenceStore) tea.Cmd {
	return func() tea.Msg {
		if prefs == nil {
			return model.PreferenceSavedMsg{Key: storage.KeyGlobalApproval}
		}
		err := prefs.SetGlobalApproval(true)
		return model.PreferenceSavedMsg{Key: storage.KeyGlobalApproval, Err: err}
	}
}

func saveTranscriptCmd(store *storage.TranscriptStore, snap storage.Snapshot, auto bool) tea.Cmd {
	return func() tea.Msg {
		if err := store.Save(&snap); err != nil {
			return model.TranscriptSavedMsg{Auto: auto, Err: err}
		}
		if err := store.SaveCurrentID(snap.ID); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[UI] Failed to record current transcript: %v", err)
		}
		return model.TranscriptSavedMsg{ID: snap.ID, Auto: auto}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return model.ClipboardCopiedMsg{Err: clipboard.WriteAll(text)}
	}
}
