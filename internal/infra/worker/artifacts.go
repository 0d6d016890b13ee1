package worker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"telegram-insight-agent/internal/infra/textclean"
)

const (
	historyFile          = "history.json"
	historyCleanedFile   = "history_cleaned.txt"
	participantsFile     = "participants.json"
	participantsTextFile = "participants.txt"
	summaryFile          = "summary.txt"
)

// ChatDir is the per-chat artifact directory; it is reused across runs of the same chat.
func ChatDir(base string, chatID int64) string {
	return filepath.Join(base, fmt.Sprintf("chat_%d", chatID))
}

type historyExport struct {
	Messages []map[string]any `json:"messages"`
}

// cleanHistory reads the exported history, writes the normalized text next to it
// and returns the text together with the highest message id seen.
func cleanHistory(dir string) (string, int64, error) {
	raw, err := os.ReadFile(filepath.Join(dir, historyFile))
	if err != nil {
		return "", 0, fmt.Errorf("read history export: %w", err)
	}
	var export historyExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return "", 0, fmt.Errorf("parse history export: %w", err)
	}
	text, _ := textclean.JoinHistory(export.Messages)
	if err := os.WriteFile(filepath.Join(dir, historyCleanedFile), []byte(text), 0o644); err != nil {
		return "", 0, fmt.Errorf("write cleaned history: %w", err)
	}
	return text, lastMessageID(export.Messages), nil
}

func lastMessageID(records []map[string]any) int64 {
	var maxID int64
	for _, r := range records {
		if id, ok := r["id"].(float64); ok && int64(id) > maxID {
			maxID = int64(id)
		}
	}
	return maxID
}

type participant struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// renderParticipants turns participants.json into one "id username first last" line per user.
func renderParticipants(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, participantsFile))
	if err != nil {
		return "", fmt.Errorf("read participants export: %w", err)
	}
	var export struct {
		Users []participant `json:"users"`
	}
	if err := json.Unmarshal(raw, &export); err != nil {
		return "", fmt.Errorf("parse participants export: %w", err)
	}

	out := filepath.Join(dir, participantsTextFile)
	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)
	for _, u := range export.Users {
		fmt.Fprintf(w, "%d %s %s %s\n", u.ID, u.Username, u.FirstName, u.LastName)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return out, nil
}

func writeSummary(dir, summary string) (string, error) {
	p := filepath.Join(dir, summaryFile)
	if err := os.WriteFile(p, []byte(summary), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return p, nil
}
