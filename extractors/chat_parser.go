package extractors

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Message is one chat utterance from a WhatsApp export.
// Messages keep their file-scan order; the index of a message inside the
// global slice is the stable address used by context-window lookups.
type Message struct {
	Date    string `json:"date"`     // "2006-01-02 15:04:05", or the raw date string when unparseable
	Sender  string `json:"sender"`   // raw sender field, phone number or display name
	Text    string `json:"text"`     // full text including continuation lines
	RawText string `json:"raw_text"` // first line only
}

// Header line of a WhatsApp export: "DD/MM/YYYY, HH:MM - Sender: Text".
var chatHeaderPattern = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{4}), (\d{1,2}:\d{2}) - ([^:]+): (.*)$`)

const messageDateLayout = "2006-01-02 15:04:05"

// ParseChat parses raw transcript content into the ordered message list.
// Lines that do not open a new message are continuation lines and are
// appended to the text (but not the raw text) of the open message.
func ParseChat(content string) []Message {
	var messages []Message
	open := -1

	for _, line := range strings.Split(content, "\n") {
		m := chatHeaderPattern.FindStringSubmatch(line)
		if m == nil {
			if open >= 0 {
				messages[open].Text += "\n" + line
			}
			continue
		}

		messages = append(messages, Message{
			Date:    parseMessageDate(m[1], m[2]),
			Sender:  strings.TrimSpace(m[3]),
			Text:    strings.TrimSpace(m[4]),
			RawText: strings.TrimSpace(m[4]),
		})
		open = len(messages) - 1
	}

	for i := range messages {
		messages[i].Text = strings.TrimRight(messages[i].Text, "\n")
	}
	return messages
}

// parseMessageDate tries DD/MM/YYYY first, then MM/DD/YYYY, and falls back
// to the raw string. A message is never dropped for an unparseable date.
func parseMessageDate(dateStr, timeStr string) string {
	combined := dateStr + " " + timeStr
	for _, layout := range []string{"2/1/2006 15:04", "1/2/2006 15:04"} {
		if ts, err := time.Parse(layout, combined); err == nil {
			return ts.Format(messageDateLayout)
		}
	}
	return dateStr + ", " + timeStr
}

// ParseChatFile reads and parses one transcript file.
func ParseChatFile(path string) ([]Message, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat file: %w", err)
	}
	return ParseChat(string(content)), nil
}

// ParseChatDir parses every *.txt transcript in dir and concatenates the
// messages in file-iteration order. Unreadable files are logged and
// skipped; message indices are global across the concatenation.
func ParseChatDir(dir string) ([]Message, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list chat files: %w", err)
	}
	sort.Strings(entries)

	var all []Message
	for _, path := range entries {
		messages, err := ParseChatFile(path)
		if err != nil {
			log.Printf("Skipping chat file %s: %v", filepath.Base(path), err)
			continue
		}
		all = append(all, messages...)
	}
	return all, nil
}

// FullContext renders the conversation around a recommendation as a
// human-readable block, one line per message, marking the source message
// with ">>>". Window is the number of messages included on each side.
// Records without a message index return their stored context unchanged.
func FullContext(rec Recommendation, messages []Message, window int) string {
	if rec.ChatMessageIndex == nil {
		return rec.Context
	}
	idx := *rec.ChatMessageIndex
	if idx < 0 || idx >= len(messages) {
		return rec.Context
	}

	start := max(0, idx-window)
	end := min(len(messages), idx+window+1)

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		marker := "    "
		if i == idx {
			marker = ">>> "
		}
		msg := messages[i]
		lines = append(lines, fmt.Sprintf("%s[%s] %s: %s", marker, msg.Date, msg.Sender, msg.Text))
	}
	return strings.Join(lines, "\n")
}
