package chat

import (
	"time"

	"github.com/abhisek/techtree/internal/interaction"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/tutor"
)

// loadedMsg carries the persisted session when the screen opens.
type loadedMsg struct {
	Entries []store.HistoryEntry
	State   *tutor.State
	Err     error
}

// replyMsg is sent when a turn has been handled.
type replyMsg struct {
	Reply *interaction.Reply
	Err   error
}

// spinnerTickMsg animates the waiting indicator.
type spinnerTickMsg time.Time
